package memutils

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
)

// MaxAlignment is the largest element alignment that an arena can honor. Arena buffers are
// backed by 64-bit words, so offset 0 always satisfies this alignment.
const MaxAlignment uint = uint(unsafe.Alignof(uint64(0)))

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckAlignment verifies that alignment is a power of two no larger than MaxAlignment
func CheckAlignment(alignment uint) error {
	err := CheckPow2(alignment, "alignment")
	if err != nil {
		return err
	}

	if alignment > MaxAlignment {
		return cerrors.Wrapf(AlignmentTooLargeError, "alignment is %d, maximum is %d", alignment, MaxAlignment)
	}

	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}
