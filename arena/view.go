package arena

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/wraftus/flux-engine/memutils/metadata"
)

// View is a fixed-capacity, order-preserving sequence of T stored in a single segment of an Arena.
// The zero value is unbound: Bind claims the segment and Destroy releases it.
//
// T must not contain pointers, because arena memory is not scanned by the garbage collector, and must
// not be zero-sized.
//
// A View does not own its Arena. It caches the location of its elements and re-resolves them through
// the segment id whenever the arena's Generation changes, so a View stays usable across compaction.
// Once its segment has been released, through Arena.Release or a destroy move during compaction, every
// access reports ErrUnknownSegment.
type View[T any] struct {
	arena *Arena
	id    metadata.SegmentID
	epoch uint64

	generation uint64
	elements   []T

	count    int
	capacity int
}

func checkElementType(elementType reflect.Type) error {
	if elementType.Size() == 0 {
		return errors.Wrapf(ErrInvalidElement, "%s is zero-sized", elementType)
	}

	if hasPointers(elementType) {
		return errors.Wrapf(ErrInvalidElement, "%s contains pointers", elementType)
	}

	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	}

	return true
}

// Bind claims a segment from arena large enough to hold capacity elements. The View must be unbound.
func (v *View[T]) Bind(arena *Arena, capacity int) error {
	if v.arena != nil {
		return ErrViewBound
	}

	if capacity <= 0 {
		return errors.Wrapf(ErrInvalidCapacity, "view capacity is %d", capacity)
	}

	var zero T
	err := checkElementType(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return err
	}

	if arena == nil || !arena.IsInitialized() {
		return ErrNotInitialized
	}

	elementSize := int(unsafe.Sizeof(zero))
	if capacity > math.MaxInt/elementSize {
		return errors.Wrapf(ErrInvalidCapacity, "%d elements of %d bytes overflows", capacity, elementSize)
	}

	id, bytes, err := arena.ClaimAligned(capacity*elementSize, uint(unsafe.Alignof(zero)))
	if err != nil {
		return err
	}

	v.arena = arena
	v.id = id
	v.epoch = arena.epoch
	v.count = 0
	v.capacity = capacity
	v.resolve(bytes)

	return nil
}

func (v *View[T]) resolve(bytes []byte) {
	v.elements = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(bytes))), v.capacity)
	v.generation = v.arena.generation
}

func (v *View[T]) slice() ([]T, error) {
	if v.arena == nil {
		return nil, ErrViewUnbound
	}

	if !v.arena.IsInitialized() || v.arena.epoch != v.epoch {
		return nil, ErrNotInitialized
	}

	if v.generation != v.arena.generation {
		bytes, err := v.arena.Lookup(v.id)
		if err != nil {
			return nil, err
		}

		v.resolve(bytes)
	}

	return v.elements, nil
}

// Bound returns true if the View currently holds a segment
func (v *View[T]) Bound() bool {
	return v.arena != nil
}

// ID returns the segment id backing the View, or metadata.NoSegment if it is unbound
func (v *View[T]) ID() metadata.SegmentID {
	return v.id
}

// Count returns the number of elements in the View
func (v *View[T]) Count() int {
	return v.count
}

// Capacity returns the maximum number of elements the View can hold
func (v *View[T]) Capacity() int {
	return v.capacity
}

// Append adds value after the last element
func (v *View[T]) Append(value T) error {
	elements, err := v.slice()
	if err != nil {
		return err
	}

	if v.count == v.capacity {
		return errors.Wrapf(ErrViewFull, "capacity is %d", v.capacity)
	}

	elements[v.count] = value
	v.count++
	return nil
}

// InsertAt places value at index, shifting the elements from index onward up by one. index may
// equal Count, in which case InsertAt behaves like Append.
func (v *View[T]) InsertAt(index int, value T) error {
	elements, err := v.slice()
	if err != nil {
		return err
	}

	if v.count == v.capacity {
		return errors.Wrapf(ErrViewFull, "capacity is %d", v.capacity)
	}

	if index < 0 || index > v.count {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d with count %d", index, v.count)
	}

	copy(elements[index+1:v.count+1], elements[index:v.count])
	elements[index] = value
	v.count++
	return nil
}

// RemoveAt removes the element at index, shifting the elements after it down by one
func (v *View[T]) RemoveAt(index int) error {
	elements, err := v.slice()
	if err != nil {
		return err
	}

	if index < 0 || index >= v.count {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d with count %d", index, v.count)
	}

	copy(elements[index:v.count-1], elements[index+1:v.count])

	var zero T
	elements[v.count-1] = zero
	v.count--
	return nil
}

// At returns the element at index
func (v *View[T]) At(index int) (T, error) {
	var zero T

	elements, err := v.slice()
	if err != nil {
		return zero, err
	}

	if index < 0 || index >= v.count {
		return zero, errors.Wrapf(ErrIndexOutOfRange, "index %d with count %d", index, v.count)
	}

	return elements[index], nil
}

// Set overwrites the element at index
func (v *View[T]) Set(index int, value T) error {
	elements, err := v.slice()
	if err != nil {
		return err
	}

	if index < 0 || index >= v.count {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d with count %d", index, v.count)
	}

	elements[index] = value
	return nil
}

// RawAccess returns a pointer to the element at index. It panics if the View is unusable or index is out
// of range. The pointer is valid until the arena is next compacted.
func (v *View[T]) RawAccess(index int) *T {
	elements, err := v.slice()
	if err != nil {
		panic(fmt.Sprintf("attempted raw access on an unusable view: %+v", err))
	}

	if index < 0 || index >= v.count {
		panic(fmt.Sprintf("attempted raw access at index %d of a view with %d elements", index, v.count))
	}

	return &elements[index]
}

// Elements returns the View's elements in order. The slice borrows arena memory and is valid until
// the arena is next compacted. It returns nil if the View is unusable.
func (v *View[T]) Elements() []T {
	elements, err := v.slice()
	if err != nil {
		return nil
	}

	return elements[:v.count:v.count]
}

// Destroy releases the View's segment and returns the View to the unbound state. Destroying an unbound
// View does nothing. If the arena has been destroyed, there is nothing left to release.
func (v *View[T]) Destroy() error {
	if v.arena == nil {
		return nil
	}

	var err error
	if v.arena.IsInitialized() && v.arena.epoch == v.epoch {
		err = v.arena.Release(v.id)
	}

	*v = View[T]{}
	return err
}
