package grid

import (
	"errors"
	"fmt"
)

// ErrNotAllocated is returned when a buffer set is used before Allocate.
var ErrNotAllocated = errors.New("grid: buffer set not allocated")

// Allocator creates and releases fields. The kernel resource provider
// implements it; HeapAllocator is the plain in-memory version.
type Allocator interface {
	NewField(kind Kind, w, h int) (*Field, error)
	ReleaseField(f *Field)
}

// HeapAllocator allocates fields on the Go heap.
type HeapAllocator struct{}

// NewField implements Allocator.
func (HeapAllocator) NewField(kind Kind, w, h int) (*Field, error) {
	return NewField(kind, w, h)
}

// ReleaseField implements Allocator. The garbage collector reclaims the
// storage; the field is emptied so stale references fail fast.
func (HeapAllocator) ReleaseField(f *Field) {
	if f != nil {
		f.data = nil
		f.w, f.h = 0, 0
	}
}

// PairID names one of the solver's double-buffered fields.
type PairID int

const (
	Velocity PairID = iota
	Viscous
	Divergence
	Pressure
	numPairs
)

// PairIDs lists every pair in allocation order.
var PairIDs = [...]PairID{Velocity, Viscous, Divergence, Pressure}

var pairKinds = [numPairs]Kind{Vector, Vector, Scalar, Scalar}

func (id PairID) String() string {
	switch id {
	case Velocity:
		return "velocity"
	case Viscous:
		return "viscous"
	case Divergence:
		return "divergence"
	case Pressure:
		return "pressure"
	default:
		return fmt.Sprintf("pair(%d)", int(id))
	}
}

// Kind returns the field kind stored by the pair.
func (id PairID) Kind() Kind { return pairKinds[id] }

// BufferSet owns every double-buffered field of the simulation. All pairs
// share one size.
type BufferSet struct {
	alloc       Allocator
	pairs       [numPairs]*Pair
	w, h        int
	allocations int
}

// NewBufferSet creates an empty buffer set. A nil allocator uses the heap.
func NewBufferSet(alloc Allocator) *BufferSet {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	return &BufferSet{alloc: alloc}
}

// Allocate (re)creates every pair at w×h, zero-filled. Either all pairs are
// replaced or, on error, the previous pairs stay untouched.
func (b *BufferSet) Allocate(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}

	var fresh [numPairs]*Pair
	var made []*Field
	fail := func(err error) error {
		for _, f := range made {
			b.alloc.ReleaseField(f)
		}
		return err
	}
	for _, id := range PairIDs {
		a, err := b.alloc.NewField(id.Kind(), w, h)
		if err != nil {
			return fail(fmt.Errorf("allocating %v: %w", id, err))
		}
		made = append(made, a)
		c, err := b.alloc.NewField(id.Kind(), w, h)
		if err != nil {
			return fail(fmt.Errorf("allocating %v: %w", id, err))
		}
		made = append(made, c)
		p, err := NewPair(id.String(), a, c)
		if err != nil {
			return fail(err)
		}
		fresh[id] = p
	}

	b.Release()
	b.pairs = fresh
	b.w, b.h = w, h
	b.allocations++
	return nil
}

// Release frees every pair. The set can be allocated again afterwards.
func (b *BufferSet) Release() {
	for i, p := range b.pairs {
		if p == nil {
			continue
		}
		b.alloc.ReleaseField(p.slots[0])
		b.alloc.ReleaseField(p.slots[1])
		b.pairs[i] = nil
	}
	b.w, b.h = 0, 0
}

// Allocated reports whether the pairs exist.
func (b *BufferSet) Allocated() bool { return b.pairs[Velocity] != nil }

// Allocations returns how many times Allocate succeeded.
func (b *BufferSet) Allocations() int { return b.allocations }

// Size returns the grid resolution.
func (b *BufferSet) Size() (w, h int) { return b.w, b.h }

// CellScale returns the reciprocal resolution per axis.
func (b *BufferSet) CellScale() Vec2 {
	if b.w == 0 || b.h == 0 {
		return Vec2{}
	}
	return Vec2{1 / float32(b.w), 1 / float32(b.h)}
}

// Pair returns the named pair, or nil before Allocate.
func (b *BufferSet) Pair(id PairID) *Pair {
	if id < 0 || id >= numPairs {
		return nil
	}
	return b.pairs[id]
}

// Swap flips the read/write roles of one pair.
func (b *BufferSet) Swap(id PairID) error {
	p := b.Pair(id)
	if p == nil {
		return fmt.Errorf("%w: swap %v", ErrNotAllocated, id)
	}
	p.Swap()
	return nil
}
