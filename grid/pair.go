package grid

import (
	"errors"
	"fmt"
)

// ErrAliasedPair is returned when both slots of a pair would refer to the
// same storage.
var ErrAliasedPair = errors.New("grid: pair slots alias")

// Pair is a double-buffered field: one slot is read, the other written, and
// Swap flips the roles.
type Pair struct {
	name  string
	slots [2]*Field
	read  int
	swaps int
}

// NewPair builds a pair from two distinct fields of identical shape.
func NewPair(name string, a, b *Field) (*Pair, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("grid: pair %q: nil slot", name)
	}
	if a == b || (len(a.data) > 0 && len(b.data) > 0 && &a.data[0] == &b.data[0]) {
		return nil, fmt.Errorf("%w: %q", ErrAliasedPair, name)
	}
	if !a.SameShape(b) {
		return nil, fmt.Errorf("grid: pair %q: slot shapes differ", name)
	}
	return &Pair{name: name, slots: [2]*Field{a, b}}, nil
}

// Name returns the pair's name.
func (p *Pair) Name() string { return p.name }

// Read returns the field holding the current value.
func (p *Pair) Read() *Field { return p.slots[p.read] }

// Write returns the field the next pass should write into.
func (p *Pair) Write() *Field { return p.slots[1-p.read] }

// ReadSlot returns the slot index (0 or 1) currently in the read role.
func (p *Pair) ReadSlot() int { return p.read }

// Swap makes the written field current.
func (p *Pair) Swap() {
	p.read = 1 - p.read
	p.swaps++
}

// Swaps returns the number of role flips since allocation.
func (p *Pair) Swaps() int { return p.swaps }

// Clear zero-fills both slots.
func (p *Pair) Clear() {
	p.slots[0].Clear()
	p.slots[1].Clear()
}
