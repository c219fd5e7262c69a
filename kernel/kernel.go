// Package kernel runs named full-grid passes. A Program computes one output
// cell from numbered input fields and a bag of uniforms; a Dispatcher binds a
// program to fields and runs it over every cell of the output.
package kernel

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/stablefluid/grid"
)

var (
	// ErrPassUnavailable is returned when a pass name cannot be resolved.
	ErrPassUnavailable = errors.New("kernel: pass unavailable")
	// ErrAliasedBuffer is returned when an invocation reads the field it writes.
	ErrAliasedBuffer = errors.New("kernel: output aliases an input")
)

// Value is a uniform: a scalar or a two-component vector.
type Value struct {
	X, Y float32
	Vec  bool
}

// Float wraps a scalar uniform.
func Float(v float32) Value { return Value{X: v} }

// Bool wraps a flag uniform as 0 or 1.
func Bool(b bool) Value {
	if b {
		return Value{X: 1}
	}
	return Value{}
}

// Vec wraps a vector uniform.
func Vec(x, y float32) Value { return Value{X: x, Y: y, Vec: true} }

// Vec2 returns the value as a grid vector.
func (v Value) Vec2() grid.Vec2 { return grid.Vec2{X: v.X, Y: v.Y} }

func (v Value) String() string {
	if v.Vec {
		return fmt.Sprintf("(%g, %g)", v.X, v.Y)
	}
	return fmt.Sprintf("%g", v.X)
}

// Bag maps uniform names to values.
type Bag map[string]Value

// CellFunc computes the output value of cell (x, y).
type CellFunc func(x, y int) grid.Vec2

// Program is a named pass. Bind is called once per dispatch with the bound
// inputs and uniforms and returns the per-cell function. The returned
// function is called concurrently for distinct rows and must only read.
type Program struct {
	Name     string
	Inputs   int
	Uniforms []string
	Bind     func(ctx *Context) CellFunc
}

func (p *Program) declares(name string) bool {
	for _, u := range p.Uniforms {
		if u == name {
			return true
		}
	}
	return false
}

// Context is what a program sees while binding.
type Context struct {
	pass   string
	inputs []*grid.Field
	params Bag
	w, h   int
}

// Pass returns the name of the running pass.
func (c *Context) Pass() string { return c.pass }

// Input returns the field bound to slot i.
func (c *Context) Input(i int) *grid.Field { return c.inputs[i] }

// Size returns the output resolution.
func (c *Context) Size() (w, h int) { return c.w, c.h }

// Float returns a scalar uniform, or def when it was not supplied.
func (c *Context) Float(name string, def float32) float32 {
	if v, ok := c.params[name]; ok {
		return v.X
	}
	return def
}

// Vec returns a vector uniform, or def when it was not supplied.
func (c *Context) Vec(name string, def grid.Vec2) grid.Vec2 {
	if v, ok := c.params[name]; ok {
		return v.Vec2()
	}
	return def
}

// Flag returns a boolean uniform; anything non-zero is true.
func (c *Context) Flag(name string) bool {
	return c.params[name].X != 0
}

// Blend selects how the computed value is combined with the output.
type Blend uint8

const (
	// Replace overwrites the output cell.
	Replace Blend = iota
	// Add accumulates into the output cell.
	Add
)

func (b Blend) String() string {
	if b == Add {
		return "add"
	}
	return "replace"
}

// Rect is a half-open cell rectangle [X0, X1) × [Y0, Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Empty reports whether the rectangle contains no cells.
func (r Rect) Empty() bool { return r.X0 >= r.X1 || r.Y0 >= r.Y1 }

// Intersect clips r to [0, w) × [0, h).
func (r Rect) Intersect(w, h int) Rect {
	return Rect{
		X0: max(r.X0, 0),
		Y0: max(r.Y0, 0),
		X1: min(r.X1, w),
		Y1: min(r.Y1, h),
	}
}

// Invocation binds a pass to its fields and uniforms. A nil Rect runs the
// pass over the whole output; cells outside the rect are left untouched.
type Invocation struct {
	Pass   string
	Inputs []*grid.Field
	Output *grid.Field
	Params Bag
	Blend  Blend
	Rect   *Rect
}

// Dispatcher executes invocations. Dispatch returns only after every cell
// has been written.
type Dispatcher interface {
	Dispatch(inv Invocation) error
	Name() string
	Close()
}
