package fluid

import (
	"github.com/pthm-cable/stablefluid/grid"
	"github.com/pthm-cable/stablefluid/kernel"
)

// Pass names.
const (
	PassAdvect     = "advect"
	PassForce      = "force"
	PassViscous    = "viscous"
	PassDivergence = "divergence"
	PassPoisson    = "poisson"
	PassProject    = "project"
)

// PassNames lists every pass the simulation links, in tick order.
var PassNames = []string{
	PassAdvect, PassForce, PassViscous, PassDivergence, PassPoisson, PassProject,
}

// Programs returns the solver passes for registration with a provider.
func Programs() []kernel.Program {
	return []kernel.Program{
		{Name: PassAdvect, Inputs: 1, Uniforms: []string{"dt", "bfecc", "bfecc_clamp"}, Bind: bindAdvect},
		{Name: PassForce, Inputs: 0, Uniforms: []string{"center", "force", "radius", "falloff"}, Bind: bindForce},
		{Name: PassViscous, Inputs: 2, Uniforms: []string{"alpha", "bounded"}, Bind: bindViscous},
		{Name: PassDivergence, Inputs: 1, Uniforms: []string{"bounded"}, Bind: bindDivergence},
		{Name: PassPoisson, Inputs: 2, Uniforms: []string{"dt", "bounded"}, Bind: bindPoisson},
		{Name: PassProject, Inputs: 2, Uniforms: []string{"dt", "bounded"}, Bind: bindProject},
	}
}

// NewRegistry returns a provider holding the solver passes.
func NewRegistry() (*kernel.Registry, error) {
	return kernel.NewRegistry(Programs()...)
}

// Input 0: velocity.
func bindAdvect(ctx *kernel.Context) kernel.CellFunc {
	src := ctx.Input(0)
	dt := ctx.Float("dt", 0)
	bfecc := ctx.Flag("bfecc")
	limit := ctx.Float("bfecc_clamp", 1)

	return func(x, y int) grid.Vec2 {
		p0 := grid.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}
		p1 := p0.Sub(src.At(x, y).Scale(dt))
		plain, lo, hi := src.SampleRange(p1.X, p1.Y)
		if !bfecc {
			return plain
		}

		// Trace forward from the back-traced point and halve the round-trip
		// position error.
		p2 := p1.Add(plain.Scale(dt))
		e := p2.Sub(p0).Scale(0.5)
		if l := e.Len(); l > limit {
			if limit <= 0 {
				e = grid.Vec2{}
			} else {
				e = e.Scale(limit / l)
			}
		}
		p3 := p0.Sub(e)
		p4 := p3.Sub(src.Sample(p3.X, p3.Y).Scale(dt))
		v := src.Sample(p4.X, p4.Y)
		if !v.Finite() {
			return plain
		}
		return grid.Vec2{
			X: min(max(v.X, lo.X), hi.X),
			Y: min(max(v.Y, lo.Y), hi.Y),
		}
	}
}

// No inputs; blended additively. center is in cell units.
func bindForce(ctx *kernel.Context) kernel.CellFunc {
	c := ctx.Vec("center", grid.Vec2{})
	f := ctx.Vec("force", grid.Vec2{})
	r := ctx.Float("radius", 0)
	shape := Falloff(ctx.Float("falloff", 0))

	return func(x, y int) grid.Vec2 {
		if r < epsilon {
			return grid.Vec2{}
		}
		d := grid.Vec2{X: float32(x) + 0.5 - c.X, Y: float32(y) + 0.5 - c.Y}.Len()
		return f.Scale(falloffWeight(shape, d/r))
	}
}

// Input 0: current viscous estimate, input 1: source velocity.
func bindViscous(ctx *kernel.Context) kernel.CellFunc {
	est := ctx.Input(0)
	src := ctx.Input(1)
	alpha := ctx.Float("alpha", 0)
	bounded := ctx.Flag("bounded")
	denom := max(1+4*alpha, epsilon)

	return func(x, y int) grid.Vec2 {
		n := velocityAt(est, x-1, y, bounded).
			Add(velocityAt(est, x+1, y, bounded)).
			Add(velocityAt(est, x, y-1, bounded)).
			Add(velocityAt(est, x, y+1, bounded))
		return src.At(x, y).Add(n.Scale(alpha)).Scale(1 / denom)
	}
}

// Input 0: velocity. Writes a scalar.
func bindDivergence(ctx *kernel.Context) kernel.CellFunc {
	vel := ctx.Input(0)
	bounded := ctx.Flag("bounded")

	return func(x, y int) grid.Vec2 {
		return grid.Vec2{X: divergenceAt(vel, x, y, bounded)}
	}
}

// Input 0: current pressure estimate, input 1: divergence.
func bindPoisson(ctx *kernel.Context) kernel.CellFunc {
	p := ctx.Input(0)
	div := ctx.Input(1)
	dt := max(ctx.Float("dt", 1), epsilon)
	bounded := ctx.Flag("bounded")

	return func(x, y int) grid.Vec2 {
		c := p.Scalar(x, y)
		sum := pressureAt(p, x-1, y, c, bounded) +
			pressureAt(p, x+1, y, c, bounded) +
			pressureAt(p, x, y-1, c, bounded) +
			pressureAt(p, x, y+1, c, bounded)
		return grid.Vec2{X: (sum - div.Scalar(x, y)/dt) * 0.25}
	}
}

// Input 0: velocity, input 1: pressure.
func bindProject(ctx *kernel.Context) kernel.CellFunc {
	vel := ctx.Input(0)
	p := ctx.Input(1)
	dt := ctx.Float("dt", 0)
	bounded := ctx.Flag("bounded")
	w, h := ctx.Size()

	return func(x, y int) grid.Vec2 {
		c := p.Scalar(x, y)
		grad := grid.Vec2{
			X: (pressureAt(p, x+1, y, c, bounded) - pressureAt(p, x-1, y, c, bounded)) * 0.5,
			Y: (pressureAt(p, x, y+1, c, bounded) - pressureAt(p, x, y-1, c, bounded)) * 0.5,
		}
		v := vel.At(x, y).Sub(grad.Scale(dt))
		if bounded {
			if x == 0 || x == w-1 {
				v.X = 0
			}
			if y == 0 || y == h-1 {
				v.Y = 0
			}
		}
		return v
	}
}
