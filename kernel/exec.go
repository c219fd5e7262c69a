package kernel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pthm-cable/stablefluid/grid"
)

// job is a bound invocation ready to run row ranges.
type job struct {
	cell  CellFunc
	out   *grid.Field
	blend Blend
	rect  Rect
}

func (j *job) rows(y0, y1 int) {
	for y := y0; y < y1; y++ {
		for x := j.rect.X0; x < j.rect.X1; x++ {
			v := j.cell(x, y)
			if j.blend == Add {
				j.out.AddAt(x, y, v)
			} else {
				j.out.Set(x, y, v)
			}
		}
	}
}

// binder validates invocations and binds programs. Both backends share it.
type binder struct {
	provider Provider
	logger   *slog.Logger

	mu     sync.Mutex
	warned map[string]struct{}
}

func newBinder(p Provider, logger *slog.Logger) binder {
	if logger == nil {
		logger = slog.Default()
	}
	return binder{provider: p, logger: logger, warned: make(map[string]struct{})}
}

func (b *binder) bind(inv Invocation) (*job, error) {
	prog, err := b.provider.Program(inv.Pass)
	if err != nil {
		return nil, err
	}
	out := inv.Output
	if out == nil {
		return nil, fmt.Errorf("kernel: pass %q: nil output", inv.Pass)
	}
	if len(inv.Inputs) != prog.Inputs {
		return nil, fmt.Errorf("kernel: pass %q wants %d inputs, got %d",
			inv.Pass, prog.Inputs, len(inv.Inputs))
	}
	for i, in := range inv.Inputs {
		if in == nil {
			return nil, fmt.Errorf("kernel: pass %q: nil input %d", inv.Pass, i)
		}
		if sharesStorage(in, out) {
			return nil, fmt.Errorf("%w: pass %q slot %d", ErrAliasedBuffer, inv.Pass, i)
		}
		if in.Width() != out.Width() || in.Height() != out.Height() {
			return nil, fmt.Errorf("kernel: pass %q: input %d is %dx%d, output %dx%d",
				inv.Pass, i, in.Width(), in.Height(), out.Width(), out.Height())
		}
	}

	params := make(Bag, len(inv.Params))
	for name, v := range inv.Params {
		if !prog.declares(name) {
			b.warnOnce(inv.Pass, name)
			continue
		}
		params[name] = v
	}

	rect := Rect{X1: out.Width(), Y1: out.Height()}
	if inv.Rect != nil {
		rect = inv.Rect.Intersect(out.Width(), out.Height())
	}

	ctx := &Context{
		pass:   inv.Pass,
		inputs: inv.Inputs,
		params: params,
		w:      out.Width(),
		h:      out.Height(),
	}
	return &job{cell: prog.Bind(ctx), out: out, blend: inv.Blend, rect: rect}, nil
}

func (b *binder) warnOnce(pass, name string) {
	key := pass + "/" + name
	b.mu.Lock()
	_, seen := b.warned[key]
	if !seen {
		b.warned[key] = struct{}{}
	}
	b.mu.Unlock()
	if !seen {
		b.logger.Warn("unresolved uniform", "pass", pass, "uniform", name)
	}
}

func sharesStorage(a, b *grid.Field) bool {
	if a == b {
		return true
	}
	da, db := a.Data(), b.Data()
	return len(da) > 0 && len(db) > 0 && &da[0] == &db[0]
}

// Serial runs every pass on the calling goroutine.
type Serial struct {
	binder
}

// NewSerial creates a single-goroutine dispatcher. A nil logger uses
// slog.Default().
func NewSerial(p Provider, logger *slog.Logger) *Serial {
	return &Serial{binder: newBinder(p, logger)}
}

// Name implements Dispatcher.
func (s *Serial) Name() string { return "serial" }

// Dispatch implements Dispatcher.
func (s *Serial) Dispatch(inv Invocation) error {
	j, err := s.bind(inv)
	if err != nil {
		return err
	}
	if !j.rect.Empty() {
		j.rows(j.rect.Y0, j.rect.Y1)
	}
	return nil
}

// Close implements Dispatcher.
func (s *Serial) Close() {}
