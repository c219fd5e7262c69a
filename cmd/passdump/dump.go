package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/pthm-cable/stablefluid/colormap"
	"github.com/pthm-cable/stablefluid/grid"
)

// Dumper writes every pass output of one target frame to a PNG.
type Dumper struct {
	dir    string
	target uint64
	scale  int
	hue    *colormap.Palette
	scalar *colormap.Palette

	frame   uint64
	written []string
	err     error
}

// NewDumper creates a dumper writing into dir once frame reaches target.
// Images are upscaled bilinearly by scale (values below 1 mean 1).
func NewDumper(dir string, target uint64, palette string, scale int) (*Dumper, error) {
	scalar, err := colormap.New(palette)
	if err != nil {
		return nil, err
	}
	hue, err := colormap.New("sinebow")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Dumper{dir: dir, target: target, scale: max(scale, 1), hue: hue, scalar: scalar}, nil
}

// SetFrame tells the dumper which frame the next tick produces.
func (d *Dumper) SetFrame(frame uint64) { d.frame = frame }

// Hook is installed as the simulation pass hook.
func (d *Dumper) Hook(pass string, out *grid.Field) {
	if d.frame != d.target || d.err != nil {
		return
	}
	name := fmt.Sprintf("%02d_%s.png", len(d.written), pass)
	if err := d.write(filepath.Join(d.dir, name), out); err != nil {
		d.err = fmt.Errorf("pass %s: %w", pass, err)
		return
	}
	d.written = append(d.written, name)
}

// Written returns the file names produced so far, in pass order.
func (d *Dumper) Written() []string { return d.written }

// Err returns the first write failure.
func (d *Dumper) Err() error { return d.err }

func (d *Dumper) write(path string, f *grid.Field) error {
	w, h := f.Width(), f.Height()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if f.Kind() == grid.Vector {
		px := colormap.Velocity(f, d.hue, 0, nil)
		for i, c := range px {
			img.SetRGBA(i%w, i/w, c)
		}
	} else {
		px := colormap.Scalar(f, d.scalar, 0, 0, nil)
		for i, c := range px {
			img.SetRGBA(i%w, i/w, c)
		}
	}

	var out image.Image = img
	if d.scale > 1 {
		big := image.NewRGBA(image.Rect(0, 0, w*d.scale, h*d.scale))
		draw.BiLinear.Scale(big, big.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = big
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, out); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
