package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestDownsample(t *testing.T) {
	f, _ := grid.NewField(grid.Vector, 5, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			f.Set(x, y, grid.Vec2{X: float32(x), Y: 1})
		}
	}
	fr := Downsample(f, 2)
	if fr.W != 3 || fr.H != 2 || len(fr.VX) != 6 {
		t.Fatalf("unexpected shape %dx%d (%d)", fr.W, fr.H, len(fr.VX))
	}
	// Block (0,0) covers x 0..1, block (2,0) only x 4.
	if fr.VX[0] != 0.5 || fr.VX[2] != 4 {
		t.Errorf("unexpected block means %v", fr.VX)
	}
	for i, vy := range fr.VY {
		if vy != 1 {
			t.Errorf("VY[%d] = %g, want 1", i, vy)
		}
	}
	if Downsample(f, 0).Stride != 1 {
		t.Error("stride below 1 should clamp to 1")
	}
}

func TestHubHelloAndCommands(t *testing.T) {
	surface := config.NewSurface(fluid.DefaultParams(), nil)
	hub := NewHub(surface, 4, 1, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if hello.Type != TypeHello || hello.Params["iterations_poisson"] != 32 {
		t.Errorf("unexpected hello %+v", hello)
	}

	if err := conn.WriteJSON(Command{Set: map[string]any{"iterations_poisson": 12}}); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-surface.Changes():
		if p.PoissonIterations != 12 {
			t.Errorf("expected 12 iterations, got %d", p.PoissonIterations)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("command was not applied")
	}

	if err := conn.WriteJSON(Command{Set: map[string]any{"dt": -1}}); err != nil {
		t.Fatal(err)
	}
	var warn Warning
	if err := conn.ReadJSON(&warn); err != nil {
		t.Fatalf("reading warning: %v", err)
	}
	if warn.Type != TypeWarning || warn.Name != "dt" {
		t.Errorf("unexpected warning %+v", warn)
	}
}

func TestHubPublish(t *testing.T) {
	sim, err := fluid.New(fluid.DefaultParams(), 64, 64, fluid.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sim.Close()

	hub := NewHub(nil, 8, 2, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, srv)
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := sim.Tick(nil); err != nil {
			t.Fatal(err)
		}
		hub.Publish(sim)
	}

	var fr Frame
	if err := conn.ReadJSON(&fr); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if fr.Type != TypeFrame || fr.Frame != 2 {
		t.Errorf("expected frame 2 only, got %+v", fr.Frame)
	}
	if fr.W != 4 || fr.H != 4 || fr.Stride != 8 {
		t.Errorf("unexpected frame shape %dx%d stride %d", fr.W, fr.H, fr.Stride)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	hub := NewHub(nil, 1, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
