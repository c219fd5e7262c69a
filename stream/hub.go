// Package stream broadcasts downsampled velocity frames to websocket
// clients and accepts parameter changes from them.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/stablefluid/config"
	"github.com/pthm-cable/stablefluid/fluid"
	"github.com/pthm-cable/stablefluid/grid"
)

const writeTimeout = time.Second

// Message types.
const (
	TypeHello   = "hello"
	TypeFrame   = "frame"
	TypeWarning = "warning"
)

// Frame is one downsampled velocity field. VX and VY are row-major with
// row 0 at the bottom of the domain.
type Frame struct {
	Type   string    `json:"type"`
	Frame  uint64    `json:"frame"`
	W      int       `json:"w"`
	H      int       `json:"h"`
	Stride int       `json:"stride"`
	VX     []float32 `json:"vx"`
	VY     []float32 `json:"vy"`
}

// Hello is sent once to every new client.
type Hello struct {
	Type   string             `json:"type"`
	Params map[string]float64 `json:"params"`
}

// Warning reports a rejected parameter change back to the client.
type Warning struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Command is an inbound client message. Set maps parameter names to
// values, as accepted by config.Surface.Set.
type Command struct {
	Set map[string]any `json:"set"`
}

// Hub tracks connected clients. It implements http.Handler for the
// websocket endpoint.
type Hub struct {
	upgrader websocket.Upgrader
	surface  *config.Surface
	logger   *slog.Logger
	stride   int
	every    int

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewHub creates a hub. surface may be nil, in which case inbound commands
// are ignored. Frames are broadcast every `every` ticks, downsampled by
// stride cells per side.
func NewHub(surface *config.Surface, stride, every int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if stride < 1 {
		stride = 1
	}
	if every < 1 {
		every = 1
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		surface: surface,
		logger:  logger,
		stride:  stride,
		every:   every,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = connMu
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()
	h.logger.Info("stream client connected", "remote", r.RemoteAddr)

	if err := h.send(conn, connMu, h.hello()); err != nil {
		return
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("stream read failed", "error", err)
			}
			return
		}
		h.apply(conn, connMu, cmd)
	}
}

func (h *Hub) hello() Hello {
	msg := Hello{Type: TypeHello, Params: make(map[string]float64)}
	if h.surface == nil {
		return msg
	}
	for _, name := range config.Names() {
		if v, ok := h.surface.Get(name); ok {
			msg.Params[name] = v
		}
	}
	return msg
}

func (h *Hub) apply(conn *websocket.Conn, connMu *sync.Mutex, cmd Command) {
	if h.surface == nil {
		return
	}
	for name, value := range cmd.Set {
		err := h.surface.Set(name, value)
		var w *config.Warning
		if errors.As(err, &w) {
			h.send(conn, connMu, Warning{Type: TypeWarning, Name: w.Name, Reason: w.Reason})
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, connMu *sync.Mutex, v any) error {
	connMu.Lock()
	defer connMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// Publish broadcasts the current velocity field if the frame number is a
// multiple of the broadcast interval and anyone is listening. Clients that
// fail to receive are dropped.
func (h *Hub) Publish(sim *fluid.Simulation) {
	if sim.Frame()%uint64(h.every) != 0 || h.Clients() == 0 {
		return
	}
	frame := Downsample(sim.Velocity(), h.stride)
	frame.Frame = sim.Frame()
	h.Broadcast(frame)
}

// Broadcast sends a frame to every client.
func (h *Hub) Broadcast(frame Frame) {
	var failed []*websocket.Conn
	h.mu.RLock()
	for conn, connMu := range h.clients {
		if err := h.send(conn, connMu, frame); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range failed {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
	h.logger.Info("stream clients dropped", "count", len(failed))
}

// Downsample averages stride×stride blocks of a vector field. Partial
// blocks at the right and top edges average the cells they cover.
func Downsample(f *grid.Field, stride int) Frame {
	if stride < 1 {
		stride = 1
	}
	w := (f.Width() + stride - 1) / stride
	h := (f.Height() + stride - 1) / stride
	out := Frame{
		Type:   TypeFrame,
		W:      w,
		H:      h,
		Stride: stride,
		VX:     make([]float32, w*h),
		VY:     make([]float32, w*h),
	}
	for by := 0; by < h; by++ {
		for bx := 0; bx < w; bx++ {
			var sum grid.Vec2
			var n int
			for y := by * stride; y < min((by+1)*stride, f.Height()); y++ {
				for x := bx * stride; x < min((bx+1)*stride, f.Width()); x++ {
					sum = sum.Add(f.At(x, y))
					n++
				}
			}
			avg := sum.Scale(1 / float32(n))
			out.VX[by*w+bx] = avg.X
			out.VY[by*w+bx] = avg.Y
		}
	}
	return out
}

// Serve listens on addr and serves the hub at /ws until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		h.logger.Info("stream listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.closeAll()
		return err
	}
}

// closeAll disconnects every client. Hijacked websocket connections are
// not closed by http.Server.Shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
