package kernel

import (
	"log/slog"
	"runtime"
	"sync"
)

// parallelThreshold is the minimum row count to split a pass across
// workers. Below this, running on the caller is faster.
const parallelThreshold = 16

// workChunk is a row range of the current job.
type workChunk struct {
	job    *job
	y0, y1 int
}

// Pool splits each pass into row chunks and runs them on persistent
// worker goroutines. Dispatch blocks until every chunk is done, which is
// the barrier between passes.
type Pool struct {
	binder
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

// NewPool creates a pooled dispatcher with the given number of workers;
// workers <= 0 uses GOMAXPROCS. A nil logger uses slog.Default().
func NewPool(p Provider, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{binder: newBinder(p, logger), numWorkers: workers}
}

// Name implements Dispatcher.
func (p *Pool) Name() string { return "pool" }

// Workers returns the worker count.
func (p *Pool) Workers() int { return p.numWorkers }

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker processes chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.job.rows(chunk.y0, chunk.y1)
			p.doneChan <- struct{}{}
		}
	}
}

// Dispatch implements Dispatcher.
func (p *Pool) Dispatch(inv Invocation) error {
	j, err := p.bind(inv)
	if err != nil {
		return err
	}
	if j.rect.Empty() {
		return nil
	}

	n := j.rect.Y1 - j.rect.Y0
	if n < parallelThreshold || p.numWorkers == 1 {
		j.rows(j.rect.Y0, j.rect.Y1)
		return nil
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := j.rect.Y0 + w*chunkSize
		end := min(start+chunkSize, j.rect.Y1)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{job: j, y0: start, y1: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
	return nil
}

// Close stops the workers and waits for them to exit. The pool restarts
// them on the next Dispatch.
func (p *Pool) Close() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
