// Package broadcast forwards recorded audio chunks to a network sink.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	sono_log "github.com/ingyamilmolinar/sono/internal/log"
)

// Sender delivers one chunk of mono float32 samples.
type Sender interface {
	Send(ctx context.Context, chunk []float32) error
}

// Pump moves chunks from the render callback to a Sender on its own
// goroutine. Offer never blocks; chunks are dropped while the queue is full.
type Pump struct {
	sender  Sender
	chunks  chan []float32
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *sono_log.Logger
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewPump starts a pump with a queue of depth chunks.
func NewPump(sender Sender, depth int, logger *sono_log.Logger) *Pump {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pump{
		sender: sender,
		chunks: make(chan []float32, depth),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("broadcast"),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Pump) run() {
	defer p.wg.Done()
	for {
		select {
		case chunk := <-p.chunks:
			if err := p.sender.Send(p.ctx, chunk); err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.failed.Add(1)
				p.logger.Warnf("send chunk: %v", err)
				continue
			}
			p.sent.Add(1)
		case <-p.ctx.Done():
			return
		}
	}
}

// Offer queues chunk for sending and reports whether it was accepted.
func (p *Pump) Offer(chunk []float32) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.chunks <- chunk:
		return true
	default:
		if p.dropped.Add(1) == 1 {
			p.logger.Warnf("sender is falling behind, dropping chunks")
		}
		return false
	}
}

// Close stops the pump goroutine and waits for it to exit. Queued chunks
// are discarded.
func (p *Pump) Close() {
	p.cancel()
	p.wg.Wait()
	p.logger.Debugf("pump closed: sent=%d dropped=%d failed=%d", p.sent.Load(), p.dropped.Load(), p.failed.Load())
}

func (p *Pump) Sent() uint64    { return p.sent.Load() }
func (p *Pump) Dropped() uint64 { return p.dropped.Load() }
