package project

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bbernstein/lacyplayer-go/internal/show"
)

// pusher mirrors project snapshots to the engine on a single goroutine.
// Snapshots queued while a push is in flight collapse to the newest one,
// so the engine always ends up with the latest structure and never receives
// an older snapshot after a newer one. Failures are logged and dropped.
type pusher struct {
	push    func(ctx context.Context, p *show.Project) error
	timeout time.Duration

	mu      sync.Mutex
	pending *show.Project
	running bool
	idle    chan struct{}
}

func newPusher(push func(ctx context.Context, p *show.Project) error, timeout time.Duration) *pusher {
	idle := make(chan struct{})
	close(idle)
	return &pusher{push: push, timeout: timeout, idle: idle}
}

func (p *pusher) enqueue(snap *show.Project) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = snap
	if p.running {
		return
	}
	p.running = true
	p.idle = make(chan struct{})
	go p.run(p.idle)
}

func (p *pusher) run(idle chan struct{}) {
	for {
		p.mu.Lock()
		snap := p.pending
		p.pending = nil
		if snap == nil {
			p.running = false
			close(idle)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.push(ctx, snap)
		cancel()
		if err != nil {
			log.Printf("⚠️  Failed to push project snapshot to engine: %v", err)
		}
	}
}

// flush waits until every queued snapshot has been pushed.
func (p *pusher) flush(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
