package sync

import (
	"context"
	"io"
	"log/slog"
	stdsync "sync"
	"time"
)

// FetchFunc pulls one resource's snapshot for a project and merges it. The
// session supplies one per polled resource (tasks, messages).
type FetchFunc func(ctx context.Context, projectID int64) error

// Poller periodically refreshes the active project's resources. One poller
// instance exists per session; switching projects is Stop then Start, so at
// most one polling target is ever active and no timer leaks across view
// switches.
type Poller struct {
	interval time.Duration
	fetches  map[string]FetchFunc
	log      *slog.Logger

	mu        stdsync.Mutex
	cancel    context.CancelFunc
	gen       uint64
	inFlight  map[string]bool
	projectID int64
}

// NewPoller creates a stopped poller. fetches maps a resource name (used for
// single-flight bookkeeping and logging) to its fetch function.
func NewPoller(interval time.Duration, fetches map[string]FetchFunc, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Poller{
		interval: interval,
		fetches:  fetches,
		log:      log,
		inFlight: map[string]bool{},
	}
}

// Start begins polling the given project at the fixed interval. An already
// running poller is stopped first.
func (p *Poller) Start(projectID int64) {
	p.Stop()

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.projectID = projectID
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx, gen, projectID)
}

// Stop cancels polling. It is idempotent and synchronous: after it returns no
// further fetch is issued, and a fetch already in flight has its result
// discarded by the generation check.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}

func (p *Poller) run(ctx context.Context, gen uint64, projectID int64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, fetch := range p.fetches {
				p.tick(ctx, gen, name, fetch, projectID)
			}
		}
	}
}

// tick runs one resource's fetch unless a previous fetch for it is still in
// flight or the poller has been stopped or restarted since this cycle began.
func (p *Poller) tick(ctx context.Context, gen uint64, name string, fetch FetchFunc, projectID int64) {
	p.mu.Lock()
	if p.gen != gen || p.inFlight[name] {
		p.mu.Unlock()
		return
	}
	p.inFlight[name] = true
	p.mu.Unlock()

	go func() {
		err := fetch(ctx, projectID)

		p.mu.Lock()
		p.inFlight[name] = false
		stale := p.gen != gen
		p.mu.Unlock()

		if err != nil && !stale && ctx.Err() == nil {
			// Routine poll failures stay out of the user's way; last-known-good
			// state is retained and the next tick proceeds unchanged.
			p.log.Warn("poll failed", "resource", name, "project_id", projectID, "err", err)
		}
	}()
}
