// Package coordinator drives the two refresh cadences of the dashboard: a
// slow data refresh that fetches markets upstream, and a fast tick that
// recomputes countdowns and urgency locally. One goroutine serializes all
// refresh decisions; the fetch itself runs off-loop behind an in-flight
// guard so a slow upstream never delays ticks.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rewired-gh/polywatch/internal/logger"
)

// Refresher receives refresh and tick callbacks.
type Refresher interface {
	// Refresh fetches upstream data and rebuilds the corpus.
	Refresh(ctx context.Context, now time.Time) error
	// Tick recomputes time-derived state from the existing corpus.
	Tick(now time.Time)
}

// Coordinator owns the refresh loop.
type Coordinator struct {
	refresher    Refresher
	clock        Clock
	dataInterval time.Duration
	tickInterval time.Duration
	fetchTimeout time.Duration
	autoRefresh  func() bool

	mu       sync.Mutex
	paused   bool
	fetching bool

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Coordinator. autoRefresh is consulted before every scheduled
// data refresh; nil means always on. fetchTimeout bounds each upstream fetch.
func New(refresher Refresher, clock Clock, dataInterval, tickInterval, fetchTimeout time.Duration, autoRefresh func() bool) *Coordinator {
	if autoRefresh == nil {
		autoRefresh = func() bool { return true }
	}
	return &Coordinator{
		refresher:    refresher,
		clock:        clock,
		dataInterval: dataInterval,
		tickInterval: tickInterval,
		fetchTimeout: fetchTimeout,
		autoRefresh:  autoRefresh,
		kick:         make(chan struct{}, 1),
	}
}

// Start launches the loop with an immediate initial refresh. It returns
// once the loop goroutine is running.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Pause suspends both the scheduled data refreshes and the reclassify
// ticks, bounding work while nobody is watching.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume re-enables scheduled refreshes and requests one immediately, so a
// long pause does not leave stale data on screen until the next interval.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Paused reports whether scheduled refreshes are suspended.
func (c *Coordinator) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// RequestRefresh asks for an out-of-band data refresh. It is a no-op when
// one is already queued.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	c.startFetch(ctx)

	dataTicker := c.clock.NewTicker(c.dataInterval)
	defer dataTicker.Stop()
	tickTicker := c.clock.NewTicker(c.tickInterval)
	defer tickTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dataTicker.C():
			c.mu.Lock()
			suspended := c.paused
			c.mu.Unlock()
			if suspended || !c.autoRefresh() {
				continue
			}
			c.startFetch(ctx)
		case <-c.kick:
			c.startFetch(ctx)
		case now := <-tickTicker.C():
			c.mu.Lock()
			suspended := c.paused
			c.mu.Unlock()
			if suspended {
				continue
			}
			c.refresher.Tick(now)
		}
	}
}

// startFetch runs a data refresh off-loop. A refresh already in flight wins;
// the new request is dropped rather than queued.
func (c *Coordinator) startFetch(ctx context.Context) {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		logger.Debug("Refresh already in flight, skipping")
		return
	}
	c.fetching = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.fetching = false
			c.mu.Unlock()
		}()

		fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()

		if err := c.refresher.Refresh(fetchCtx, c.clock.Now()); err != nil {
			logger.Error("Refresh failed: %v", err)
		}
	}()
}
