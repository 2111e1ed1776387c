package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/logging"
)

const defaultUnreadInterval = 30 * time.Second

// UnreadAggregator periodically refreshes the two unread counters backing the
// navigation badges. It runs once immediately on activation and then on each
// interval tick, for as long as polling is enabled. A failed fetch is logged;
// the next tick retries.
type UnreadAggregator struct {
	interval time.Duration
	coord    *Coordinator
	logger   zerolog.Logger

	mu      gosync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// NewUnreadAggregator creates an aggregator bound to a coordinator.
func NewUnreadAggregator(interval time.Duration, coord *Coordinator) *UnreadAggregator {
	if interval <= 0 {
		interval = defaultUnreadInterval
	}
	return &UnreadAggregator{
		interval: interval,
		coord:    coord,
		logger:   logging.Component("unread-aggregator"),
	}
}

// Start begins the refresh loop.
func (a *UnreadAggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrPollerAlreadyRunning
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	a.running = true

	a.logger.Info().Dur("interval", a.interval).Msg("unread aggregator starting")

	a.wg.Add(1)
	go a.runLoop()

	return nil
}

// Stop halts the refresh loop and waits for it to exit.
func (a *UnreadAggregator) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return ErrPollerNotRunning
	}

	a.cancel()
	a.running = false
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info().Msg("unread aggregator stopped")
	return nil
}

// IsRunning returns true if the aggregator is running.
func (a *UnreadAggregator) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// runLoop refreshes once immediately, then on each tick.
func (a *UnreadAggregator) runLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.refresh()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if !a.coord.Session().PollingEnabled() {
				a.logger.Debug().Msg("polling disabled, loop exiting")
				return
			}
			a.refresh()
		}
	}
}

// refresh fetches both counters independently; one failing does not prevent
// the other from updating.
func (a *UnreadAggregator) refresh() {
	if !a.coord.Session().PollingEnabled() {
		return
	}

	if n, err := a.coord.transport.UnreadCount(a.ctx, api.ResourceMessages); err != nil {
		a.coord.observeError(err)
		a.logger.Warn().Err(err).Msg("unread messages fetch failed")
	} else {
		a.coord.Session().setUnreadMessages(n)
	}

	if n, err := a.coord.transport.UnreadCount(a.ctx, api.ResourceRequests); err != nil {
		a.coord.observeError(err)
		a.logger.Warn().Err(err).Msg("unread requests fetch failed")
	} else {
		a.coord.Session().setUnreadRequests(n)
	}
}
