package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/logging"
)

// Poller errors.
var (
	ErrPollerAlreadyRunning = errors.New("poller already running")
	ErrPollerNotRunning     = errors.New("poller not running")
)

// PollerConfig contains configuration for the notification poller.
type PollerConfig struct {
	// Wait is the server-side wait budget per long-poll cycle.
	// Default: 30s
	Wait time.Duration

	// Backoff is the fixed delay after a failed cycle. No exponential
	// growth: the long-poll's own server-side timeout already rate-limits
	// request volume, the backoff only guards against tight failure loops.
	// Default: 2s
	Backoff time.Duration
}

// DefaultPollerConfig returns sensible defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Wait:    30 * time.Second,
		Backoff: 2 * time.Second,
	}
}

// Poller blocks on the long-poll endpoint and hands new-message reports to
// the coordinator. Cancellation is cooperative: the loop observes the
// session's polling flag and the context at each iteration boundary; an
// in-flight request is allowed to settle and its result is discarded.
type Poller struct {
	config PollerConfig
	coord  *Coordinator
	logger zerolog.Logger

	mu      gosync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// NewPoller creates a notification poller bound to a coordinator.
func NewPoller(config PollerConfig, coord *Coordinator) *Poller {
	if config.Wait <= 0 {
		config.Wait = DefaultPollerConfig().Wait
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultPollerConfig().Backoff
	}

	return &Poller{
		config: config,
		coord:  coord,
		logger: logging.Component("notify-poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPollerAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.logger.Info().
		Dur("wait", p.config.Wait).
		Dur("backoff", p.config.Backoff).
		Msg("notification poller starting")

	p.wg.Add(1)
	go p.runLoop()

	return nil
}

// Stop halts the polling loop and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPollerNotRunning
	}

	p.logger.Info().Msg("notification poller stopping")
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info().Msg("notification poller stopped")
	return nil
}

// IsRunning returns true if the poller is running.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main polling loop: Waiting, then Relevant/Irrelevant
// handling or a fixed backoff on failure, and back to Waiting until polling
// is disabled.
func (p *Poller) runLoop() {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			return
		}
		if !p.coord.Session().PollingEnabled() {
			p.logger.Debug().Msg("polling disabled, loop exiting")
			return
		}

		result, err := p.coord.transport.WaitForMessages(p.ctx, p.config.Wait)
		if p.ctx.Err() != nil {
			// The result of an in-flight request that outlived cancellation
			// is discarded.
			return
		}
		if err != nil {
			p.coord.observeError(err)
			if api.IsAuth(err) {
				return
			}
			p.logger.Warn().Err(err).Msg("long-poll failed")
			if !p.sleep(p.config.Backoff) {
				return
			}
			continue
		}

		if !result.NewMessage {
			// Server-side wait elapsed with nothing new: the common case.
			continue
		}

		p.logger.Debug().Str("peer_id", result.PeerID).Msg("new message reported")
		p.coord.HandleNotification(p.ctx, result.PeerID)
	}
}

// sleep waits for the backoff duration, returning false when cancelled.
func (p *Poller) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
