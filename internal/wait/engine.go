// Package wait turns asynchronous DOM changes into synchronous results by
// polling a browser.Page until a Condition holds or a timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/logging"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	MinPollInterval     = 10 * time.Millisecond
)

// ErrInvalidTimeout is returned for negative timeouts.
var ErrInvalidTimeout = errors.New("wait: negative timeout")

// Engine polls a Page. It holds no per-wait state and may be reused for
// any number of sequential waits.
type Engine struct {
	page     browser.Page
	timeout  time.Duration
	interval time.Duration
	logger   *log.Logger
}

// Option configures an Engine created by New.
type Option func(*Engine)

// WithTimeout sets the timeout used when Await is given zero.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPollInterval sets the polling interval. Values under MinPollInterval
// are clamped; zero or negative keeps the default.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d <= 0 {
			return
		}
		if d < MinPollInterval {
			d = MinPollInterval
		}
		e.interval = d
	}
}

// WithLogger sets the logger; waits are logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithPrefix("wait")
		}
	}
}

// New creates an Engine over page.
func New(page browser.Page, opts ...Option) *Engine {
	e := &Engine{
		page:     page,
		timeout:  DefaultTimeout,
		interval: DefaultPollInterval,
		logger:   logging.Discard(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Timeout returns the default timeout.
func (e *Engine) Timeout() time.Duration { return e.timeout }

// PollInterval returns the polling interval.
func (e *Engine) PollInterval() time.Duration { return e.interval }

// Await polls until cond holds and returns the matching element snapshot.
// A zero timeout means the engine default. It returns a
// *browser.TimeoutError once timeout has elapsed without a match, the
// context error if ctx ends first, and any non-transient probe error as is.
// Missing and detached elements are retried, never reported directly.
func (e *Engine) Await(ctx context.Context, cond Condition, timeout time.Duration) (browser.ElementHandle, error) {
	if cond.Locator.IsZero() {
		return browser.ElementHandle{}, browser.ErrInvalidLocator
	}
	switch {
	case timeout < 0:
		return browser.ElementHandle{}, fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	case timeout == 0:
		timeout = e.timeout
	}

	start := time.Now()
	deadline := start.Add(timeout)
	var last error

	for {
		probeCtx, cancel := context.WithDeadline(ctx, deadline)
		st, err := e.page.Inspect(probeCtx, cond.Locator)
		cancel()

		switch {
		case err == nil:
			if cond.Met(st) {
				e.logger.Debug("condition met", "condition", cond, "elapsed", time.Since(start))
				return browser.ElementHandle{Locator: cond.Locator, State: st, ObservedAt: time.Now()}, nil
			}
			last = fmt.Errorf("observed %s", describe(st))
		case ctx.Err() != nil:
			return browser.ElementHandle{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			// Probe cut short by our own deadline; keep the previous observation
		case browser.IsTransient(err):
			last = err
		default:
			return browser.ElementHandle{}, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			elapsed := time.Since(start)
			e.logger.Debug("condition timed out", "condition", cond, "elapsed", elapsed, "last", last)
			return browser.ElementHandle{}, &browser.TimeoutError{
				Condition: cond.String(),
				Elapsed:   elapsed,
				Last:      last,
			}
		}

		// Never sleep past the deadline so the final probe lands on it
		timer := time.NewTimer(min(e.interval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return browser.ElementHandle{}, ctx.Err()
		case <-timer.C:
		}
	}
}
