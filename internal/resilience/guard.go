// Package resilience bounds every collaborator call with a timeout and a
// per-collaborator circuit breaker. It never retries: each failure is
// returned once so the caller can apply its own degraded behavior.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Aman-CERP/lawrag/internal/config"
)

// Collaborator names used as breaker keys and metric labels.
const (
	Embedding  = "embedding"
	Rerank     = "rerank"
	Judge      = "judge"
	Rewrite    = "rewrite"
	Generation = "generation"
	WebSearch  = "websearch"
)

// Outcome labels passed to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeBreakerOpen = "breaker_open"
)

var (
	// ErrTimeout reports that a collaborator exceeded its time budget.
	ErrTimeout = errors.New("collaborator timed out")

	// ErrBreakerOpen reports that a collaborator's breaker rejected the call.
	ErrBreakerOpen = errors.New("collaborator circuit open")
)

// Observer receives the outcome of every guarded call.
type Observer func(collaborator, outcome string, elapsed time.Duration)

// Guard holds one breaker per collaborator.
type Guard struct {
	cfg      config.ResilienceConfig
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewGuard creates a guard. A disabled breaker config still enforces timeouts.
func NewGuard(cfg config.ResilienceConfig, observer Observer) *Guard {
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = 5
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = 0.6
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}
	return &Guard{
		cfg:      cfg,
		observer: observer,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Call runs fn under timeout and the collaborator's breaker. If fn does not
// return before the deadline Call returns ErrTimeout immediately; fn keeps
// its context and is expected to stop once it is cancelled. A nil guard only
// applies the timeout.
func Call[T any](ctx context.Context, g *Guard, collaborator string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()

	run := func() (any, error) {
		return withTimeout(ctx, timeout, fn)
	}

	var (
		raw any
		err error
	)
	if g != nil && g.cfg.BreakerEnabled {
		raw, err = g.breaker(collaborator).Execute(run)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s: %w: %w", collaborator, ErrBreakerOpen, err)
		}
	} else {
		raw, err = run()
	}

	g.observe(collaborator, outcomeOf(err), time.Since(start))

	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := raw.(T)
	return v, nil
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (any, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

func (g *Guard) breaker(collaborator string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[collaborator]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:        collaborator,
		MaxRequests: 1,
		Timeout:     g.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < g.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= g.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the collaborator.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change",
				slog.String("collaborator", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	b := gobreaker.NewCircuitBreaker[any](settings)
	g.breakers[collaborator] = b
	return b
}

// State returns the breaker state for a collaborator ("closed" if unused).
func (g *Guard) State(collaborator string) string {
	if g == nil || !g.cfg.BreakerEnabled {
		return gobreaker.StateClosed.String()
	}
	return g.breaker(collaborator).State().String()
}

func (g *Guard) observe(collaborator, outcome string, elapsed time.Duration) {
	if g == nil || g.observer == nil {
		return
	}
	g.observer(collaborator, outcome, elapsed)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrBreakerOpen):
		return OutcomeBreakerOpen
	default:
		return OutcomeError
	}
}

// Reason returns a short failure label for logs and error details.
func Reason(err error) string {
	return outcomeOf(err)
}
