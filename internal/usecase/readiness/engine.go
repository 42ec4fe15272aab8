// Package readiness runs ordered chains of readiness signals to completion
// or first failure. A chain is a strictly sequential state machine: signal
// i+1 is never attempted until signal i resolves ready, and any terminal
// signal failure terminates the whole chain.
package readiness

import (
	"context"
	"log/slog"
	"time"

	"appboot/internal/domain"
)

const (
	// DefaultIntervalMs is the inter-attempt delay when a signal declares no
	// retry policy.
	DefaultIntervalMs = 100
	// MinIntervalMs floors the inter-attempt delay to keep hot probes from
	// spinning.
	MinIntervalMs = 10
)

// Engine executes readiness signal chains. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	logger *slog.Logger

	// now and sleep are injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine with the real clock.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run polls each signal in order until it reports ready, its deadline
// passes, or its attempt budget is exhausted. Check errors never abort the
// chain by themselves: they count as not-ready attempts with the error text
// as detail. The first terminal signal failure fails the chain; remaining
// signals are never attempted.
func (e *Engine) Run(ctx context.Context, signals []domain.ReadinessSignal) domain.ReadinessChainResult {
	result := domain.ReadinessChainResult{
		OK:               true,
		CompletedSignals: make([]string, 0, len(signals)),
	}
	result.Diagnostics.StartedAt = e.now()

	for _, sig := range signals {
		failed := e.runSignal(ctx, sig, &result)
		if failed != nil {
			result.OK = false
			result.FailedSignal = failed
			break
		}
		result.CompletedSignals = append(result.CompletedSignals, sig.Name)
	}

	result.Diagnostics.FinishedAt = e.now()
	return result
}

// runSignal polls one signal to resolution. It returns nil when the signal
// reported ready, or a FailedSignal describing the terminal condition.
func (e *Engine) runSignal(ctx context.Context, sig domain.ReadinessSignal, result *domain.ReadinessChainResult) *domain.FailedSignal {
	// The deadline is anchored at the start of this signal's polling and is
	// never reset between attempts.
	start := e.now()
	deadline := start.Add(time.Duration(sig.TimeoutMs) * time.Millisecond)
	interval := e.interval(sig)

	for attempt := 1; ; attempt++ {
		attemptStart := e.now()
		res, err := e.check(ctx, sig)
		attemptEnd := e.now()

		entry := domain.ReadinessTimelineEntry{
			SignalName: sig.Name,
			Attempt:    attempt,
			StartedAt:  attemptStart,
			FinishedAt: attemptEnd,
			DurationMs: attemptEnd.Sub(attemptStart).Milliseconds(),
			Ready:      res.Ready,
			Detail:     res.Detail,
		}
		if err != nil {
			entry.Error = err.Error()
		}

		if res.Ready {
			result.Diagnostics.Timeline = append(result.Diagnostics.Timeline, entry)
			e.logger.Debug("signal ready", "signal", sig.Name, "attempt", attempt)
			return nil
		}

		timedOut := !attemptEnd.Before(deadline)
		exhausted := sig.Retry != nil && sig.Retry.MaxAttempts > 0 && attempt >= sig.Retry.MaxAttempts
		entry.TimedOut = timedOut
		result.Diagnostics.Timeline = append(result.Diagnostics.Timeline, entry)

		if timedOut || exhausted {
			e.logger.Warn("signal failed",
				"signal", sig.Name, "attempt", attempt,
				"timed_out", timedOut, "detail", res.Detail)
			return &domain.FailedSignal{
				Name:     sig.Name,
				Detail:   entry.Detail,
				TimedOut: timedOut,
				Attempts: attempt,
			}
		}

		if err := e.sleep(ctx, interval); err != nil {
			result.Diagnostics.Timeline = append(result.Diagnostics.Timeline, domain.ReadinessTimelineEntry{
				SignalName: sig.Name,
				Attempt:    attempt + 1,
				StartedAt:  e.now(),
				FinishedAt: e.now(),
				Detail:     "polling cancelled",
				Error:      err.Error(),
			})
			return &domain.FailedSignal{
				Name:     sig.Name,
				Detail:   "polling cancelled: " + err.Error(),
				Attempts: attempt + 1,
			}
		}
	}
}

// check invokes the signal probe, downgrading probe errors into not-ready
// results carrying the error text.
func (e *Engine) check(ctx context.Context, sig domain.ReadinessSignal) (domain.CheckResult, error) {
	res, err := sig.Check(ctx)
	if err != nil {
		return domain.CheckResult{Ready: false, Detail: err.Error()}, err
	}
	return res, nil
}

func (e *Engine) interval(sig domain.ReadinessSignal) time.Duration {
	ms := DefaultIntervalMs
	if sig.Retry != nil && sig.Retry.IntervalMs > 0 {
		ms = sig.Retry.IntervalMs
	}
	if ms < MinIntervalMs {
		ms = MinIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}
