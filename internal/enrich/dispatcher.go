package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callbridge/internal/calls"
)

// Dispatcher schedules post-call enrichment at most once per call.
//
// The guard is the storage-side none -> pending transition, not anything in
// process memory: N concurrent MaybeDispatch calls (even across instances)
// produce exactly one winner, and only the winner spawns the branches.
//
// Branches are explicit goroutines with their own deadline and logger,
// detached from the webhook request so the provider response never waits on
// an LLM. A failed branch is logged and leaves the state at pending; there is
// no automatic retry, because re-running a text-generation call is an
// externally visible duplicate. Operators reset the state to re-attempt.
type Dispatcher struct {
	repo       calls.Repository
	summarizer Summarizer
	quotes     QuoteExtractor

	timeout time.Duration
	clock   func() time.Time
	log     *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(repo calls.Repository, s Summarizer, q QuoteExtractor, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		repo:       repo,
		summarizer: s,
		quotes:     q,
		timeout:    timeout,
		clock:      time.Now,
		log:        log.With("component", "enrich"),
	}
}

// Enabled reports whether any enricher is configured.
func (d *Dispatcher) Enabled() bool { return d.branches() > 0 }

func (d *Dispatcher) branches() int {
	n := 0
	if d.summarizer != nil {
		n++
	}
	if d.quotes != nil {
		n++
	}
	return n
}

// MaybeDispatch attempts the none -> pending transition for callID and, on
// winning it, schedules the enabled enrichment branches. Returns whether this
// call won the dispatch. Losing (already pending/done) is not an error.
func (d *Dispatcher) MaybeDispatch(ctx context.Context, callID, transcript string) (bool, error) {
	if transcript == "" || !d.Enabled() {
		return false, nil
	}

	ok, err := d.repo.BeginEnrichment(ctx, callID, d.branches(), d.clock().UTC())
	if err != nil {
		return false, err
	}
	if !ok {
		d.log.Debug("enrichment already dispatched", "call_id", callID)
		return false, nil
	}

	if d.summarizer != nil {
		d.spawn(callID, func(ctx context.Context) error {
			sum, err := d.summarizer.Summarize(ctx, transcript)
			if err != nil {
				return err
			}
			return d.repo.SaveSummary(ctx, callID, sum.Summary, sum.FrustrationScore, d.clock().UTC())
		}, "summarize")
	}
	if d.quotes != nil {
		d.spawn(callID, func(ctx context.Context) error {
			q, err := d.quotes.Extract(ctx, transcript)
			if err != nil {
				return err
			}
			return d.repo.SaveQuote(ctx, callID, q.Text, q.StartSeconds, q.EndSeconds, d.clock().UTC())
		}, "extract_quote")
	}
	return true, nil
}

func (d *Dispatcher) spawn(callID string, fn func(context.Context) error, task string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request: the webhook response has already been sent.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.log.Error("enrichment branch failed", "task", task, "call_id", callID, "err", err)
			return
		}
		d.log.Info("enrichment branch completed", "task", task, "call_id", callID)
	}()
}

// Drain waits for in-flight branches, bounded by ctx. Used on shutdown and in
// tests; new dispatches during a drain are not prevented.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
