package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"callbridge/internal/calls"
)

type fakeSummarizer struct {
	calls atomic.Int64
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (Summary, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Summary{}, f.err
	}
	return Summary{Summary: "venting about prior auth", FrustrationScore: 8}, nil
}

type fakeExtractor struct {
	calls atomic.Int64
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, transcript string) (Quote, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Quote{}, f.err
	}
	return Quote{Text: "revolutionary math", StartSeconds: 12.5, EndSeconds: 19.0}, nil
}

func seedRecord(t *testing.T, repo *calls.MemoryRepo) string {
	t.Helper()
	res, err := repo.Upsert(context.Background(), "rec-1", calls.CallEvent{
		Provider:       calls.ProviderRetell,
		ProviderCallID: "call_1",
		Type:           calls.EventEnded,
		Transcript:     "long transcript",
		AccountID:      "acct_1",
	}, time.Now())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return res.ID
}

func TestMaybeDispatch_RunsBothBranchesOnceAndCompletes(t *testing.T) {
	repo := calls.NewMemoryRepo()
	id := seedRecord(t, repo)
	sum := &fakeSummarizer{}
	ext := &fakeExtractor{}
	d := NewDispatcher(repo, sum, ext, time.Second, nil)

	ok, err := d.MaybeDispatch(context.Background(), id, "long transcript")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ok {
		t.Fatalf("expected to win dispatch")
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if sum.calls.Load() != 1 || ext.calls.Load() != 1 {
		t.Fatalf("expected exactly one call per branch, got %d/%d", sum.calls.Load(), ext.calls.Load())
	}

	rec, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.EnrichmentState != calls.EnrichmentDone {
		t.Fatalf("expected done, got %v", rec.EnrichmentState)
	}
	if rec.Summary == "" || rec.FrustrationScore != 8 {
		t.Fatalf("summary fields not written: %+v", rec)
	}
	if rec.QuotableQuote == "" || rec.QuoteStartSeconds != 12.5 {
		t.Fatalf("quote fields not written: %+v", rec)
	}
}

func TestMaybeDispatch_ConcurrentCallsDispatchExactlyOnce(t *testing.T) {
	repo := calls.NewMemoryRepo()
	id := seedRecord(t, repo)
	sum := &fakeSummarizer{}
	ext := &fakeExtractor{}
	d := NewDispatcher(repo, sum, ext, time.Second, nil)

	const n = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.MaybeDispatch(context.Background(), id, "long transcript")
			if err != nil {
				t.Errorf("dispatch: %v", err)
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if sum.calls.Load() != 1 || ext.calls.Load() != 1 {
		t.Fatalf("expected one external call pair, got %d/%d", sum.calls.Load(), ext.calls.Load())
	}
}

func TestMaybeDispatch_SkipsWithoutTranscriptOrEnrichers(t *testing.T) {
	repo := calls.NewMemoryRepo()
	id := seedRecord(t, repo)

	d := NewDispatcher(repo, &fakeSummarizer{}, &fakeExtractor{}, time.Second, nil)
	if ok, _ := d.MaybeDispatch(context.Background(), id, ""); ok {
		t.Fatalf("empty transcript must not dispatch")
	}

	none := NewDispatcher(repo, nil, nil, time.Second, nil)
	if none.Enabled() {
		t.Fatalf("dispatcher with no enrichers must report disabled")
	}
	if ok, _ := none.MaybeDispatch(context.Background(), id, "x"); ok {
		t.Fatalf("disabled dispatcher must not dispatch")
	}
}

func TestMaybeDispatch_SingleEnricherReachesDone(t *testing.T) {
	repo := calls.NewMemoryRepo()
	id := seedRecord(t, repo)
	sum := &fakeSummarizer{}
	d := NewDispatcher(repo, sum, nil, time.Second, nil)

	ok, err := d.MaybeDispatch(context.Background(), id, "long transcript")
	if err != nil || !ok {
		t.Fatalf("dispatch: ok=%v err=%v", ok, err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec, _ := repo.Get(context.Background(), id)
	if rec.EnrichmentState != calls.EnrichmentDone {
		t.Fatalf("single configured enricher should complete state, got %v", rec.EnrichmentState)
	}
}

func TestMaybeDispatch_BranchFailureLeavesPendingSibling(t *testing.T) {
	repo := calls.NewMemoryRepo()
	id := seedRecord(t, repo)
	sum := &fakeSummarizer{err: errors.New("llm timeout")}
	ext := &fakeExtractor{}
	d := NewDispatcher(repo, sum, ext, time.Second, nil)

	if ok, err := d.MaybeDispatch(context.Background(), id, "long transcript"); err != nil || !ok {
		t.Fatalf("dispatch: ok=%v err=%v", ok, err)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	rec, _ := repo.Get(context.Background(), id)
	// The failed branch never rolled anything back; the sibling's write landed.
	if rec.QuotableQuote == "" {
		t.Fatalf("sibling branch should have completed: %+v", rec)
	}
	if rec.EnrichmentState != calls.EnrichmentPending {
		t.Fatalf("failed branch must leave state pending for operator review, got %v", rec.EnrichmentState)
	}

	// Re-dispatch is blocked until an operator resets.
	if ok, _ := d.MaybeDispatch(context.Background(), id, "long transcript"); ok {
		t.Fatalf("pending state must block re-dispatch")
	}
	if reset, _ := repo.ResetEnrichment(context.Background(), id, time.Now()); !reset {
		t.Fatalf("operator reset should succeed from pending")
	}
	sum.err = nil
	if ok, _ := d.MaybeDispatch(context.Background(), id, "long transcript"); !ok {
		t.Fatalf("dispatch should succeed after operator reset")
	}
	_ = d.Drain(context.Background())
}
