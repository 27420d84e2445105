package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arbflow/models"
)

type recordingSink struct {
	mu      sync.Mutex
	batches []models.OpportunityBatch
	err     error
}

func (r *recordingSink) WriteBatch(_ context.Context, batch models.OpportunityBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	ch := make(chan models.OpportunityBatch, 2)
	f := NewFanout(ch)

	a := &recordingSink{}
	b := &recordingSink{}
	f.AddSink("a", a)
	f.AddSink("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ch <- models.OpportunityBatch{CycleID: "c1"}
	ch <- models.OpportunityBatch{CycleID: "c2"}

	waitFor(t, func() bool { return a.count() == 2 && b.count() == 2 })

	cancel()
	f.Stop()
}

func TestFanoutFailingSinkIsSkipped(t *testing.T) {
	ch := make(chan models.OpportunityBatch, 1)
	f := NewFanout(ch)

	broken := &recordingSink{err: errors.New("down")}
	healthy := &recordingSink{}
	f.AddSink("broken", broken)
	f.AddSink("healthy", healthy)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ch <- models.OpportunityBatch{CycleID: "c1"}

	waitFor(t, func() bool { return healthy.count() == 1 })

	cancel()
	f.Stop()
}

func TestFanoutDoubleStart(t *testing.T) {
	f := NewFanout(make(chan models.OpportunityBatch))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.Start(ctx); err == nil {
		t.Fatal("second Start accepted")
	}
	cancel()
	f.Stop()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
