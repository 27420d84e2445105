package writer

import (
	"context"
	"fmt"
	"sync"

	"arbflow/logger"
	"arbflow/models"
)

// BatchSink receives one scan cycle's opportunity batch. Implementations
// must tolerate being called from a single goroutine in cycle order.
type BatchSink interface {
	WriteBatch(ctx context.Context, batch models.OpportunityBatch) error
}

// Fanout consumes the batch channel and forwards every batch to each
// registered sink. A failing sink is logged and skipped; the batch still
// reaches the others.
type Fanout struct {
	batches <-chan models.OpportunityBatch
	sinks   []namedSink

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

type namedSink struct {
	name string
	sink BatchSink
}

func NewFanout(batches <-chan models.OpportunityBatch) *Fanout {
	return &Fanout{
		batches: batches,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
	}
}

// AddSink registers a sink under a name used in failure logs. Not safe to
// call after Start.
func (f *Fanout) AddSink(name string, sink BatchSink) {
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
}

func (f *Fanout) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("fanout already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	f.log.WithComponent("fanout").WithFields(logger.Fields{
		"sinks": len(f.sinks),
	}).Info("starting batch fanout")

	f.wg.Add(1)
	go f.run()

	return nil
}

func (f *Fanout) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case batch, ok := <-f.batches:
			if !ok {
				return
			}
			f.dispatch(batch)
		}
	}
}

func (f *Fanout) dispatch(batch models.OpportunityBatch) {
	for _, ns := range f.sinks {
		if err := ns.sink.WriteBatch(f.ctx, batch); err != nil {
			f.log.WithComponent("fanout").WithError(err).WithFields(logger.Fields{
				"sink":     ns.name,
				"cycle_id": batch.CycleID,
			}).Warn("sink rejected batch")
		}
	}
}

func (f *Fanout) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	f.wg.Wait()
	f.log.WithComponent("fanout").Info("batch fanout stopped")
}
