package channels

import (
	"context"
	"sync"

	"arbflow/logger"
	"arbflow/models"
)

type ChannelStats struct {
	BatchesSent     int64
	FailuresSent    int64
	BatchesDropped  int64
	FailuresDropped int64
}

// Channels connects the scanner to the downstream consumers: opportunity
// batches flow to the writers and the websocket hub, failure events flow to
// the notifier. Sends never block a cycle; a full buffer drops and counts.
type Channels struct {
	Batches  chan models.OpportunityBatch
	Failures chan models.FailureEvent

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(batchBufferSize, failureBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Batches:  make(chan models.OpportunityBatch, batchBufferSize),
		Failures: make(chan models.FailureEvent, failureBufferSize),
		log:      log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"batch_buffer_size":   batchBufferSize,
		"failure_buffer_size": failureBufferSize,
	}).Info("pipeline channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Batches)
	close(c.Failures)
	c.log.WithComponent("channels").Info("pipeline channels closed")
}

func (c *Channels) incrementBatchesSent() {
	c.statsMutex.Lock()
	c.stats.BatchesSent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementFailuresSent() {
	c.statsMutex.Lock()
	c.stats.FailuresSent++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementBatchesDropped() {
	c.statsMutex.Lock()
	c.stats.BatchesDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) incrementFailuresDropped() {
	c.statsMutex.Lock()
	c.stats.FailuresDropped++
	c.statsMutex.Unlock()
}

func (c *Channels) SendBatch(ctx context.Context, batch models.OpportunityBatch) bool {
	select {
	case c.Batches <- batch:
		c.incrementBatchesSent()
		logger.RecordChannelMessage("opportunity_batch", len(batch.Opportunities))
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementBatchesDropped()
		c.log.WithComponent("channels").WithFields(logger.Fields{
			"cycle_id": batch.CycleID,
		}).Warn("batch buffer full, dropping cycle result")
		return false
	}
}

func (c *Channels) SendFailure(ctx context.Context, event models.FailureEvent) bool {
	select {
	case c.Failures <- event:
		c.incrementFailuresSent()
		return true
	case <-ctx.Done():
		return false
	default:
		c.incrementFailuresDropped()
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
