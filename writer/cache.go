package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

const latestBatchKey = "arbflow:latest_batch"

// Cache keeps the most recent opportunity batch in Redis so a restarted
// process can serve the API before its first scan cycle completes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Log
}

func NewCache(cfg config.RedisConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	c := &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
		log: logger.GetLogger(),
	}

	c.log.WithComponent("cache").WithFields(logger.Fields{
		"addr": cfg.Addr,
		"ttl":  ttl,
	}).Debug("redis cache initialized")

	return c
}

func (c *Cache) WriteBatch(ctx context.Context, batch models.OpportunityBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch %s: %w", batch.CycleID, err)
	}
	if err := c.client.Set(ctx, latestBatchKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache batch %s: %w", batch.CycleID, err)
	}
	return nil
}

// Latest returns the cached batch when one is present and not expired.
func (c *Cache) Latest(ctx context.Context) (models.OpportunityBatch, bool, error) {
	data, err := c.client.Get(ctx, latestBatchKey).Bytes()
	if err == redis.Nil {
		return models.OpportunityBatch{}, false, nil
	}
	if err != nil {
		return models.OpportunityBatch{}, false, fmt.Errorf("read cached batch: %w", err)
	}

	var batch models.OpportunityBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return models.OpportunityBatch{}, false, fmt.Errorf("decode cached batch: %w", err)
	}
	return batch, true, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
