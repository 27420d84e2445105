package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/reader"
	"arbflow/symbols"
)

// ErrNoMarketData reports a cycle in which every attempted fetch failed.
// A degraded market (some venues down) is still a successful collect; a
// market with no data at all is not.
var ErrNoMarketData = errors.New("all venue fetches failed")

// Result is one cycle's market view: every (exchange, pair) book that could
// be fetched and validated, plus a failure event for every one that could
// not. Consumers never see a partially fetched cycle; cancellation discards
// everything.
type Result struct {
	Snapshots map[models.SnapshotKey]*models.OrderBookSnapshot
	Failures  []models.FailureEvent
}

type marketEntry struct {
	pairs     map[string]struct{}
	fetchedAt time.Time
}

// Aggregator fans order book fetches out across the registered gateways,
// applying per-venue rate limits and per-call timeouts. Market listings are
// cached so unlisted pairs are skipped without hitting the venue each cycle.
type Aggregator struct {
	cfg      config.AggregatorConfig
	registry *reader.Registry
	limiters map[string]*rate.Limiter

	marketsMu sync.Mutex
	markets   map[string]marketEntry

	log *logger.Log
	now func() time.Time
}

func New(cfg config.AggregatorConfig, registry *reader.Registry, rateLimits map[string]config.RateLimitConfig) *Aggregator {
	limiters := make(map[string]*rate.Limiter, len(rateLimits))
	for name, rl := range rateLimits {
		limit := rate.Inf
		burst := 1
		if rl.RequestsPerSecond > 0 {
			limit = rate.Limit(rl.RequestsPerSecond)
			burst = rl.BurstSize
			if burst <= 0 {
				burst = rl.RequestsPerSecond
			}
		}
		limiters[name] = rate.NewLimiter(limit, burst)
	}

	a := &Aggregator{
		cfg:      cfg,
		registry: registry,
		limiters: limiters,
		markets:  make(map[string]marketEntry),
		log:      logger.GetLogger(),
		now:      time.Now,
	}

	a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"max_workers":      cfg.MaxWorkers,
		"timeout":          cfg.Timeout,
		"market_cache_ttl": cfg.MarketCacheTTL,
	}).Info("aggregator initialized")

	return a
}

// Collect fetches the order books for every (exchange, pair) combination.
// Venue failures are demoted to failure events so one bad venue cannot sink
// a cycle; only context cancellation aborts, and then the partial result is
// discarded. When every attempted fetch fails, Collect returns
// ErrNoMarketData together with the failure events so the caller can both
// report the outage and escalate the individual failures.
func (a *Aggregator) Collect(ctx context.Context, exchanges, pairs []string) (*Result, error) {
	start := a.now()
	log := a.log.WithComponent("aggregator")

	result := &Result{Snapshots: make(map[models.SnapshotKey]*models.OrderBookSnapshot)}
	statuses := newStatusCache()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.MaxWorkers > 0 {
		g.SetLimit(a.cfg.MaxWorkers)
	}

	for _, exchange := range exchanges {
		gateway, ok := a.registry.Get(exchange)
		if !ok {
			log.WithFields(logger.Fields{"exchange": exchange}).Warn("no gateway registered, skipping venue")
			continue
		}
		for _, pair := range pairs {
			exchange, pair, gateway := exchange, pair, gateway
			g.Go(func() error {
				snap, err := a.fetchOne(gctx, gateway, pair, statuses)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					result.Failures = append(result.Failures, models.FailureEvent{
						Exchange: exchange,
						Pair:     pair,
						Kind:     reader.KindOf(err),
						Message:  err.Error(),
						At:       a.now(),
					})
					return nil
				}
				if snap != nil {
					result.Snapshots[models.SnapshotKey{Exchange: exchange, Pair: pair}] = snap
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// A cancelled cycle must not leak a partial market view.
		return nil, err
	}

	if len(result.Snapshots) == 0 && len(result.Failures) > 0 {
		// Zero snapshots with failures present means no venue was
		// reachable, which must not masquerade as a calm market.
		return result, fmt.Errorf("collect: %d venue failures: %w", len(result.Failures), ErrNoMarketData)
	}

	logger.LogPerformanceEntry(log, "aggregator", "collect", a.now().Sub(start), logger.Fields{
		"snapshots": len(result.Snapshots),
		"failures":  len(result.Failures),
	})

	return result, nil
}

// statusCache deduplicates currency status lookups within one collect call,
// so a venue is asked once per asset no matter how many pairs share it.
type statusCache struct {
	mu      sync.Mutex
	entries map[string]*statusEntry
}

type statusEntry struct {
	once   sync.Once
	status models.CurrencyStatus
	err    error
}

func newStatusCache() *statusCache {
	return &statusCache{entries: make(map[string]*statusEntry)}
}

func (c *statusCache) get(ctx context.Context, gateway reader.Gateway, asset string, timeout time.Duration) (models.CurrencyStatus, error) {
	key := gateway.Name() + ":" + asset

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &statusEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		statusCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		entry.status, entry.err = gateway.FetchCurrencyStatus(statusCtx, asset)
	})
	return entry.status, entry.err
}

// fetchOne pulls a single validated snapshot. A nil, nil return means the
// venue simply does not list the pair.
func (a *Aggregator) fetchOne(ctx context.Context, gateway reader.Gateway, pair string, statuses *statusCache) (*models.OrderBookSnapshot, error) {
	exchange := gateway.Name()

	listed, err := a.pairListed(ctx, gateway, pair)
	if err != nil {
		return nil, err
	}
	if !listed {
		a.log.WithComponent("aggregator").WithFields(logger.Fields{
			"exchange": exchange,
			"pair":     pair,
		}).Debug("pair not listed on venue, skipping")
		return nil, nil
	}

	if err := a.wait(ctx, exchange); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	snap, err := gateway.FetchOrderBook(fetchCtx, pair, a.cfg.Depth)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, reader.Classify(models.FailureData, err)
	}

	if base := symbols.BaseAsset(pair); base != "" {
		status, err := statuses.get(ctx, gateway, base, a.cfg.Timeout)
		if err != nil {
			// Wallet health is advisory; a failed check degrades the
			// snapshot rather than dropping it.
			a.log.WithComponent("aggregator").WithError(err).WithFields(logger.Fields{
				"exchange": exchange,
				"asset":    base,
			}).Warn("currency status check failed, assuming maintenance")
			snap.WalletStatus = models.WalletStatusMaintenance
		} else {
			snap.WalletStatus = status.WalletStatus
			if len(status.Networks) > 0 {
				snap.Networks = status.Networks
			}
		}
	}

	return snap, nil
}

// pairListed consults the venue's market listing, refreshing the cached
// copy when it is older than the configured TTL.
func (a *Aggregator) pairListed(ctx context.Context, gateway reader.Gateway, pair string) (bool, error) {
	exchange := gateway.Name()

	a.marketsMu.Lock()
	entry, ok := a.markets[exchange]
	fresh := ok && a.now().Sub(entry.fetchedAt) < a.cfg.MarketCacheTTL
	a.marketsMu.Unlock()

	if !fresh {
		if err := a.wait(ctx, exchange); err != nil {
			return false, err
		}
		listCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		listed, err := gateway.LoadMarkets(listCtx)
		cancel()
		if err != nil {
			return false, fmt.Errorf("load markets: %w", err)
		}

		set := make(map[string]struct{}, len(listed))
		for _, p := range listed {
			set[p] = struct{}{}
		}
		entry = marketEntry{pairs: set, fetchedAt: a.now()}

		a.marketsMu.Lock()
		a.markets[exchange] = entry
		a.marketsMu.Unlock()

		a.log.WithComponent("aggregator").WithFields(logger.Fields{
			"exchange": exchange,
			"markets":  len(set),
		}).Debug("market listing refreshed")
	}

	_, listed := entry.pairs[pair]
	return listed, nil
}

func (a *Aggregator) wait(ctx context.Context, exchange string) error {
	limiter, ok := a.limiters[exchange]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
