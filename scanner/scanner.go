package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbflow/aggregator"
	"arbflow/channels"
	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/processor"
)

// DefaultUserID identifies the single operator profile until multi-user
// settings land.
const DefaultUserID = "default"

// Collector fetches one cycle's order books. Satisfied by
// aggregator.Aggregator.
type Collector interface {
	Collect(ctx context.Context, exchanges, pairs []string) (*aggregator.Result, error)
}

// Evaluator turns one cycle's snapshots into ranked opportunities.
// Satisfied by processor.Evaluator.
type Evaluator interface {
	Evaluate(pairs []string, snapshots map[models.SnapshotKey]*models.OrderBookSnapshot, profiles map[string]models.ExchangeProfile, intent models.TradeIntent) ([]models.Opportunity, error)
}

// SettingsSource provides per-user scan settings. Satisfied by
// writer.SettingsStore; nil means config values only.
type SettingsSource interface {
	Get(ctx context.Context, userID string) (models.BotSettings, error)
}

// BatchLoader restores the last published batch, typically from the Redis
// cache, so a restart does not serve an empty API until the first cycle.
type BatchLoader interface {
	Latest(ctx context.Context) (models.OpportunityBatch, bool, error)
}

// Scanner drives the scan loop: on every tick it collects order books from
// the eligible venues, evaluates cross-venue candidates, and publishes the
// resulting batch and any venue failures to the pipeline channels.
type Scanner struct {
	cfg       *config.Config
	collector Collector
	evaluator Evaluator
	channels  *channels.Channels
	settings  SettingsSource

	latestMu  sync.RWMutex
	latest    models.OpportunityBatch
	hasLatest bool

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	now     func() time.Time
}

func New(cfg *config.Config, collector Collector, evaluator Evaluator, ch *channels.Channels, settings SettingsSource) *Scanner {
	return &Scanner{
		cfg:       cfg,
		collector: collector,
		evaluator: evaluator,
		channels:  ch,
		settings:  settings,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
		now:       time.Now,
	}
}

// WarmStart seeds the latest batch from a previous run's cache. Failures are
// logged and ignored; a cold start is always acceptable.
func (s *Scanner) WarmStart(ctx context.Context, loader BatchLoader) {
	batch, ok, err := loader.Latest(ctx)
	if err != nil {
		s.log.WithComponent("scanner").WithError(err).Warn("failed to restore cached batch")
		return
	}
	if !ok {
		return
	}

	s.latestMu.Lock()
	s.latest = batch
	s.hasLatest = true
	s.latestMu.Unlock()

	s.log.WithComponent("scanner").WithFields(logger.Fields{
		"cycle_id":      batch.CycleID,
		"opportunities": len(batch.Opportunities),
	}).Info("restored latest batch from cache")
}

func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scanner already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.log.WithComponent("scanner").WithFields(logger.Fields{
		"refresh_rate": s.cfg.Scanner.RefreshRate,
		"pairs":        len(s.cfg.Pairs),
	}).Info("starting scanner")

	s.wg.Add(1)
	go s.run()

	return nil
}

func (s *Scanner) run() {
	defer s.wg.Done()

	// First cycle fires immediately; the ticker covers the rest.
	s.cycle()

	ticker := time.NewTicker(s.refreshRate())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cycle()
			ticker.Reset(s.refreshRate())
		}
	}
}

func (s *Scanner) cycle() {
	batch, err := s.RunOnce(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.log.WithComponent("scanner").WithError(err).Error("scan cycle failed")
		return
	}
	s.channels.SendBatch(s.ctx, batch)
}

// RunOnce executes a single scan cycle and returns the batch. The batch is
// retained for Latest regardless of whether the caller publishes it.
func (s *Scanner) RunOnce(ctx context.Context) (models.OpportunityBatch, error) {
	start := s.now()
	log := s.log.WithComponent("scanner")

	settings := s.loadSettings(ctx)
	intent := s.intentFor(settings)

	exchanges := s.eligibleExchanges()
	if len(exchanges) < 2 {
		return models.OpportunityBatch{}, fmt.Errorf("scan cycle: %d eligible exchanges, need at least 2", len(exchanges))
	}

	result, err := s.collector.Collect(ctx, exchanges, intent.Pairs)
	// A total outage returns an error together with the failure events;
	// those still have to reach the notify pump.
	if result != nil {
		for _, event := range result.Failures {
			s.channels.SendFailure(ctx, event)
		}
	}
	if err != nil {
		return models.OpportunityBatch{}, fmt.Errorf("scan cycle: %w", err)
	}

	opps, err := s.evaluator.Evaluate(intent.Pairs, result.Snapshots, s.profiles(), intent)
	if err != nil {
		return models.OpportunityBatch{}, fmt.Errorf("scan cycle: %w", err)
	}

	batch := models.OpportunityBatch{
		CycleID:       uuid.New().String(),
		Opportunities: processor.SortByNetProfit(opps),
		StartedAt:     start,
		Duration:      s.now().Sub(start),
	}

	s.latestMu.Lock()
	s.latest = batch
	s.hasLatest = true
	s.latestMu.Unlock()

	logger.IncrementScanCycle(len(opps))
	log.WithFields(logger.Fields{
		"cycle_id":      batch.CycleID,
		"exchanges":     len(exchanges),
		"snapshots":     len(result.Snapshots),
		"failures":      len(result.Failures),
		"opportunities": len(opps),
		"duration_ms":   batch.Duration.Milliseconds(),
	}).Info("scan cycle complete")

	return batch, nil
}

// Latest returns the most recent batch, whether scanned or warm-started.
func (s *Scanner) Latest() (models.OpportunityBatch, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest, s.hasLatest
}

func (s *Scanner) loadSettings(ctx context.Context) models.BotSettings {
	amount, minProfit, _, _ := s.cfg.Intent()
	fallback := models.BotSettings{
		UserID:              DefaultUserID,
		TradeAmountQuote:    amount,
		MinProfitPercentage: minProfit,
	}
	if s.settings == nil {
		return fallback
	}

	bs, err := s.settings.Get(ctx, DefaultUserID)
	if err != nil {
		s.log.WithComponent("scanner").WithError(err).Warn("settings unavailable, using config defaults")
		return fallback
	}
	if bs.TradeAmountQuote.Sign() <= 0 {
		bs.TradeAmountQuote = amount
	}
	if bs.MinProfitPercentage.Sign() <= 0 {
		bs.MinProfitPercentage = minProfit
	}
	return bs
}

func (s *Scanner) intentFor(settings models.BotSettings) models.TradeIntent {
	_, _, riskPct, riskReward := s.cfg.Intent()
	return models.TradeIntent{
		Pairs:               s.cfg.Pairs,
		TradeAmountQuote:    settings.TradeAmountQuote,
		MinProfitPercentage: settings.MinProfitPercentage,
		RiskPercentage:      riskPct,
		RiskRewardRatio:     riskReward,
	}
}

func (s *Scanner) refreshRate() time.Duration {
	rate := s.cfg.Scanner.RefreshRate

	settings := s.loadSettings(s.ctx)
	if settings.RefreshRateSec > 0 {
		rate = time.Duration(settings.RefreshRateSec) * time.Second
	}
	if rate <= 0 {
		rate = 30 * time.Second
	}
	return rate
}

// eligibleExchanges applies the credential policy to the enabled venues.
// When the policy leaves fewer than two venues, the configured fallback list
// is admitted so scanning can continue on public endpoints.
func (s *Scanner) eligibleExchanges() []string {
	enabled := s.cfg.EnabledExchanges()
	if !s.cfg.Scanner.RequireCredentials {
		return enabled
	}

	var eligible []string
	for _, name := range enabled {
		if s.cfg.Exchanges[name].HasCredentials() {
			eligible = append(eligible, name)
		}
	}
	if len(eligible) >= 2 {
		return eligible
	}

	seen := make(map[string]struct{}, len(eligible))
	for _, name := range eligible {
		seen[name] = struct{}{}
	}
	for _, name := range s.cfg.Scanner.FallbackExchanges {
		ex, ok := s.cfg.Exchanges[name]
		if !ok || !ex.Enabled {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		eligible = append(eligible, name)
		seen[name] = struct{}{}
	}
	return eligible
}

func (s *Scanner) profiles() map[string]models.ExchangeProfile {
	profiles := make(map[string]models.ExchangeProfile, len(s.cfg.Exchanges))
	for name, ex := range s.cfg.Exchanges {
		if !ex.Enabled {
			continue
		}
		profiles[name] = models.ExchangeProfile{
			Name:              name,
			MakerFee:          ex.MakerFee,
			TakerFee:          ex.TakerFee,
			WithdrawalFeeUsdt: ex.WithdrawalFeeUsdt,
			Networks:          ex.Networks,
		}.Normalize()
	}
	return profiles
}

func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.wg.Wait()
	s.log.WithComponent("scanner").Info("scanner stopped")
}
