package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/aggregator"
	"arbflow/channels"
	"arbflow/config"
	"arbflow/models"
)

type fakeCollector struct {
	result    *aggregator.Result
	err       error
	exchanges []string
	calls     int
}

func (f *fakeCollector) Collect(_ context.Context, exchanges, _ []string) (*aggregator.Result, error) {
	f.calls++
	f.exchanges = exchanges
	return f.result, f.err
}

type fakeEvaluator struct {
	opps   []models.Opportunity
	err    error
	intent models.TradeIntent
}

func (f *fakeEvaluator) Evaluate(_ []string, _ map[models.SnapshotKey]*models.OrderBookSnapshot, _ map[string]models.ExchangeProfile, intent models.TradeIntent) ([]models.Opportunity, error) {
	f.intent = intent
	if f.err != nil {
		return nil, f.err
	}
	return f.opps, nil
}

type fakeSettings struct {
	settings models.BotSettings
	err      error
}

func (f *fakeSettings) Get(_ context.Context, _ string) (models.BotSettings, error) {
	if f.err != nil {
		return models.BotSettings{}, f.err
	}
	return f.settings, nil
}

type fakeLoader struct {
	batch models.OpportunityBatch
	ok    bool
	err   error
}

func (f *fakeLoader) Latest(_ context.Context) (models.OpportunityBatch, bool, error) {
	return f.batch, f.ok, f.err
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Pairs: []string{"BTC/USDT"},
		Exchanges: map[string]config.ExchangeConfig{
			"binance": {Enabled: true, APIKey: "k", APISecret: "s", TakerFee: decimal.RequireFromString("0.001")},
			"kucoin":  {Enabled: true, APIKey: "k", APISecret: "s", TakerFee: decimal.RequireFromString("0.001")},
			"okx":     {Enabled: true},
		},
	}
	cfg.Scanner.RefreshRate = time.Hour
	cfg.Evaluator.TradeAmountQuote = decimal.RequireFromString("1000")
	cfg.Evaluator.MinProfitPercentage = decimal.RequireFromString("0.8")
	cfg.Evaluator.RiskPercentage = decimal.RequireFromString("2")
	cfg.Evaluator.RiskRewardRatio = decimal.RequireFromString("3")
	return cfg
}

func emptyResult() *aggregator.Result {
	return &aggregator.Result{Snapshots: map[models.SnapshotKey]*models.OrderBookSnapshot{}}
}

func TestRunOncePublishesBatch(t *testing.T) {
	collector := &fakeCollector{result: emptyResult()}
	eval := &fakeEvaluator{opps: []models.Opportunity{{ID: "btc-usdt:binance>kucoin"}}}
	ch := channels.NewChannels(4, 4)
	s := New(testConfig(), collector, eval, ch, nil)

	batch, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if batch.CycleID == "" {
		t.Error("batch has no cycle ID")
	}
	if len(batch.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(batch.Opportunities))
	}

	latest, ok := s.Latest()
	if !ok || latest.CycleID != batch.CycleID {
		t.Error("latest batch was not retained")
	}
}

func TestRunOnceForwardsVenueFailures(t *testing.T) {
	collector := &fakeCollector{result: &aggregator.Result{
		Snapshots: map[models.SnapshotKey]*models.OrderBookSnapshot{},
		Failures: []models.FailureEvent{
			{Exchange: "okx", Kind: models.FailureGeo, Message: "451"},
		},
	}}
	ch := channels.NewChannels(4, 4)
	s := New(testConfig(), collector, &fakeEvaluator{}, ch, nil)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	select {
	case event := <-ch.Failures:
		if event.Exchange != "okx" || event.Kind != models.FailureGeo {
			t.Errorf("unexpected failure event %+v", event)
		}
	default:
		t.Fatal("failure event was not forwarded")
	}
}

func TestRunOnceTotalOutage(t *testing.T) {
	// Every venue failed: the cycle must error rather than publish an
	// empty batch, and the failure events still reach the channel.
	collector := &fakeCollector{
		result: &aggregator.Result{
			Snapshots: map[models.SnapshotKey]*models.OrderBookSnapshot{},
			Failures: []models.FailureEvent{
				{Exchange: "binance", Kind: models.FailureTransient, Message: "connection refused"},
				{Exchange: "kucoin", Kind: models.FailureAuth, Message: "invalid api key"},
			},
		},
		err: fmt.Errorf("collect: 2 venue failures: %w", aggregator.ErrNoMarketData),
	}
	ch := channels.NewChannels(4, 4)
	s := New(testConfig(), collector, &fakeEvaluator{}, ch, nil)

	_, err := s.RunOnce(context.Background())
	if !errors.Is(err, aggregator.ErrNoMarketData) {
		t.Fatalf("err = %v, want ErrNoMarketData", err)
	}
	if _, ok := s.Latest(); ok {
		t.Error("failed cycle was retained as the latest batch")
	}
	if got := len(ch.Failures); got != 2 {
		t.Errorf("forwarded %d failure events, want 2", got)
	}
}

func TestRunOnceCollectError(t *testing.T) {
	collector := &fakeCollector{err: errors.New("context deadline exceeded")}
	s := New(testConfig(), collector, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("collect error was swallowed")
	}
}

func TestCredentialPolicyFiltersExchanges(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.RequireCredentials = true

	collector := &fakeCollector{result: emptyResult()}
	s := New(cfg, collector, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := []string{"binance", "kucoin"}
	if len(collector.exchanges) != len(want) {
		t.Fatalf("polled %v, want %v", collector.exchanges, want)
	}
	for i, name := range want {
		if collector.exchanges[i] != name {
			t.Errorf("polled %v, want %v", collector.exchanges, want)
		}
	}
}

func TestCredentialPolicyFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.RequireCredentials = true
	cfg.Scanner.FallbackExchanges = []string{"okx", "bybit"}
	kucoin := cfg.Exchanges["kucoin"]
	kucoin.APIKey = ""
	kucoin.APISecret = ""
	cfg.Exchanges["kucoin"] = kucoin

	collector := &fakeCollector{result: emptyResult()}
	s := New(cfg, collector, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// binance keeps credentials; okx joins from the fallback list. bybit is
	// not configured and must be ignored.
	want := map[string]bool{"binance": true, "okx": true}
	if len(collector.exchanges) != 2 {
		t.Fatalf("polled %v, want binance and okx", collector.exchanges)
	}
	for _, name := range collector.exchanges {
		if !want[name] {
			t.Errorf("polled unexpected exchange %q", name)
		}
	}
}

func TestTooFewEligibleExchanges(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.RequireCredentials = true
	for name, ex := range cfg.Exchanges {
		ex.APIKey = ""
		ex.APISecret = ""
		cfg.Exchanges[name] = ex
	}

	s := New(cfg, &fakeCollector{result: emptyResult()}, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("cycle ran with fewer than two eligible exchanges")
	}
}

func TestSettingsOverrideIntent(t *testing.T) {
	settings := &fakeSettings{settings: models.BotSettings{
		UserID:              DefaultUserID,
		TradeAmountQuote:    decimal.RequireFromString("250"),
		MinProfitPercentage: decimal.RequireFromString("2.5"),
		RefreshRateSec:      10,
	}}
	eval := &fakeEvaluator{}
	s := New(testConfig(), &fakeCollector{result: emptyResult()}, eval, channels.NewChannels(1, 1), settings)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if !eval.intent.TradeAmountQuote.Equal(decimal.RequireFromString("250")) {
		t.Errorf("TradeAmountQuote = %s, want 250", eval.intent.TradeAmountQuote)
	}
	if !eval.intent.MinProfitPercentage.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("MinProfitPercentage = %s, want 2.5", eval.intent.MinProfitPercentage)
	}
	// Risk parameters have no per-user override and always come from config.
	if !eval.intent.RiskPercentage.Equal(decimal.RequireFromString("2")) {
		t.Errorf("RiskPercentage = %s, want config value 2", eval.intent.RiskPercentage)
	}
	if !eval.intent.RiskRewardRatio.Equal(decimal.RequireFromString("3")) {
		t.Errorf("RiskRewardRatio = %s, want config value 3", eval.intent.RiskRewardRatio)
	}
}

func TestSettingsErrorFallsBackToConfig(t *testing.T) {
	settings := &fakeSettings{err: errors.New("postgres down")}
	eval := &fakeEvaluator{}
	s := New(testConfig(), &fakeCollector{result: emptyResult()}, eval, channels.NewChannels(1, 1), settings)

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !eval.intent.TradeAmountQuote.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("TradeAmountQuote = %s, want config default 1000", eval.intent.TradeAmountQuote)
	}
}

func TestWarmStartSeedsLatest(t *testing.T) {
	s := New(testConfig(), &fakeCollector{}, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)

	s.WarmStart(context.Background(), &fakeLoader{
		batch: models.OpportunityBatch{CycleID: "cached"},
		ok:    true,
	})

	latest, ok := s.Latest()
	if !ok || latest.CycleID != "cached" {
		t.Fatalf("latest = %+v ok=%v, want cached batch", latest, ok)
	}
}

func TestWarmStartMissIsQuiet(t *testing.T) {
	s := New(testConfig(), &fakeCollector{}, &fakeEvaluator{}, channels.NewChannels(1, 1), nil)

	s.WarmStart(context.Background(), &fakeLoader{})
	if _, ok := s.Latest(); ok {
		t.Fatal("empty warm start produced a latest batch")
	}
}

func TestStartPublishesToChannel(t *testing.T) {
	collector := &fakeCollector{result: emptyResult()}
	ch := channels.NewChannels(4, 4)
	s := New(testConfig(), collector, &fakeEvaluator{}, ch, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case batch := <-ch.Batches:
		if batch.CycleID == "" {
			t.Error("published batch has no cycle ID")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch published after Start")
	}

	if err := s.Start(ctx); err == nil {
		t.Error("second Start accepted")
	}

	cancel()
	s.Stop()
}
