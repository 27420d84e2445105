package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/config"
	"arbflow/models"
	"arbflow/reader"
)

type fakeGateway struct {
	name      string
	markets   []string
	books     map[string]*models.OrderBookSnapshot
	bookErr   error
	status    models.CurrencyStatus
	statusErr error
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) LoadMarkets(context.Context) ([]string, error) {
	return f.markets, nil
}

func (f *fakeGateway) FetchOrderBook(_ context.Context, pair string, _ int) (*models.OrderBookSnapshot, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.books[pair], nil
}

func (f *fakeGateway) FetchCurrencyStatus(context.Context, string) (models.CurrencyStatus, error) {
	if f.statusErr != nil {
		return models.CurrencyStatus{}, f.statusErr
	}
	return f.status, nil
}

func level(price, size string) models.OrderBookLevel {
	return models.OrderBookLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func book(exchange, pair string) *models.OrderBookSnapshot {
	return &models.OrderBookSnapshot{
		Exchange:  exchange,
		Pair:      pair,
		Timestamp: time.Unix(1700000000, 0),
		Bids:      []models.OrderBookLevel{level("99", "10")},
		Asks:      []models.OrderBookLevel{level("100", "10")},
	}
}

func testConfig() config.AggregatorConfig {
	return config.AggregatorConfig{
		MaxWorkers:     4,
		Timeout:        2 * time.Second,
		Depth:          20,
		MarketCacheTTL: time.Minute,
	}
}

func newTestAggregator(gateways ...reader.Gateway) *Aggregator {
	registry := reader.NewRegistry()
	for _, g := range gateways {
		registry.Register(g)
	}
	return New(testConfig(), registry, nil)
}

func TestCollectTwoVenues(t *testing.T) {
	a := newTestAggregator(
		&fakeGateway{
			name:    "binance",
			markets: []string{"BTC/USDT"},
			books:   map[string]*models.OrderBookSnapshot{"BTC/USDT": book("binance", "BTC/USDT")},
			status:  models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: []string{"TRC20"}},
		},
		&fakeGateway{
			name:    "kucoin",
			markets: []string{"BTC/USDT"},
			books:   map[string]*models.OrderBookSnapshot{"BTC/USDT": book("kucoin", "BTC/USDT")},
			status:  models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: []string{"TRC20"}},
		},
	)

	result, err := a.Collect(context.Background(), []string{"binance", "kucoin"}, []string{"BTC/USDT"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(result.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(result.Snapshots))
	}
	if len(result.Failures) != 0 {
		t.Errorf("failures = %v", result.Failures)
	}
	snap := result.Snapshots[models.SnapshotKey{Exchange: "binance", Pair: "BTC/USDT"}]
	if snap == nil || snap.WalletStatus != models.WalletStatusOK {
		t.Errorf("binance snapshot = %+v", snap)
	}
	if len(snap.Networks) != 1 || snap.Networks[0] != "TRC20" {
		t.Errorf("networks not merged from currency status: %v", snap.Networks)
	}
}

func TestCollectVenueFailureIsIsolated(t *testing.T) {
	a := newTestAggregator(
		&fakeGateway{
			name:    "binance",
			markets: []string{"BTC/USDT"},
			books:   map[string]*models.OrderBookSnapshot{"BTC/USDT": book("binance", "BTC/USDT")},
			status:  models.CurrencyStatus{WalletStatus: models.WalletStatusOK},
		},
		&fakeGateway{
			name:    "okx",
			markets: []string{"BTC/USDT"},
			bookErr: reader.Classify(models.FailureGeo, errors.New("region blocked")),
		},
	)

	result, err := a.Collect(context.Background(), []string{"binance", "okx"}, []string{"BTC/USDT"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(result.Snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(result.Snapshots))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	f := result.Failures[0]
	if f.Exchange != "okx" || f.Kind != models.FailureGeo {
		t.Errorf("failure = %+v", f)
	}
}

func TestCollectAllVenuesUnreachable(t *testing.T) {
	a := newTestAggregator(
		&fakeGateway{
			name:    "binance",
			markets: []string{"BTC/USDT"},
			bookErr: reader.Classify(models.FailureTransient, errors.New("connection refused")),
		},
		&fakeGateway{
			name:    "okx",
			markets: []string{"BTC/USDT"},
			bookErr: reader.Classify(models.FailureAuth, errors.New("invalid api key")),
		},
	)

	result, err := a.Collect(context.Background(), []string{"binance", "okx"}, []string{"BTC/USDT"})
	if !errors.Is(err, ErrNoMarketData) {
		t.Fatalf("err = %v, want ErrNoMarketData", err)
	}
	if result == nil {
		t.Fatal("result dropped; failure events must survive a total outage")
	}
	if len(result.Snapshots) != 0 || len(result.Failures) != 2 {
		t.Errorf("snapshots = %d failures = %d, want 0 and 2", len(result.Snapshots), len(result.Failures))
	}
}

func TestCollectNilBookIsDataFailure(t *testing.T) {
	// Pair is listed but the gateway returns no snapshot and no error.
	a := newTestAggregator(&fakeGateway{
		name:    "binance",
		markets: []string{"BTC/USDT"},
	})

	result, err := a.Collect(context.Background(), []string{"binance"}, []string{"BTC/USDT"})
	if !errors.Is(err, ErrNoMarketData) {
		t.Fatalf("err = %v, want ErrNoMarketData", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != models.FailureData {
		t.Fatalf("failures = %+v, want one data failure", result.Failures)
	}
}

func TestCollectSkipsUnlistedPair(t *testing.T) {
	a := newTestAggregator(&fakeGateway{
		name:    "binance",
		markets: []string{"ETH/USDT"},
	})

	result, err := a.Collect(context.Background(), []string{"binance"}, []string{"BTC/USDT"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(result.Snapshots) != 0 || len(result.Failures) != 0 {
		t.Errorf("unlisted pair produced output: %+v", result)
	}
}

func TestCollectCancelledDiscardsPartials(t *testing.T) {
	a := newTestAggregator(&fakeGateway{
		name:    "binance",
		markets: []string{"BTC/USDT"},
		books:   map[string]*models.OrderBookSnapshot{"BTC/USDT": book("binance", "BTC/USDT")},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := a.Collect(ctx, []string{"binance"}, []string{"BTC/USDT"})
	if err == nil {
		t.Fatal("cancelled collect returned no error")
	}
	if result != nil {
		t.Errorf("cancelled collect leaked partial result: %+v", result)
	}
}

func TestCollectWalletCheckFailureDegrades(t *testing.T) {
	a := newTestAggregator(&fakeGateway{
		name:      "binance",
		markets:   []string{"BTC/USDT"},
		books:     map[string]*models.OrderBookSnapshot{"BTC/USDT": book("binance", "BTC/USDT")},
		statusErr: errors.New("endpoint down"),
	})

	result, err := a.Collect(context.Background(), []string{"binance"}, []string{"BTC/USDT"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	snap := result.Snapshots[models.SnapshotKey{Exchange: "binance", Pair: "BTC/USDT"}]
	if snap == nil {
		t.Fatal("snapshot dropped on wallet check failure")
	}
	if snap.WalletStatus != models.WalletStatusMaintenance {
		t.Errorf("wallet status = %s, want maintenance", snap.WalletStatus)
	}
}

func TestCollectMarketListingCached(t *testing.T) {
	calls := 0
	g := &countingGateway{fakeGateway: fakeGateway{
		name:    "binance",
		markets: []string{"BTC/USDT"},
		books:   map[string]*models.OrderBookSnapshot{"BTC/USDT": book("binance", "BTC/USDT")},
	}, loads: &calls}

	a := newTestAggregator(g)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := a.Collect(ctx, []string{"binance"}, []string{"BTC/USDT"}); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("LoadMarkets calls = %d, want 1 within TTL", calls)
	}
}

type countingGateway struct {
	fakeGateway
	loads *int
}

func (c *countingGateway) LoadMarkets(ctx context.Context) ([]string, error) {
	*c.loads++
	return c.fakeGateway.LoadMarkets(ctx)
}

func TestCollectStatusFetchedOncePerAsset(t *testing.T) {
	calls := 0
	g := &statusCountingGateway{fakeGateway: fakeGateway{
		name:    "binance",
		markets: []string{"BTC/USDT", "BTC/USDC"},
		books: map[string]*models.OrderBookSnapshot{
			"BTC/USDT": book("binance", "BTC/USDT"),
			"BTC/USDC": book("binance", "BTC/USDC"),
		},
		status: models.CurrencyStatus{WalletStatus: models.WalletStatusOK},
	}, statusCalls: &calls}

	a := newTestAggregator(g)
	result, err := a.Collect(context.Background(), []string{"binance"}, []string{"BTC/USDT", "BTC/USDC"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(result.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(result.Snapshots))
	}
	if calls != 1 {
		t.Errorf("FetchCurrencyStatus calls = %d, want 1 for a shared base asset", calls)
	}
}

type statusCountingGateway struct {
	fakeGateway
	statusCalls *int
}

func (c *statusCountingGateway) FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error) {
	*c.statusCalls++
	return c.fakeGateway.FetchCurrencyStatus(ctx, asset)
}
