package kucoin

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/reader"
	"arbflow/symbols"
)

const defaultBaseURL = "https://api.kucoin.com"

// Gateway talks to the KuCoin REST API. Everything the engine needs is
// public: order books via the level2 aggregated endpoint and wallet health
// via the currency detail endpoint.
type Gateway struct {
	cfg     config.ExchangeConfig
	baseURL string
	client  *http.Client
	log     *logger.Log
}

func NewGateway(cfg config.ExchangeConfig) *Gateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	g := &Gateway{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     logger.GetLogger(),
	}

	g.log.WithComponent("kucoin_gateway").WithFields(logger.Fields{
		"base_url": g.baseURL,
	}).Info("kucoin gateway initialized")

	return g
}

func (g *Gateway) Name() string { return "kucoin" }

type symbolsResponse struct {
	Code string `json:"code"`
	Data []struct {
		Symbol        string `json:"symbol"`
		BaseCurrency  string `json:"baseCurrency"`
		QuoteCurrency string `json:"quoteCurrency"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

func (g *Gateway) LoadMarkets(ctx context.Context) ([]string, error) {
	var resp symbolsResponse
	if err := reader.GetJSON(ctx, g.client, g.baseURL+"/api/v2/symbols", nil, &resp); err != nil {
		return nil, fmt.Errorf("kucoin symbols: %w", err)
	}
	if resp.Code != "200000" {
		return nil, venueError(resp.Code)
	}

	pairs := make([]string, 0, len(resp.Data))
	for _, s := range resp.Data {
		if !s.EnableTrading {
			continue
		}
		pairs = append(pairs, s.BaseCurrency+"/"+s.QuoteCurrency)
	}
	return pairs, nil
}

type orderbookResponse struct {
	Code string `json:"code"`
	Data struct {
		Time int64       `json:"time"`
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	} `json:"data"`
}

func (g *Gateway) FetchOrderBook(ctx context.Context, pair string, depth int) (*models.OrderBookSnapshot, error) {
	// The aggregated endpoint comes in fixed depths; 20 covers the default
	// evaluation notional, 100 anything larger.
	endpoint := "level2_20"
	if depth > 20 {
		endpoint = "level2_100"
	}

	var resp orderbookResponse
	u := fmt.Sprintf("%s/api/v1/market/orderbook/%s?symbol=%s",
		g.baseURL, endpoint, symbols.ToExchange(g.Name(), pair))
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("kucoin orderbook %s: %w", pair, err)
	}
	if resp.Code != "200000" {
		return nil, venueError(resp.Code)
	}

	bids, err := reader.ParseLevels(resp.Data.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := reader.ParseLevels(resp.Data.Asks)
	if err != nil {
		return nil, err
	}

	logger.IncrementBookFetch(len(bids) + len(asks))

	return &models.OrderBookSnapshot{
		Exchange:     g.Name(),
		Pair:         pair,
		Timestamp:    time.UnixMilli(resp.Data.Time).UTC(),
		Bids:         bids,
		Asks:         asks,
		WalletStatus: models.WalletStatusOK,
		Networks:     g.cfg.Networks,
	}, nil
}

type currencyResponse struct {
	Code string `json:"code"`
	Data struct {
		Currency string `json:"currency"`
		Chains   []struct {
			ChainName         string `json:"chainName"`
			IsDepositEnabled  bool   `json:"isDepositEnabled"`
			IsWithdrawEnabled bool   `json:"isWithdrawEnabled"`
		} `json:"chains"`
	} `json:"data"`
}

func (g *Gateway) FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error) {
	var resp currencyResponse
	u := fmt.Sprintf("%s/api/v3/currencies/%s", g.baseURL, strings.ToUpper(asset))
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return models.CurrencyStatus{}, fmt.Errorf("kucoin currency %s: %w", asset, err)
	}
	if resp.Code != "200000" {
		return models.CurrencyStatus{}, venueError(resp.Code)
	}

	var networks []string
	for _, chain := range resp.Data.Chains {
		if chain.IsDepositEnabled && chain.IsWithdrawEnabled {
			networks = append(networks, strings.ToUpper(chain.ChainName))
		}
	}
	if len(networks) == 0 {
		return models.CurrencyStatus{WalletStatus: models.WalletStatusDisabled}, nil
	}
	return models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: networks}, nil
}

// venueError maps KuCoin business codes onto the failure taxonomy. The
// 4001xx range covers missing or invalid API keys.
func venueError(code string) error {
	err := fmt.Errorf("kucoin code %s", code)
	if strings.HasPrefix(code, "4001") {
		return reader.Classify(models.FailureAuth, err)
	}
	return reader.Classify(models.FailureData, err)
}
