package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/reader"
	"arbflow/symbols"
)

// Gateway adapts the Binance spot REST API through the official go-binance
// client. Market data works without credentials; wallet status needs them
// and falls back to the configured defaults when they are absent.
type Gateway struct {
	cfg    config.ExchangeConfig
	client *binance.Client
	log    *logger.Log
}

func NewGateway(cfg config.ExchangeConfig) *Gateway {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	g := &Gateway{
		cfg:    cfg,
		client: client,
		log:    logger.GetLogger(),
	}

	g.log.WithComponent("binance_gateway").WithFields(logger.Fields{
		"base_url":     client.BaseURL,
		"credentialed": cfg.HasCredentials(),
	}).Info("binance gateway initialized")

	return g
}

func (g *Gateway) Name() string { return "binance" }

// LoadMarkets lists the canonical pairs currently trading on Binance spot.
func (g *Gateway) LoadMarkets(ctx context.Context) ([]string, error) {
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("binance exchange info: %w", err))
	}

	pairs := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		pairs = append(pairs, s.BaseAsset+"/"+s.QuoteAsset)
	}
	return pairs, nil
}

func (g *Gateway) FetchOrderBook(ctx context.Context, pair string, depth int) (*models.OrderBookSnapshot, error) {
	res, err := g.client.NewDepthService().
		Symbol(symbols.ToExchange(g.Name(), pair)).
		Limit(depth).
		Do(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("binance depth %s: %w", pair, err))
	}

	bids, err := priceLevels(res.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := priceLevels(res.Asks)
	if err != nil {
		return nil, err
	}

	logger.IncrementBookFetch(len(bids) + len(asks))

	return &models.OrderBookSnapshot{
		Exchange:     g.Name(),
		Pair:         pair,
		Timestamp:    time.Now().UTC(),
		Bids:         bids,
		Asks:         asks,
		WalletStatus: models.WalletStatusOK,
		Networks:     g.cfg.Networks,
	}, nil
}

// FetchCurrencyStatus reports deposit/withdraw health for one asset. The
// coin info endpoint is credentialed; without keys the configured profile
// is assumed healthy.
func (g *Gateway) FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error) {
	if !g.cfg.HasCredentials() {
		return models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: g.cfg.Networks}, nil
	}

	coins, err := g.client.NewGetAllCoinsInfoService().Do(ctx)
	if err != nil {
		return models.CurrencyStatus{}, classify(fmt.Errorf("binance coin info: %w", err))
	}

	asset = strings.ToUpper(asset)
	for _, coin := range coins {
		if !strings.EqualFold(coin.Coin, asset) {
			continue
		}
		status := models.WalletStatusOK
		if !coin.DepositAllEnable || !coin.WithdrawAllEnable {
			status = models.WalletStatusDisabled
		}
		var networks []string
		for _, n := range coin.NetworkList {
			if n.DepositEnable && n.WithdrawEnable {
				networks = append(networks, strings.ToUpper(n.Network))
			}
		}
		return models.CurrencyStatus{WalletStatus: status, Networks: networks}, nil
	}
	return models.CurrencyStatus{}, reader.Classify(models.FailureData, fmt.Errorf("binance coin info: asset %s not listed", asset))
}

func priceLevels(raw []binance.Bid) ([]models.OrderBookLevel, error) {
	tuples := make([][2]string, len(raw))
	for i, l := range raw {
		tuples[i] = [2]string{l.Price, l.Quantity}
	}
	return reader.ParseLevels(tuples)
}

// classify maps go-binance errors onto the failure taxonomy. Error codes
// -2014 and -2015 cover bad keys and unauthorized IPs; region blocks come
// back as a 451 page the client cannot parse.
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -2014, -2015:
			return reader.Classify(models.FailureAuth, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "451") || strings.Contains(msg, "restricted location") {
		return reader.Classify(models.FailureGeo, err)
	}
	return reader.Classify(models.FailureTransient, err)
}
