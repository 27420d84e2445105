package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/reader"
	"arbflow/symbols"
)

const defaultBaseURL = "https://api.bybit.com"
const recvWindow = "5000"

// Gateway talks to the Bybit v5 REST API. Order books and instrument
// listings are public; the coin info endpoint is signed and used for wallet
// status when credentials are configured.
type Gateway struct {
	cfg     config.ExchangeConfig
	baseURL string
	client  *http.Client
	log     *logger.Log
	now     func() time.Time
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
		now:     time.Now,
	}

	g.log.WithComponent("bybit_gateway").WithFields(logger.Fields{
		"base_url":     g.baseURL,
		"credentialed": cfg.HasCredentials(),
	}).Info("bybit gateway initialized")

	return g
}

func (g *Gateway) Name() string { return "bybit" }

type instrumentsResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol    string `json:"symbol"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
			Status    string `json:"status"`
		} `json:"list"`
	} `json:"result"`
}

func (g *Gateway) LoadMarkets(ctx context.Context) ([]string, error) {
	var resp instrumentsResponse
	u := fmt.Sprintf("%s/v5/market/instruments-info?category=spot&limit=1000", g.baseURL)
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("bybit instruments: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, venueError(resp.RetCode, resp.RetMsg)
	}

	pairs := make([]string, 0, len(resp.Result.List))
	for _, inst := range resp.Result.List {
		if inst.Status != "Trading" {
			continue
		}
		pairs = append(pairs, inst.BaseCoin+"/"+inst.QuoteCoin)
	}
	return pairs, nil
}

type orderbookResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Symbol string      `json:"s"`
		Bids   [][2]string `json:"b"`
		Asks   [][2]string `json:"a"`
		Ts     int64       `json:"ts"`
	} `json:"result"`
}

func (g *Gateway) FetchOrderBook(ctx context.Context, pair string, depth int) (*models.OrderBookSnapshot, error) {
	var resp orderbookResponse
	u := fmt.Sprintf("%s/v5/market/orderbook?category=spot&symbol=%s&limit=%d",
		g.baseURL, symbols.ToExchange(g.Name(), pair), depth)
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("bybit orderbook %s: %w", pair, err)
	}
	if resp.RetCode != 0 {
		return nil, venueError(resp.RetCode, resp.RetMsg)
	}

	bids, err := reader.ParseLevels(resp.Result.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := reader.ParseLevels(resp.Result.Asks)
	if err != nil {
		return nil, err
	}

	logger.IncrementBookFetch(len(bids) + len(asks))

	return &models.OrderBookSnapshot{
		Exchange:     g.Name(),
		Pair:         pair,
		Timestamp:    time.UnixMilli(resp.Result.Ts).UTC(),
		Bids:         bids,
		Asks:         asks,
		WalletStatus: models.WalletStatusOK,
		Networks:     g.cfg.Networks,
	}, nil
}

type coinInfoResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Rows []struct {
			Coin   string `json:"coin"`
			Chains []struct {
				Chain         string `json:"chain"`
				ChainDeposit  string `json:"chainDeposit"`
				ChainWithdraw string `json:"chainWithdraw"`
			} `json:"chains"`
		} `json:"rows"`
	} `json:"result"`
}

func (g *Gateway) FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error) {
	if !g.cfg.HasCredentials() {
		return models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: g.cfg.Networks}, nil
	}

	query := "coin=" + url.QueryEscape(strings.ToUpper(asset))
	var resp coinInfoResponse
	u := fmt.Sprintf("%s/v5/asset/coin/query-info?%s", g.baseURL, query)
	if err := reader.GetJSON(ctx, g.client, u, g.signedHeaders(query), &resp); err != nil {
		return models.CurrencyStatus{}, fmt.Errorf("bybit coin info: %w", err)
	}
	if resp.RetCode != 0 {
		return models.CurrencyStatus{}, venueError(resp.RetCode, resp.RetMsg)
	}

	for _, row := range resp.Result.Rows {
		if !strings.EqualFold(row.Coin, asset) {
			continue
		}
		var networks []string
		for _, chain := range row.Chains {
			if chain.ChainDeposit == "1" && chain.ChainWithdraw == "1" {
				networks = append(networks, strings.ToUpper(chain.Chain))
			}
		}
		status := models.WalletStatusOK
		if len(networks) == 0 {
			status = models.WalletStatusDisabled
		}
		return models.CurrencyStatus{WalletStatus: status, Networks: networks}, nil
	}
	return models.CurrencyStatus{}, reader.Classify(models.FailureData, fmt.Errorf("bybit coin info: asset %s not listed", asset))
}

// signedHeaders builds the v5 authentication headers: the signature is
// HMAC-SHA256 over timestamp + key + recvWindow + queryString.
func (g *Gateway) signedHeaders(query string) map[string]string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(g.cfg.APISecret))
	mac.Write([]byte(ts + g.cfg.APIKey + recvWindow + query))

	return map[string]string{
		"X-BAPI-API-KEY":     g.cfg.APIKey,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": recvWindow,
		"X-BAPI-SIGN":        hex.EncodeToString(mac.Sum(nil)),
	}
}

// venueError maps Bybit business codes onto the failure taxonomy. 10003
// through 10010 cover invalid, expired or IP-restricted keys.
func venueError(code int, msg string) error {
	err := fmt.Errorf("bybit retCode %d: %s", code, msg)
	if code >= 10003 && code <= 10010 {
		return reader.Classify(models.FailureAuth, err)
	}
	return reader.Classify(models.FailureData, err)
}
