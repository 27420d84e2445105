package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/reader"
	"arbflow/symbols"
)

const defaultBaseURL = "https://www.okx.com"

// Gateway talks to the OKX v5 REST API. OKX rejects requests with the
// default Go user agent, so all calls go through a transport that sets a
// browser-like one. The currencies endpoint is signed with the three-part
// OKX scheme (key, secret, passphrase).
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
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: userAgentTransport{
				agent: "Mozilla/5.0 (X11; Linux x86_64) arbflow/1.0",
				base:  http.DefaultTransport,
			},
		},
		log: logger.GetLogger(),
		now: time.Now,
	}

	g.log.WithComponent("okx_gateway").WithFields(logger.Fields{
		"base_url":     g.baseURL,
		"credentialed": cfg.HasCredentials(),
	}).Info("okx gateway initialized")

	return g
}

func (g *Gateway) Name() string { return "okx" }

type instrumentsResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID string `json:"instId"`
		State  string `json:"state"`
	} `json:"data"`
}

func (g *Gateway) LoadMarkets(ctx context.Context) ([]string, error) {
	var resp instrumentsResponse
	u := g.baseURL + "/api/v5/public/instruments?instType=SPOT"
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("okx instruments: %w", err)
	}
	if resp.Code != "0" {
		return nil, venueError(resp.Code, resp.Msg)
	}

	pairs := make([]string, 0, len(resp.Data))
	for _, inst := range resp.Data {
		if inst.State != "live" {
			continue
		}
		pairs = append(pairs, symbols.ToCanonical(g.Name(), inst.InstID))
	}
	return pairs, nil
}

type booksResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
		Ts   string     `json:"ts"`
	} `json:"data"`
}

func (g *Gateway) FetchOrderBook(ctx context.Context, pair string, depth int) (*models.OrderBookSnapshot, error) {
	var resp booksResponse
	u := fmt.Sprintf("%s/api/v5/market/books?instId=%s&sz=%d",
		g.baseURL, symbols.ToExchange(g.Name(), pair), depth)
	if err := reader.GetJSON(ctx, g.client, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("okx books %s: %w", pair, err)
	}
	if resp.Code != "0" {
		return nil, venueError(resp.Code, resp.Msg)
	}
	if len(resp.Data) == 0 {
		return nil, reader.Classify(models.FailureData, fmt.Errorf("okx books %s: empty data", pair))
	}

	book := resp.Data[0]
	bids, err := reader.ParseLevels(tuples(book.Bids))
	if err != nil {
		return nil, err
	}
	asks, err := reader.ParseLevels(tuples(book.Asks))
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(book.Ts, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	logger.IncrementBookFetch(len(bids) + len(asks))

	return &models.OrderBookSnapshot{
		Exchange:     g.Name(),
		Pair:         pair,
		Timestamp:    ts,
		Bids:         bids,
		Asks:         asks,
		WalletStatus: models.WalletStatusOK,
		Networks:     g.cfg.Networks,
	}, nil
}

type currenciesResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Ccy         string `json:"ccy"`
		Chain       string `json:"chain"`
		CanDep      bool   `json:"canDep"`
		CanWd       bool   `json:"canWd"`
		CanInternal bool   `json:"canInternal"`
	} `json:"data"`
}

func (g *Gateway) FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error) {
	if !g.cfg.HasCredentials() {
		return models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: g.cfg.Networks}, nil
	}

	path := "/api/v5/asset/currencies?ccy=" + strings.ToUpper(asset)
	var resp currenciesResponse
	if err := reader.GetJSON(ctx, g.client, g.baseURL+path, g.signedHeaders("GET", path), &resp); err != nil {
		return models.CurrencyStatus{}, fmt.Errorf("okx currencies: %w", err)
	}
	if resp.Code != "0" {
		return models.CurrencyStatus{}, venueError(resp.Code, resp.Msg)
	}

	var networks []string
	for _, entry := range resp.Data {
		if !strings.EqualFold(entry.Ccy, asset) {
			continue
		}
		if entry.CanDep && entry.CanWd {
			// Chains come as "USDT-TRC20"; keep the network part.
			chain := entry.Chain
			if idx := strings.IndexByte(chain, '-'); idx >= 0 {
				chain = chain[idx+1:]
			}
			networks = append(networks, strings.ToUpper(chain))
		}
	}
	if len(networks) == 0 {
		return models.CurrencyStatus{WalletStatus: models.WalletStatusDisabled}, nil
	}
	return models.CurrencyStatus{WalletStatus: models.WalletStatusOK, Networks: networks}, nil
}

// signedHeaders builds the OKX authentication headers: the signature is a
// base64 HMAC-SHA256 over timestamp + method + requestPath.
func (g *Gateway) signedHeaders(method, path string) map[string]string {
	ts := g.now().UTC().Format("2006-01-02T15:04:05.000Z")
	mac := hmac.New(sha256.New, []byte(g.cfg.APISecret))
	mac.Write([]byte(ts + method + path))

	return map[string]string{
		"OK-ACCESS-KEY":        g.cfg.APIKey,
		"OK-ACCESS-SIGN":       base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		"OK-ACCESS-TIMESTAMP":  ts,
		"OK-ACCESS-PASSPHRASE": g.cfg.Passphrase,
	}
}

// tuples keeps the price and size columns of OKX book rows, which carry
// two extra bookkeeping fields per level.
func tuples(rows [][]string) [][2]string {
	out := make([][2]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, [2]string{row[0], row[1]})
	}
	return out
}

// venueError maps OKX business codes onto the failure taxonomy. The 5011x
// range covers invalid keys, bad signatures and IP restrictions.
func venueError(code, msg string) error {
	err := fmt.Errorf("okx code %s: %s", code, msg)
	if strings.HasPrefix(code, "5011") {
		return reader.Classify(models.FailureAuth, err)
	}
	return reader.Classify(models.FailureData, err)
}
