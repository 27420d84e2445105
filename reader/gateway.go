package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"arbflow/models"
)

// Gateway is the narrow surface the aggregator needs from a venue: list the
// markets it trades, fetch one order book, and report per-asset wallet
// health. Implementations must be safe for concurrent use.
type Gateway interface {
	Name() string
	LoadMarkets(ctx context.Context) ([]string, error)
	FetchOrderBook(ctx context.Context, pair string, depth int) (*models.OrderBookSnapshot, error)
	FetchCurrencyStatus(ctx context.Context, asset string) (models.CurrencyStatus, error)
}

// ClassifiedError tags a gateway failure with the taxonomy the notifier
// keys on. Gateways wrap transport and venue errors on the way out so the
// aggregator never inspects venue-specific payloads.
type ClassifiedError struct {
	Kind models.FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify wraps err with the given kind. A nil err returns nil.
func Classify(kind models.FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from an error chain, defaulting to
// transient for anything untagged.
func KindOf(err error) models.FailureKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return models.FailureTransient
}

// ClassifyStatus maps an HTTP status code onto the failure taxonomy.
// 401/403 are credential problems, 451 is a geo block, 4xx otherwise means
// the venue rejected the request shape, and everything else is transient.
func ClassifyStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == 401 || status == 403:
		return Classify(models.FailureAuth, err)
	case status == 451:
		return Classify(models.FailureGeo, err)
	case status >= 400 && status < 500:
		return Classify(models.FailureData, err)
	default:
		return Classify(models.FailureTransient, err)
	}
}

// ParseLevels converts the [price, size] string tuples every venue's REST
// API returns into decimal order book levels. A malformed tuple fails the
// whole book; a half-parsed book is worse than no book.
func ParseLevels(raw [][2]string) ([]models.OrderBookLevel, error) {
	levels := make([]models.OrderBookLevel, 0, len(raw))
	for _, entry := range raw {
		price, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, Classify(models.FailureData, fmt.Errorf("parse price %q: %w", entry[0], err))
		}
		size, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, Classify(models.FailureData, fmt.Errorf("parse size %q: %w", entry[1], err))
		}
		levels = append(levels, models.OrderBookLevel{Price: price, Size: size})
	}
	return levels, nil
}

// Registry holds the configured gateways keyed by venue name.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

func (r *Registry) Get(name string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[name]
	return g, ok
}

// Names returns the registered venue names sorted lexicographically so
// callers iterate in a stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
