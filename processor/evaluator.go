package processor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/logger"
	"arbflow/models"
)

var hundred = decimal.NewFromInt(100)

// Evaluator combines VWAP pricing, the fee model and the risk scorer into a
// ranked set of cross-exchange opportunities. It is a pure function of its
// inputs: identical snapshots and intent yield identical output.
type Evaluator struct {
	risk RiskConfig
	log  *logger.Log
	now  func() time.Time
}

// NewEvaluator builds an Evaluator with the given risk tuning.
func NewEvaluator(risk RiskConfig) *Evaluator {
	return &Evaluator{
		risk: risk.Normalize(),
		log:  logger.GetLogger(),
		now:  time.Now,
	}
}

// Evaluate walks every ordered venue pair per trading pair and emits the
// candidates that survive profitability and compatibility filtering, in
// discovery order. Loss-making, wallet-impaired, network-incompatible and
// inverted-spread candidates are discarded, never emitted with negative
// numbers. A malformed intent fails the whole call; any per-venue data
// problem only skips the affected candidate.
func (e *Evaluator) Evaluate(pairs []string, snapshots map[models.SnapshotKey]*models.OrderBookSnapshot, profiles map[string]models.ExchangeProfile, intent models.TradeIntent) ([]models.Opportunity, error) {
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	log := e.log.WithComponent("evaluator")
	amount := intent.TradeAmountQuote
	detectedAt := e.now()

	var out []models.Opportunity
	for _, pair := range pairs {
		venues := e.venuesForPair(pair, snapshots)
		if len(venues) < 2 {
			log.WithFields(logger.Fields{"pair": pair, "venues": len(venues)}).Debug("skipping pair, fewer than two venues with depth")
			continue
		}

		// Both directions: spreads are not symmetric under fees.
		for _, buy := range venues {
			for _, sell := range venues {
				if buy == sell {
					continue
				}
				opp, ok := e.evaluateCandidate(pair, buy, sell, snapshots, profiles, intent, amount, detectedAt)
				if ok {
					out = append(out, opp)
				}
			}
		}
	}
	return out, nil
}

// venuesForPair returns the exchanges holding a valid two-sided snapshot for
// the pair, sorted by name so evaluation order is deterministic.
func (e *Evaluator) venuesForPair(pair string, snapshots map[models.SnapshotKey]*models.OrderBookSnapshot) []string {
	var venues []string
	for key, snap := range snapshots {
		if key.Pair != pair || !snap.HasDepth() {
			continue
		}
		if err := snap.Validate(); err != nil {
			e.log.WithComponent("evaluator").WithError(err).WithFields(logger.Fields{
				"exchange": key.Exchange,
				"pair":     pair,
			}).Warn("dropping snapshot with integrity anomaly")
			continue
		}
		venues = append(venues, key.Exchange)
	}
	sort.Strings(venues)
	return venues
}

func (e *Evaluator) evaluateCandidate(pair, buyExchange, sellExchange string, snapshots map[models.SnapshotKey]*models.OrderBookSnapshot, profiles map[string]models.ExchangeProfile, intent models.TradeIntent, amount decimal.Decimal, detectedAt time.Time) (models.Opportunity, bool) {
	buySnap := snapshots[models.SnapshotKey{Exchange: buyExchange, Pair: pair}]
	sellSnap := snapshots[models.SnapshotKey{Exchange: sellExchange, Pair: pair}]

	buyVWAP := EstimateVWAP(buySnap.Asks, amount)
	sellVWAP := EstimateVWAP(sellSnap.Bids, amount)
	if buyVWAP.Sign() <= 0 || sellVWAP.Sign() <= 0 {
		e.log.WithComponent("evaluator").WithFields(logger.Fields{
			"pair": pair, "buy": buyExchange, "sell": sellExchange,
		}).Debug("skipping candidate with unpriceable side")
		return models.Opportunity{}, false
	}
	if !sellVWAP.GreaterThan(buyVWAP) {
		return models.Opportunity{}, false
	}

	if !buySnap.WalletsHealthy() || !sellSnap.WalletsHealthy() {
		return models.Opportunity{}, false
	}
	network := models.CommonNetwork(buySnap.Networks, sellSnap.Networks)
	if network == "" {
		return models.Opportunity{}, false
	}

	buyProfile := profiles[buyExchange].Normalize()
	sellProfile := profiles[sellExchange].Normalize()

	// Withdrawal leaves the buy venue, so its fee schedule applies.
	fees := ComputeCosts(amount, buyProfile.TakerFee, sellProfile.TakerFee, buyProfile.WithdrawalFeeUsdt, buyVWAP, sellVWAP)
	baseAcquired := amount.Div(buyVWAP)
	netProfit := sellVWAP.Sub(buyVWAP).Mul(baseAcquired).Sub(fees)
	if netProfit.Sign() < 0 {
		return models.Opportunity{}, false
	}

	netProfitPct := netProfit.Div(amount).Mul(hundred)
	grossSpreadPct := sellVWAP.Sub(buyVWAP).Div(buyVWAP).Mul(hundred)
	feesPct := fees.Div(amount).Mul(hundred)

	bookSpread := buySnap.TopSpreadPct()
	if s := sellSnap.TopSpreadPct(); s.GreaterThan(bookSpread) {
		bookSpread = s
	}
	score, tier := Score(e.risk, bookSpread, netProfit, amount, true)

	status := models.StatusAnalyzing
	if netProfitPct.GreaterThanOrEqual(intent.MinProfitPercentage) {
		status = models.StatusAvailable
	}

	return models.Opportunity{
		ID:                  candidateID(pair, buyExchange, sellExchange),
		Pair:                pair,
		BuyExchange:         buyExchange,
		SellExchange:        sellExchange,
		BuyVWAP:             buyVWAP,
		SellVWAP:            sellVWAP,
		GrossSpreadPct:      grossSpreadPct,
		FeesPct:             feesPct,
		NetProfitPct:        netProfitPct,
		ExpectedProfitQuote: netProfit,
		RiskScore:           score,
		RecommendationTier:  tier,
		Status:              status,
		CommonNetwork:       network,
		DetectedAt:          detectedAt,
	}, true
}

// candidateID is deterministic so repeated evaluations of the same inputs
// produce identical opportunity sets.
func candidateID(pair, buyExchange, sellExchange string) string {
	slug := strings.ToLower(strings.ReplaceAll(pair, "/", "-"))
	return fmt.Sprintf("%s:%s>%s", slug, buyExchange, sellExchange)
}

// SortByNetProfit orders a copy of the opportunities by descending net
// profit. Presentation convenience; Evaluate itself preserves discovery
// order.
func SortByNetProfit(opps []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, len(opps))
	copy(out, opps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetProfitPct.GreaterThan(out[j].NetProfitPct)
	})
	return out
}
