package processor

import (
	"testing"

	"arbflow/models"
)

func TestScoreBaseline(t *testing.T) {
	score, tier := Score(DefaultRiskConfig(), d("0.1"), d("5"), d("1000"), true)
	if score != 15 {
		t.Errorf("score = %d, want base 15", score)
	}
	if tier != models.TierSafe {
		t.Errorf("tier = %s, want safe", tier)
	}
}

func TestScoreSpreadPenalty(t *testing.T) {
	score, tier := Score(DefaultRiskConfig(), d("0.5"), d("5"), d("1000"), true)
	if score != 40 {
		t.Errorf("score = %d, want 40", score)
	}
	if tier != models.TierCaution {
		t.Errorf("tier = %s, want caution", tier)
	}
}

func TestScoreImplausibleProfit(t *testing.T) {
	// 80 profit on 1000 is 8%, beyond the 6% plausibility ceiling.
	score, _ := Score(DefaultRiskConfig(), d("0.1"), d("80"), d("1000"), true)
	if score != 55 {
		t.Errorf("score = %d, want 55", score)
	}
}

func TestScoreUnhealthyWallets(t *testing.T) {
	score, tier := Score(DefaultRiskConfig(), d("0.1"), d("5"), d("1000"), false)
	if score != 65 {
		t.Errorf("score = %d, want 65", score)
	}
	if tier != models.TierHighRisk {
		t.Errorf("tier = %s, want high_risk", tier)
	}
}

func TestScoreClamped(t *testing.T) {
	// All penalties stacked: 15+25+40+50 clamps to 100.
	score, tier := Score(DefaultRiskConfig(), d("5"), d("200"), d("1000"), false)
	if score != 100 {
		t.Errorf("score = %d, want 100", score)
	}
	if tier != models.TierHighRisk {
		t.Errorf("tier = %s, want high_risk", tier)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  models.RecommendationTier
	}{
		{0, models.TierSafe},
		{30, models.TierSafe},
		{31, models.TierCaution},
		{60, models.TierCaution},
		{61, models.TierHighRisk},
		{100, models.TierHighRisk},
	}
	for _, c := range cases {
		if got := tierFor(c.score); got != c.want {
			t.Errorf("tierFor(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}
