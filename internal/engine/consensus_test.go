package engine

import (
	"testing"

	"SigForge/internal/domain/models"
)

func pred(algo, asset string, sig models.PredictionSignal) models.Prediction {
	return models.Prediction{Algorithm: algo, Asset: asset, Signal: sig, Confidence: models.ConfidenceMedium}
}

func TestAnalyzeMajorityAndStrength(t *testing.T) {
	a := NewAnalyzer(0.7, 5)
	res := a.Analyze([]models.Prediction{
		pred("a1", "BTCUSDT", models.SignalBuy),
		pred("a2", "BTCUSDT", models.SignalBuy),
		pred("a3", "BTCUSDT", models.SignalSell),
		pred("a4", "BTCUSDT", models.SignalNeutral),
	})
	if len(res.Assets) != 1 {
		t.Fatalf("assets = %d, want 1", len(res.Assets))
	}
	ac := res.Assets[0]
	if ac.Majority != models.SignalBuy {
		t.Fatalf("majority = %s, want BUY", ac.Majority)
	}
	if ac.Strength != 50.0 {
		t.Fatalf("strength = %.2f, want 50.00", ac.Strength)
	}
	if ac.Buy != 2 || ac.Sell != 1 || ac.Neutral != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/1/1", ac.Buy, ac.Sell, ac.Neutral)
	}
}

func TestAnalyzeTieOrder(t *testing.T) {
	a := NewAnalyzer(0.7, 5)

	res := a.Analyze([]models.Prediction{
		pred("a1", "X", models.SignalBuy),
		pred("a2", "X", models.SignalSell),
	})
	if res.Assets[0].Majority != models.SignalBuy {
		t.Fatalf("BUY/SELL tie = %s, want BUY", res.Assets[0].Majority)
	}

	res = a.Analyze([]models.Prediction{
		pred("a1", "X", models.SignalSell),
		pred("a2", "X", models.SignalNeutral),
	})
	if res.Assets[0].Majority != models.SignalSell {
		t.Fatalf("SELL/NEUTRAL tie = %s, want SELL", res.Assets[0].Majority)
	}
}

func TestAnalyzeCountsSumToVoters(t *testing.T) {
	a := NewAnalyzer(0.7, 5)
	res := a.Analyze([]models.Prediction{
		pred("a1", "X", models.SignalBuy),
		pred("a2", "X", models.SignalSell),
		pred("a3", "X", models.SignalNeutral),
		pred("a1", "Y", models.SignalBuy),
		pred("a2", "Y", models.SignalBuy),
	})
	for _, ac := range res.Assets {
		voters := 0
		switch ac.Asset {
		case "X":
			voters = 3
		case "Y":
			voters = 2
		}
		if ac.Buy+ac.Sell+ac.Neutral != voters {
			t.Fatalf("%s: counts sum %d, want %d", ac.Asset, ac.Buy+ac.Sell+ac.Neutral, voters)
		}
	}
}

func TestAgreementSymmetricAndSelfPerfect(t *testing.T) {
	votes := map[string]map[string]models.PredictionSignal{
		"a1": {"X": models.SignalBuy, "Y": models.SignalSell, "Z": models.SignalBuy},
		"a2": {"X": models.SignalBuy, "Y": models.SignalBuy},
	}
	ab := agreementBetween("a1", "a2", votes)
	ba := agreementBetween("a2", "a1", votes)
	if ab.Agreement != ba.Agreement || ab.Shared != ba.Shared {
		t.Fatalf("agreement not symmetric: %+v vs %+v", ab, ba)
	}
	if ab.Shared != 2 || ab.Agreement != 0.5 {
		t.Fatalf("agreement = %+v, want shared 2 at 0.5", ab)
	}
	self := agreementBetween("a1", "a1", votes)
	if self.Agreement != 1.0 {
		t.Fatalf("self agreement = %.2f, want 1.0", self.Agreement)
	}
}

func TestAnalyzeClustersAndSingletons(t *testing.T) {
	a := NewAnalyzer(0.7, 5)
	preds := []models.Prediction{
		pred("a1", "X", models.SignalBuy), pred("a1", "Y", models.SignalSell), pred("a1", "Z", models.SignalBuy),
		pred("a2", "X", models.SignalBuy), pred("a2", "Y", models.SignalSell), pred("a2", "Z", models.SignalBuy),
		pred("a3", "X", models.SignalSell), pred("a3", "Y", models.SignalBuy), pred("a3", "Z", models.SignalNeutral),
	}
	res := a.Analyze(preds)

	if len(res.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(res.Clusters))
	}
	c := res.Clusters[0]
	if c.Seed != "a1" || len(c.Members) != 2 {
		t.Fatalf("cluster = %+v, want seed a1 with members a1,a2", c)
	}
	if len(res.Singletons) != 1 || res.Singletons[0] != "a3" {
		t.Fatalf("singletons = %v, want [a3]", res.Singletons)
	}
}

func TestAnalyzeConformity(t *testing.T) {
	a := NewAnalyzer(0.7, 5)
	preds := []models.Prediction{
		pred("a1", "X", models.SignalBuy), pred("a1", "Y", models.SignalSell),
		pred("a2", "X", models.SignalBuy), pred("a2", "Y", models.SignalSell),
		pred("a3", "X", models.SignalSell), pred("a3", "Y", models.SignalBuy),
	}
	res := a.Analyze(preds)

	scores := make(map[string]float64)
	for _, cs := range res.Conformity {
		scores[cs.Algorithm] = cs.Score
	}
	if scores["a1"] != 100 || scores["a2"] != 100 {
		t.Fatalf("majority members scored %v, want 100 each", scores)
	}
	if scores["a3"] != 0 {
		t.Fatalf("contrarian scored %.2f, want 0", scores["a3"])
	}
}

func TestAnalyzeTopPairsTruncated(t *testing.T) {
	a := NewAnalyzer(0.7, 1)
	preds := []models.Prediction{
		pred("a1", "X", models.SignalBuy),
		pred("a2", "X", models.SignalBuy),
		pred("a3", "X", models.SignalSell),
	}
	res := a.Analyze(preds)
	if len(res.Pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(res.Pairs))
	}
	if len(res.TopPairs) != 1 {
		t.Fatalf("top pairs = %d, want 1", len(res.TopPairs))
	}
	if res.TopPairs[0].A != "a1" || res.TopPairs[0].B != "a2" {
		t.Fatalf("top pair = %+v, want a1/a2", res.TopPairs[0])
	}
}

func TestAnalyzeLastPredictionWinsPerPair(t *testing.T) {
	a := NewAnalyzer(0.7, 5)
	res := a.Analyze([]models.Prediction{
		pred("a1", "X", models.SignalBuy),
		pred("a1", "X", models.SignalSell),
		pred("a2", "X", models.SignalSell),
	})
	if res.Assets[0].Majority != models.SignalSell {
		t.Fatalf("majority = %s, want SELL after duplicate replaced", res.Assets[0].Majority)
	}
	if res.Assets[0].Sell != 2 || res.Assets[0].Buy != 0 {
		t.Fatalf("counts = %+v, want two SELL votes", res.Assets[0])
	}
}
