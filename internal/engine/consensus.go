package engine

import (
	"sort"
	"time"

	"SigForge/internal/domain/models"
	"SigForge/pkg/util"
)

// Analyzer runs cross-algorithm consensus rounds over prediction sets.
type Analyzer struct {
	clusterThreshold float64
	topPairs         int
	now              func() time.Time
}

func NewAnalyzer(clusterThreshold float64, topPairs int) *Analyzer {
	return &Analyzer{
		clusterThreshold: clusterThreshold,
		topPairs:         topPairs,
		now:              time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze computes per-asset majorities, pairwise agreement, greedy
// agreement clusters and per-algorithm conformity for one round of
// predictions. Duplicate (algorithm, asset) entries keep the last
// prediction seen.
func (a *Analyzer) Analyze(preds []models.Prediction) *models.ConsensusResult {
	res := &models.ConsensusResult{At: a.now()}

	// Last write wins per (algorithm, asset).
	votes := make(map[string]map[string]models.PredictionSignal)
	assetSet := make(map[string]struct{})
	for _, p := range preds {
		if p.Algorithm == "" || p.Asset == "" {
			continue
		}
		m := votes[p.Algorithm]
		if m == nil {
			m = make(map[string]models.PredictionSignal)
			votes[p.Algorithm] = m
		}
		m[p.Asset] = p.Signal
		assetSet[p.Asset] = struct{}{}
	}

	algos := make([]string, 0, len(votes))
	for id := range votes {
		algos = append(algos, id)
	}
	sort.Strings(algos)
	assets := make([]string, 0, len(assetSet))
	for id := range assetSet {
		assets = append(assets, id)
	}
	sort.Strings(assets)

	majority := a.assetConsensus(res, assets, algos, votes)
	a.pairAgreement(res, algos, votes)
	a.clusters(res, algos, votes)
	a.conformity(res, algos, votes, majority)
	return res
}

// assetConsensus tallies votes per asset. Ties break in fixed order
// BUY, then SELL, then NEUTRAL.
func (a *Analyzer) assetConsensus(res *models.ConsensusResult, assets, algos []string, votes map[string]map[string]models.PredictionSignal) map[string]models.PredictionSignal {
	majority := make(map[string]models.PredictionSignal, len(assets))
	for _, asset := range assets {
		ac := models.AssetConsensus{Asset: asset}
		for _, algo := range algos {
			switch votes[algo][asset] {
			case models.SignalBuy:
				ac.Buy++
			case models.SignalSell:
				ac.Sell++
			case models.SignalNeutral:
				ac.Neutral++
			}
		}
		total := ac.Buy + ac.Sell + ac.Neutral
		if total == 0 {
			continue
		}
		ac.Majority = models.SignalBuy
		best := ac.Buy
		if ac.Sell > best {
			ac.Majority, best = models.SignalSell, ac.Sell
		}
		if ac.Neutral > best {
			ac.Majority, best = models.SignalNeutral, ac.Neutral
		}
		ac.Strength = util.Round2(float64(best) / float64(total) * 100)
		majority[asset] = ac.Majority
		res.Assets = append(res.Assets, ac)
	}
	return majority
}

func (a *Analyzer) pairAgreement(res *models.ConsensusResult, algos []string, votes map[string]map[string]models.PredictionSignal) {
	for i := 0; i < len(algos); i++ {
		for j := i + 1; j < len(algos); j++ {
			res.Pairs = append(res.Pairs, agreementBetween(algos[i], algos[j], votes))
		}
	}
	top := make([]models.PairAgreement, len(res.Pairs))
	copy(top, res.Pairs)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Agreement != top[j].Agreement {
			return top[i].Agreement > top[j].Agreement
		}
		if top[i].A != top[j].A {
			return top[i].A < top[j].A
		}
		return top[i].B < top[j].B
	})
	if a.topPairs > 0 && len(top) > a.topPairs {
		top = top[:a.topPairs]
	}
	res.TopPairs = top
}

// agreementBetween is the fraction of shared assets on which the two
// algorithms issued the identical signal. No shared assets means zero.
func agreementBetween(a, b string, votes map[string]map[string]models.PredictionSignal) models.PairAgreement {
	pa := models.PairAgreement{A: a, B: b}
	same := 0
	for asset, sigA := range votes[a] {
		sigB, ok := votes[b][asset]
		if !ok {
			continue
		}
		pa.Shared++
		if sigA == sigB {
			same++
		}
	}
	if pa.Shared > 0 {
		pa.Agreement = float64(same) / float64(pa.Shared)
	}
	return pa
}

// clusters greedily groups algorithms: each unassigned algorithm (in
// sorted order) seeds a cluster and absorbs every later unassigned
// algorithm whose agreement with the seed meets the threshold.
// Algorithms left alone are reported as singletons.
func (a *Analyzer) clusters(res *models.ConsensusResult, algos []string, votes map[string]map[string]models.PredictionSignal) {
	assigned := make(map[string]bool, len(algos))
	for _, seed := range algos {
		if assigned[seed] {
			continue
		}
		assigned[seed] = true
		cluster := models.Cluster{Seed: seed, Members: []string{seed}}
		for _, other := range algos {
			if assigned[other] {
				continue
			}
			pa := agreementBetween(seed, other, votes)
			if pa.Shared > 0 && pa.Agreement >= a.clusterThreshold {
				assigned[other] = true
				cluster.Members = append(cluster.Members, other)
			}
		}
		if len(cluster.Members) == 1 {
			res.Singletons = append(res.Singletons, seed)
			continue
		}
		res.Clusters = append(res.Clusters, cluster)
	}
}

// conformity scores each algorithm by how often its signal matched the
// per-asset majority, over the assets it covered.
func (a *Analyzer) conformity(res *models.ConsensusResult, algos []string, votes map[string]map[string]models.PredictionSignal, majority map[string]models.PredictionSignal) {
	for _, algo := range algos {
		cs := models.ConformityScore{Algorithm: algo}
		matched := 0
		for asset, sig := range votes[algo] {
			cs.Assets++
			if majority[asset] == sig {
				matched++
			}
		}
		if cs.Assets > 0 {
			cs.Score = util.Round2(float64(matched) / float64(cs.Assets) * 100)
		}
		res.Conformity = append(res.Conformity, cs)
	}
}
