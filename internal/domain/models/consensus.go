package models

import "time"

// PredictionSignal is one algorithm's call on one asset.
type PredictionSignal string

const (
	SignalBuy     PredictionSignal = "BUY"
	SignalSell    PredictionSignal = "SELL"
	SignalNeutral PredictionSignal = "NEUTRAL"
)

// Confidence accompanies a prediction but does not weight the vote.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Prediction is the consensus analyzer's input: one per algorithm per
// asset, supplied per evaluation round.
type Prediction struct {
	Algorithm  string           `json:"algorithm"`
	Asset      string           `json:"asset"`
	Signal     PredictionSignal `json:"signal"`
	Confidence Confidence       `json:"confidence"`
}

// AssetConsensus is the majority vote for one asset.
type AssetConsensus struct {
	Asset    string           `json:"asset"`
	Majority PredictionSignal `json:"majority"`
	Buy      int              `json:"buy"`
	Sell     int              `json:"sell"`
	Neutral  int              `json:"neutral"`
	Strength float64          `json:"strength"` // majority count / total, percent
}

// PairAgreement is the categorical agreement ratio between two
// algorithms over the assets both covered.
type PairAgreement struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	Agreement float64 `json:"agreement"` // 0..1
	Shared    int     `json:"shared"`
}

// Cluster groups algorithms whose pairwise agreement with the seed is
// at or above the cluster threshold.
type Cluster struct {
	Seed    string   `json:"seed"`
	Members []string `json:"members"`
}

// ConformityScore is how often one algorithm matched the per-asset
// majority.
type ConformityScore struct {
	Algorithm string  `json:"algorithm"`
	Score     float64 `json:"score"` // percent
	Assets    int     `json:"assets"`
}

// ConsensusResult is the full output of one consensus round.
type ConsensusResult struct {
	At         time.Time         `json:"at"`
	Assets     []AssetConsensus  `json:"assets"`
	Pairs      []PairAgreement   `json:"pairs"`
	TopPairs   []PairAgreement   `json:"top_pairs"`
	Clusters   []Cluster         `json:"clusters"`
	Singletons []string          `json:"singletons"`
	Conformity []ConformityScore `json:"conformity"`
}
