package models

// Requests for the HTTP control and read surface. Defined in domain for
// consistency and reuse.

type EvaluateRequest struct {
	Verify bool `query:"verify" json:"verify"`
}

type ResetRequest struct {
	Confirm string `json:"confirm" validate:"required,eq=RESET"`
}

type OverrideRequest struct {
	Strategy string `json:"strategy" validate:"required"`
	Verdict  string `json:"verdict" validate:"required,oneof=PROMOTED ELIMINATED"`
	Reason   string `json:"reason" validate:"required,min=3"`
}

type PredictionRequest struct {
	Algorithm  string `json:"algorithm" validate:"required"`
	Asset      string `json:"asset" validate:"required"`
	Signal     string `json:"signal" validate:"required,oneof=BUY SELL NEUTRAL"`
	Confidence string `json:"confidence" default:"MEDIUM" validate:"oneof=LOW MEDIUM HIGH"`
}

type ConsensusEvaluateRequest struct {
	Predictions []PredictionRequest `json:"predictions" validate:"required,min=2,dive"`
}

type AuditRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
