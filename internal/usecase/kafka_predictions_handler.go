package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
	pkgkafka "SigForge/pkg/kafka"
)

// KafkaPredictionsHandler consumes prediction batches and feeds them
// into the consensus analyzer.
type KafkaPredictionsHandler struct {
	topic     string
	evaluator *Evaluator
	metrics   domrepo.Metrics
}

func NewKafkaPredictionsHandler(topic string, evaluator *Evaluator, metrics domrepo.Metrics) *KafkaPredictionsHandler {
	return &KafkaPredictionsHandler{topic: topic, evaluator: evaluator, metrics: metrics}
}

func (h *KafkaPredictionsHandler) Topic() string { return h.topic }

// incoming message schema: {at, predictions: [{algorithm, asset, signal, confidence}]}
func (h *KafkaPredictionsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		At          int64               `json:"at"` // ms, optional
		Predictions []models.Prediction `json:"predictions"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if len(m.Predictions) == 0 {
		h.metrics.RecordError("consumer_empty_batch")
		return fmt.Errorf("prediction batch empty")
	}
	for i := range m.Predictions {
		if m.Predictions[i].Confidence == "" {
			m.Predictions[i].Confidence = models.ConfidenceMedium
		}
	}
	if m.At > 0 {
		h.metrics.RecordLatency("consensus_ingest_e2e_seconds", time.Since(time.UnixMilli(m.At)).Seconds())
	}

	start := time.Now()
	_, err := h.evaluator.RunConsensus(ctx, m.Predictions)
	h.metrics.RecordLatency("consensus_handle_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_consensus")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPredictionsHandler)(nil)
