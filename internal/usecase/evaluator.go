package usecase

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"SigForge/internal/domain/models"
	domrepo "SigForge/internal/domain/repository"
	"SigForge/internal/engine"
	applogger "SigForge/pkg/logger"
)

// Evaluator orchestrates the signal lifecycle: generation and
// resolution ticks, evaluation cycles, consensus rounds, overrides and
// resets. It is the single writer of verdict state.
type Evaluator struct {
	strategies []engine.StrategySpec
	assets     []string

	generator  *engine.Generator
	resolver   *engine.Resolver
	tracker    *engine.Tracker
	classifier *engine.Classifier
	analyzer   *engine.Analyzer

	outcomes  domrepo.OutcomeLog
	audit     domrepo.AuditLog
	snapshots domrepo.SnapshotStore
	index     domrepo.ActiveIndex
	pub       domrepo.Publisher
	metrics   domrepo.Metrics
	log       *applogger.Logger

	workers      int
	fetchTimeout time.Duration

	mu        sync.Mutex
	overrides map[string]*models.AuditEvent
	now       func() time.Time
}

type EvaluatorDeps struct {
	Strategies []engine.StrategySpec
	Assets     []string
	Generator  *engine.Generator
	Resolver   *engine.Resolver
	Tracker    *engine.Tracker
	Classifier *engine.Classifier
	Analyzer   *engine.Analyzer
	Outcomes   domrepo.OutcomeLog
	Audit      domrepo.AuditLog
	Snapshots  domrepo.SnapshotStore
	Index      domrepo.ActiveIndex
	Publisher  domrepo.Publisher
	Metrics    domrepo.Metrics
	Logger     *applogger.Logger

	Workers      int
	FetchTimeout time.Duration
}

func NewEvaluator(d EvaluatorDeps) *Evaluator {
	workers := d.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Evaluator{
		strategies:   d.Strategies,
		assets:       d.Assets,
		generator:    d.Generator,
		resolver:     d.Resolver,
		tracker:      d.Tracker,
		classifier:   d.Classifier,
		analyzer:     d.Analyzer,
		outcomes:     d.Outcomes,
		audit:        d.Audit,
		snapshots:    d.Snapshots,
		index:        d.Index,
		pub:          d.Publisher,
		metrics:      d.Metrics,
		log:          d.Logger,
		workers:      workers,
		fetchTimeout: d.FetchTimeout,
		overrides:    make(map[string]*models.AuditEvent),
		now:          time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// GenerationStats summarizes one generation tick.
type GenerationStats struct {
	Pairs     int `json:"pairs"`
	Generated int `json:"generated"`
	Errors    int `json:"errors"`
}

type pair struct {
	strat engine.StrategySpec
	asset string
}

// GenerationTick evaluates every (strategy, asset) pair once, fanned
// out over the worker pool. A failing pair is logged and counted; it
// never aborts the tick.
func (e *Evaluator) GenerationTick(ctx context.Context) GenerationStats {
	start := e.now()
	jobs := make(chan pair)
	var stats GenerationStats
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				pctx := ctx
				cancel := func() {}
				if e.fetchTimeout > 0 {
					pctx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
				}
				sig, err := e.generator.Generate(pctx, p.strat, p.asset)
				cancel()
				mu.Lock()
				stats.Pairs++
				if err != nil {
					stats.Errors++
				} else if sig != nil {
					stats.Generated++
				}
				mu.Unlock()
				if err != nil {
					e.metrics.RecordError("generation")
					e.log.Warn("pair generation failed",
						applogger.String("strategy", p.strat.ID),
						applogger.String("asset", p.asset),
						applogger.Error(err),
					)
				}
			}
		}()
	}

	for _, strat := range e.strategies {
		for _, asset := range e.assets {
			select {
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return stats
			case jobs <- pair{strat: strat, asset: asset}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	e.metrics.RecordLatency("generation_tick", time.Since(start).Seconds())
	return stats
}

// ResolutionTick resolves whatever the current snapshots allow.
func (e *Evaluator) ResolutionTick(ctx context.Context) (engine.ResolutionStats, error) {
	start := e.now()
	stats, err := e.resolver.ResolveActive(ctx)
	e.metrics.RecordLatency("resolution_tick", time.Since(start).Seconds())
	return stats, err
}

// EvaluateCycle recomputes stats, verdicts and the championship from
// the running aggregates. With verify set, the incremental aggregates
// are checked against a full recompute of the outcome log; any drift
// triggers a rebuild and a warning on the snapshot.
func (e *Evaluator) EvaluateCycle(ctx context.Context, verify bool) (*models.EvaluationSnapshot, error) {
	start := e.now()
	snap := &models.EvaluationSnapshot{At: start}

	if verify {
		if warn := e.verifyAggregates(ctx); warn != "" {
			snap.Warnings = append(snap.Warnings, warn)
		}
	}
	if skipped := e.tracker.Skipped(); skipped > 0 {
		snap.Partial = true
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%d malformed outcome records skipped", skipped))
	}

	e.mu.Lock()
	overrides := make(map[string]*models.AuditEvent, len(e.overrides))
	for k, v := range e.overrides {
		overrides[k] = v
	}
	e.mu.Unlock()

	for _, strat := range e.strategies {
		stats := e.tracker.Stats(strat.ID)
		verdict, reasons := e.classifier.Classify(stats)
		report := models.StrategyReport{
			Strategy: strat.ID,
			Name:     strat.Name,
			Stats:    stats,
			Verdict:  verdict,
			Reasons:  reasons,
			Score:    e.classifier.Score(stats),
			Override: overrides[strat.ID],
		}
		snap.Reports = append(snap.Reports, report)

		switch verdict {
		case models.VerdictTesting:
			snap.Testing++
		case models.VerdictUnderReview:
			snap.UnderReview++
		case models.VerdictPromoted:
			snap.Promoted++
			e.recordAudit(ctx, models.AuditPromotion, strat.ID, verdict, reasons, start)
		case models.VerdictEliminated:
			snap.Eliminated++
			e.recordAudit(ctx, models.AuditElimination, strat.ID, verdict, reasons, start)
		}
	}

	sort.Slice(snap.Reports, func(i, j int) bool {
		return snap.Reports[i].Strategy < snap.Reports[j].Strategy
	})
	snap.Championship = e.classifier.Championship(snap.Reports)

	if err := e.snapshots.SaveEvaluation(ctx, snap); err != nil {
		e.metrics.RecordError("snapshot_save")
		e.log.Error("save evaluation snapshot failed", applogger.Error(err))
	}
	e.metrics.RecordLatency("evaluate_cycle", time.Since(start).Seconds())
	return snap, nil
}

// verifyAggregates recomputes every strategy from the log and compares
// against the running aggregates. Returns a warning string on drift.
func (e *Evaluator) verifyAggregates(ctx context.Context) string {
	outcomes, err := e.outcomes.List(ctx)
	if err != nil {
		e.metrics.RecordError("verify_list")
		return fmt.Sprintf("verification skipped: %v", err)
	}
	for _, strat := range e.strategies {
		want, _ := engine.Aggregate(strat.ID, outcomes)
		got := e.tracker.Stats(strat.ID)
		if !reflect.DeepEqual(got, want) {
			e.log.Warn("aggregate drift detected, rebuilding",
				applogger.String("strategy", strat.ID),
			)
			e.tracker.Rebuild(outcomes)
			return fmt.Sprintf("aggregate drift detected for %s, rebuilt from log", strat.ID)
		}
	}
	return ""
}

// recordAudit appends one audit event per verdict occurrence.
// Consumers deduplicate on (strategy, at).
func (e *Evaluator) recordAudit(ctx context.Context, typ models.AuditEventType, strategy string, verdict models.Verdict, reasons []string, at time.Time) {
	event := &models.AuditEvent{
		Type:     typ,
		Strategy: strategy,
		Verdict:  verdict,
		Reasons:  reasons,
		At:       at,
	}
	if err := e.audit.Append(ctx, event); err != nil {
		e.metrics.RecordError("audit_append")
		e.log.Error("audit append failed", applogger.String("strategy", strategy), applogger.Error(err))
	}
	if err := e.pub.PublishAudit(ctx, event); err != nil {
		e.metrics.RecordError("audit_publish")
	}
}

// RunConsensus analyzes one round of predictions and stores the result.
func (e *Evaluator) RunConsensus(ctx context.Context, preds []models.Prediction) (*models.ConsensusResult, error) {
	if len(preds) == 0 {
		return nil, fmt.Errorf("no predictions supplied")
	}
	start := e.now()
	res := e.analyzer.Analyze(preds)
	if err := e.snapshots.SaveConsensus(ctx, res); err != nil {
		e.metrics.RecordError("snapshot_save")
		e.log.Error("save consensus snapshot failed", applogger.Error(err))
	}
	e.metrics.RecordLatency("consensus_round", time.Since(start).Seconds())
	return res, nil
}

// LatestEvaluation returns the snapshot of the last evaluation cycle,
// nil when none has run yet.
func (e *Evaluator) LatestEvaluation(ctx context.Context) (*models.EvaluationSnapshot, error) {
	return e.snapshots.LoadEvaluation(ctx)
}

// LatestConsensus returns the last consensus result, nil when none.
func (e *Evaluator) LatestConsensus(ctx context.Context) (*models.ConsensusResult, error) {
	return e.snapshots.LoadConsensus(ctx)
}

// Override records a manual verdict override. The override is advisory:
// it lands in the audit trail and annotates the strategy's report, but
// computed verdicts are never altered.
func (e *Evaluator) Override(ctx context.Context, strategy string, verdict models.Verdict, reason string) (*models.AuditEvent, error) {
	known := false
	for _, s := range e.strategies {
		if s.ID == strategy {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	event := &models.AuditEvent{
		Type:     models.AuditOverride,
		Strategy: strategy,
		Verdict:  verdict,
		Reasons:  []string{reason},
		At:       e.now(),
	}
	if err := e.audit.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("record override: %w", err)
	}
	if err := e.pub.PublishAudit(ctx, event); err != nil {
		e.metrics.RecordError("audit_publish")
	}

	e.mu.Lock()
	e.overrides[strategy] = event
	e.mu.Unlock()
	return event, nil
}

// Warmup seeds the running aggregates from the persisted outcome log,
// so a restart serves real stats from the first cycle instead of
// waiting for the next verification pass to rebuild them.
func (e *Evaluator) Warmup(ctx context.Context) error {
	outcomes, err := e.outcomes.List(ctx)
	if err != nil {
		return fmt.Errorf("warmup list outcomes: %w", err)
	}
	e.tracker.Rebuild(outcomes)
	e.log.Info("aggregates warmed up",
		applogger.Int("outcomes", len(outcomes)),
		applogger.Int("strategies", len(e.tracker.Strategies())),
	)
	return nil
}

// Reset clears every store and the running aggregates, then leaves a
// single reset marker in the audit trail.
func (e *Evaluator) Reset(ctx context.Context) error {
	if err := e.index.Clear(ctx); err != nil {
		return fmt.Errorf("clear active index: %w", err)
	}
	if err := e.outcomes.Clear(ctx); err != nil {
		return fmt.Errorf("clear outcome log: %w", err)
	}
	if err := e.audit.Clear(ctx); err != nil {
		return fmt.Errorf("clear audit log: %w", err)
	}
	if err := e.snapshots.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	e.tracker.Reset()

	e.mu.Lock()
	e.overrides = make(map[string]*models.AuditEvent)
	e.mu.Unlock()

	marker := &models.AuditEvent{Type: models.AuditReset, At: e.now()}
	if err := e.audit.Append(ctx, marker); err != nil {
		e.log.Error("reset marker append failed", applogger.Error(err))
	}
	e.log.Info("state reset complete")
	return nil
}

// AuditTrail returns the newest audit events, up to limit.
func (e *Evaluator) AuditTrail(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	return e.audit.List(ctx, limit)
}

// ActiveCount reports the number of active signals.
func (e *Evaluator) ActiveCount(ctx context.Context) (int, error) {
	return e.index.Count(ctx)
}

// Health checks the outcome log backend.
func (e *Evaluator) Health(ctx context.Context) error {
	return e.outcomes.Health(ctx)
}

// Strategies exposes the loaded catalog.
func (e *Evaluator) Strategies() []engine.StrategySpec {
	return e.strategies
}
