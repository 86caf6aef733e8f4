package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SigForge/internal/domain/models"
	pkgch "SigForge/pkg/clickhouse"
	applogger "SigForge/pkg/logger"
)

// OutcomeSchema returns the idempotent DDL for the outcome and audit
// tables, applied through the client at startup.
func OutcomeSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.outcomes (
            signal_id      String,
            strategy_id    LowCardinality(String),
            asset          LowCardinality(String),
            direction      LowCardinality(String),
            status         LowCardinality(String),
            entry_price    Float64,
            resolved_price Float64,
            pnl_pct        Float64,
            created_at     DateTime64(3),
            resolved_at    DateTime64(3)
        ) ENGINE = MergeTree
        ORDER BY (strategy_id, resolved_at)`, database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.audit_events (
            type     LowCardinality(String),
            strategy LowCardinality(String),
            verdict  LowCardinality(String),
            reasons  String,
            at       DateTime64(3)
        ) ENGINE = MergeTree
        ORDER BY (at)`, database),
	}
}

// CHOutcomeLog is the append-only outcome history backed by ClickHouse.
type CHOutcomeLog struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHOutcomeLog(ch *pkgch.Client, database string) *CHOutcomeLog {
	return &CHOutcomeLog{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHOutcomeLog) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHOutcomeLog) Append(ctx context.Context, o *models.Outcome) error {
	q := fmt.Sprintf(`INSERT INTO %s.outcomes
        (signal_id, strategy_id, asset, direction, status, entry_price, resolved_price, pnl_pct, created_at, resolved_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		o.SignalID, o.StrategyID, o.Asset, string(o.Direction), string(o.Status),
		o.EntryPrice, o.ResolvedPrice, o.PnlPct, o.CreatedAt, o.ResolvedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcome insert error",
				applogger.String("signal", o.SignalID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

func (s *CHOutcomeLog) List(ctx context.Context) ([]*models.Outcome, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT signal_id, strategy_id, asset, direction, status,
        entry_price, resolved_price, pnl_pct, created_at, resolved_at
        FROM %s.outcomes ORDER BY resolved_at ASC`, s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcome list error", applogger.Error(err))
		}
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Outcome, 0, 1024)
	for rows.Next() {
		var o models.Outcome
		var dir, status string
		if err := rows.Scan(&o.SignalID, &o.StrategyID, &o.Asset, &dir, &status,
			&o.EntryPrice, &o.ResolvedPrice, &o.PnlPct, &o.CreatedAt, &o.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Direction = models.Direction(dir)
		o.Status = models.SignalStatus(status)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse outcome list ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHOutcomeLog) Clear(ctx context.Context) error {
	q := fmt.Sprintf("TRUNCATE TABLE %s.outcomes", s.database)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}
	return nil
}

func (s *CHOutcomeLog) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHOutcomeLog) Close() error {
	return nil // Managed by pkg
}

// CHAuditLog stores promotion/elimination/override/reset events.
type CHAuditLog struct {
	db       *sql.DB
	database string
}

func NewCHAuditLog(ch *pkgch.Client, database string) *CHAuditLog {
	return &CHAuditLog{db: ch.DB(), database: database}
}

func (s *CHAuditLog) Append(ctx context.Context, e *models.AuditEvent) error {
	q := fmt.Sprintf(`INSERT INTO %s.audit_events (type, strategy, verdict, reasons, at)
        VALUES (?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		string(e.Type), e.Strategy, string(e.Verdict), strings.Join(e.Reasons, "; "), e.At,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *CHAuditLog) List(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	q := fmt.Sprintf(`SELECT type, strategy, verdict, reasons, at
        FROM %s.audit_events ORDER BY at DESC LIMIT ?`, s.database)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var typ, verdict, reasons string
		if err := rows.Scan(&typ, &e.Strategy, &verdict, &reasons, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = models.AuditEventType(typ)
		e.Verdict = models.Verdict(verdict)
		if reasons != "" {
			e.Reasons = strings.Split(reasons, "; ")
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *CHAuditLog) Clear(ctx context.Context) error {
	q := fmt.Sprintf("TRUNCATE TABLE %s.audit_events", s.database)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("clear audit events: %w", err)
	}
	return nil
}
