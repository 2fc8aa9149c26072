package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

// DecisionRepository archives final decisions in risk_assessments, one row
// per assessment.
type DecisionRepository struct {
	db *sql.DB
}

var _ ports.DecisionRepository = (*DecisionRepository)(nil)

// NewDecisionRepository wires a sql.DB implementation.
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// SaveDecision writes every assessment of the run in one transaction.
func (r *DecisionRepository) SaveDecision(ctx context.Context, decision domain.Decision) error {
	if r.db == nil || len(decision.Assessments) == 0 {
		return nil
	}

	builder := psql.
		Insert("risk_assessments").
		Columns("run_id", "product_id", "rating", "weeks_cover", "action", "rationale", "evidence", "needs_review", "generated_at")
	for _, a := range decision.Assessments {
		evidence, err := json.Marshal(a.Evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence %s: %w", a.ProductID, err)
		}
		builder = builder.Values(
			decision.RunID,
			a.ProductID,
			a.Rating.String(),
			a.WeeksCover,
			a.Action,
			a.Rationale,
			string(evidence),
			a.NeedsReview,
			decision.GeneratedAt,
		)
	}
	builder = builder.Suffix("ON CONFLICT (run_id, product_id) DO NOTHING")

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build archive query: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert assessments: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessments: %w", err)
	}
	return nil
}
