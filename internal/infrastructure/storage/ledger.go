package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FeedbackLedger persists operator corrections in the append-only
// agent_feedback table. Rows are never updated or deleted.
type FeedbackLedger struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.FeedbackLedger = (*FeedbackLedger)(nil)

// NewFeedbackLedger wires a sql.DB implementation.
func NewFeedbackLedger(db *sql.DB) *FeedbackLedger {
	return &FeedbackLedger{db: db, now: time.Now}
}

// Open connects to Postgres through lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	return db, nil
}

func appendQuery(rule domain.FeedbackRule) sq.InsertBuilder {
	return psql.
		Insert("agent_feedback").
		Columns("id", "entity_id", "rule", "status", "note", "created_at").
		Values(rule.ID, rule.EntityID, rule.Rule, string(rule.Status), rule.Note, rule.CreatedAt).
		Suffix("RETURNING created_at")
}

// Append stores a new rule; id and timestamp are assigned here.
func (l *FeedbackLedger) Append(ctx context.Context, input domain.FeedbackInput) (domain.FeedbackRule, error) {
	status, err := domain.ParseFeedbackStatus(string(input.Status))
	if err != nil {
		return domain.FeedbackRule{}, err
	}
	rule := domain.FeedbackRule{
		ID:        uuid.New(),
		EntityID:  strings.TrimSpace(input.EntityID),
		Rule:      strings.TrimSpace(input.Rule),
		Status:    status,
		Note:      strings.TrimSpace(input.Note),
		CreatedAt: l.now().UTC(),
	}

	query, args, err := appendQuery(rule).ToSql()
	if err != nil {
		return domain.FeedbackRule{}, fmt.Errorf("build append query: %w", err)
	}
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&rule.CreatedAt); err != nil {
		return domain.FeedbackRule{}, fmt.Errorf("insert feedback: %w", err)
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return rule, nil
}

func listQuery(entityIDs []string) sq.SelectBuilder {
	return psql.
		Select("id", "entity_id", "rule", "status", "COALESCE(note, '')", "created_at").
		From("agent_feedback").
		Where("entity_id = ANY(?)", pq.StringArray(entityIDs)).
		OrderBy("created_at ASC", "seq ASC")
}

// ListByEntity returns every rule for one entity, oldest first.
func (l *FeedbackLedger) ListByEntity(ctx context.Context, entityID string) ([]domain.FeedbackRule, error) {
	rules, err := l.ListByEntities(ctx, []string{entityID})
	if err != nil {
		return nil, err
	}
	return rules[entityID], nil
}

// ListByEntities reads all rules for the given entities in a single
// statement, so the result is one consistent snapshot.
func (l *FeedbackLedger) ListByEntities(ctx context.Context, entityIDs []string) (map[string][]domain.FeedbackRule, error) {
	result := make(map[string][]domain.FeedbackRule, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	query, args, err := listQuery(entityIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}

	for rows.Next() {
		var (
			r      domain.FeedbackRule
			status string
		)
		if err := rows.Scan(&r.ID, &r.EntityID, &r.Rule, &status, &r.Note, &r.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		r.Status = domain.FeedbackStatus(status)
		r.CreatedAt = r.CreatedAt.UTC()
		result[r.EntityID] = append(result[r.EntityID], r)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}
