package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/infrastructure/parser"
	"SupplyRadar/internal/ports"
)

// SignalStore runs cosine-similarity search over the risk_signals table.
type SignalStore struct {
	pool     *pgxpool.Pool
	embedder ports.Embedder
}

var (
	_ ports.SignalStore = (*SignalStore)(nil)
	_ ports.Pinger      = (*SignalStore)(nil)
)

// NewSignalStore wires a pgx pool with the query embedder.
func NewSignalStore(pool *pgxpool.Pool, embedder ports.Embedder) *SignalStore {
	return &SignalStore{pool: pool, embedder: embedder}
}

func searchQuery(vec pgvector.Vector, limit int) sq.SelectBuilder {
	return psql.
		Select("content", "COALESCE(source, '')", "published_at").
		Column(sq.Expr("GREATEST(0, LEAST(1, 1 - (embedding <=> ?)))", vec)).
		From("risk_signals").
		OrderByClause("embedding <=> ?", vec).
		Limit(uint64(limit))
}

// Search embeds the query and returns the nearest snippets, most relevant first.
func (s *SignalStore) Search(ctx context.Context, query string, limit int) ([]domain.Evidence, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("signal store has no embedder")
	}
	if limit <= 0 {
		return nil, nil
	}

	raw, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(raw)

	sqlText, args, err := searchQuery(vec, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build signal query: %w", err)
	}
	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var (
			e         domain.Evidence
			published *time.Time
		)
		if err := rows.Scan(&e.Content, &e.Source, &published, &e.Relevance); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		if published != nil {
			e.PublishedAt = published.UTC()
		}
		e.Content = parser.PlainText(e.Content)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SignalStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Ingest embeds and stores signal documents in one transaction. HTML content
// is reduced to plain text before embedding.
func (s *SignalStore) Ingest(ctx context.Context, docs []domain.Evidence) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if s.embedder == nil {
		return 0, fmt.Errorf("signal store has no embedder")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		text := parser.PlainText(doc.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if doc.Source == "" {
			doc.Source = parser.Headline(doc.Content)
		}
		raw, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed signal: %w", err)
		}

		var published any
		if !doc.PublishedAt.IsZero() {
			published = doc.PublishedAt.UTC()
		}
		batch.Queue(`
			INSERT INTO risk_signals (content, source, published_at, embedding)
			VALUES ($1, NULLIF($2, ''), $3, $4)
			ON CONFLICT (content_hash) DO UPDATE SET
				source = EXCLUDED.source, published_at = EXCLUDED.published_at, embedding = EXCLUDED.embedding
		`, text, doc.Source, published, pgvector.NewVector(raw))
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit signals: %w", err)
	}
	return batch.Len(), nil
}
