package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

const weeksCoverExpr = "stock_level::float8 / weekly_usage"

// CoverageStore reads the inventory table.
type CoverageStore struct {
	pool *pgxpool.Pool
}

var (
	_ ports.CoverageStore = (*CoverageStore)(nil)
	_ ports.Pinger        = (*CoverageStore)(nil)
)

// NewCoverageStore wires a pgx pool.
func NewCoverageStore(pool *pgxpool.Pool) *CoverageStore {
	return &CoverageStore{pool: pool}
}

func atRiskQuery(threshold float64) sq.SelectBuilder {
	return psql.
		Select("product_id", "product_name", "stock_level", "weekly_usage",
			"COALESCE(supplier, '')", "COALESCE(region, '')").
		From("inventory").
		Where("weekly_usage > 0").
		Where("stock_level >= 0").
		Where(sq.Expr(weeksCoverExpr+" < ?", threshold)).
		OrderBy(weeksCoverExpr+" ASC", "product_id ASC")
}

// AtRisk returns entities whose weeks of cover is below threshold, ascending.
func (s *CoverageStore) AtRisk(ctx context.Context, threshold float64) ([]domain.InventoryEntity, error) {
	query, args, err := atRiskQuery(threshold).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build coverage query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryEntity
	for rows.Next() {
		var e domain.InventoryEntity
		if err := rows.Scan(&e.ProductID, &e.Name, &e.StockLevel, &e.WeeklyUsage, &e.Supplier, &e.Region); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *CoverageStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
