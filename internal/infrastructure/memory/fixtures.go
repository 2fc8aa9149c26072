package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"SupplyRadar/internal/domain"
)

// Fixtures is the offline data set: inventory rows, signal documents and
// optional seed feedback.
type Fixtures struct {
	Inventory []domain.InventoryEntity `yaml:"inventory"`
	Signals   []domain.Evidence        `yaml:"signals"`
	Feedback  []domain.FeedbackInput   `yaml:"feedback"`
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes fixture YAML and rejects rows that break the
// inventory invariants.
func ParseFixtures(raw []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	seen := map[string]bool{}
	for i, e := range f.Inventory {
		if e.ProductID == "" {
			return Fixtures{}, fmt.Errorf("inventory row %d: product_id is required", i)
		}
		if seen[e.ProductID] {
			return Fixtures{}, fmt.Errorf("inventory row %d: duplicate product_id %s", i, e.ProductID)
		}
		if e.StockLevel < 0 || e.WeeklyUsage < 0 {
			return Fixtures{}, fmt.Errorf("inventory row %d: stock and usage must be non-negative", i)
		}
		seen[e.ProductID] = true
	}
	return f, nil
}

// Seed appends the fixture feedback to an empty ledger. A ledger that
// already holds rules was seeded by an earlier invocation and is left alone.
func (f Fixtures) Seed(ctx context.Context, ledger *Ledger) error {
	if ledger.Len() > 0 {
		return nil
	}
	for _, in := range f.Feedback {
		if _, err := ledger.Append(ctx, in); err != nil {
			return fmt.Errorf("seed feedback for %s: %w", in.EntityID, err)
		}
	}
	return nil
}
