package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

const (
	// DefaultThreshold is the weeks-of-cover bound below which an item is at risk.
	DefaultThreshold   = 4.0
	DefaultCallTimeout = 15 * time.Second
)

// Screener is Stage 1: it selects inventory whose stock runs out soon.
type Screener struct {
	store     ports.CoverageStore
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewScreener wires the coverage store with the screening threshold.
func NewScreener(store ports.CoverageStore, threshold float64, timeout time.Duration, log *slog.Logger) *Screener {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Screener{store: store, threshold: threshold, timeout: timeout, logger: orDefault(log)}
}

// Threshold returns the effective weeks-of-cover bound.
func (s *Screener) Threshold() float64 { return s.threshold }

// Screen returns entities with 0 <= cover < threshold, ascending by cover
// and then product id. Zero-usage rows never qualify.
func (s *Screener) Screen(ctx context.Context) ([]domain.InventoryEntity, error) {
	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.store.AtRisk(callCtx, s.threshold)
	if err != nil {
		return nil, unavailable("query coverage", err)
	}

	seen := make(map[string]bool, len(rows))
	out := make([]domain.InventoryEntity, 0, len(rows))
	for _, row := range rows {
		if !row.AtRisk(s.threshold) || seen[row.ProductID] {
			continue
		}
		seen[row.ProductID] = true
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, _ := out[i].WeeksCover()
		cj, _ := out[j].WeeksCover()
		if ci != cj {
			return ci < cj
		}
		return out[i].ProductID < out[j].ProductID
	})

	s.logger.Debug("screening done", "threshold", s.threshold, "rows", len(rows), "at_risk", len(out))
	return out, nil
}

func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, d)
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
