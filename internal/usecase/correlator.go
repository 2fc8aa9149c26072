package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/query"
)

const (
	DefaultTopK = 3
	// DefaultMinRelevance drops nearest neighbours that share nothing with
	// the query; a vector store always returns K rows however unrelated.
	DefaultMinRelevance = 0.5
	defaultConcurrency  = 4
)

// CorrelatorConfig bounds Stage 2 fan-out.
type CorrelatorConfig struct {
	TopK int
	// MinRelevance is the floor for well-formed snippets; zero means
	// DefaultMinRelevance.
	MinRelevance float64
	Concurrency  int
	// QueriesPerSecond throttles signal-store calls; zero disables throttling.
	QueriesPerSecond float64
	Burst            int
	CallTimeout      time.Duration
}

// Correlator is Stage 2: it attaches external risk evidence to each entity.
type Correlator struct {
	store   ports.SignalStore
	planner *query.Planner
	cfg     CorrelatorConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewCorrelator wires the signal store and query planner.
func NewCorrelator(store ports.SignalStore, planner *query.Planner, cfg CorrelatorConfig, log *slog.Logger) *Correlator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinRelevance <= 0 {
		cfg.MinRelevance = DefaultMinRelevance
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.QueriesPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}
	return &Correlator{store: store, planner: planner, cfg: cfg, limiter: limiter, logger: orDefault(log)}
}

// Correlate returns evidence keyed by product id for every entity. A failed
// lookup yields empty evidence and a PartialEvidenceGap; the stage fails only
// when the store is unreachable.
func (c *Correlator) Correlate(ctx context.Context, entities []domain.InventoryEntity) (map[string][]domain.Evidence, []domain.Degradation, error) {
	results := make(map[string][]domain.Evidence, len(entities))
	if len(entities) == 0 {
		return results, nil, nil
	}

	pinged := false
	if pinger, ok := c.store.(ports.Pinger); ok {
		pingCtx, cancel := withCallTimeout(ctx, c.cfg.CallTimeout)
		err := pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, nil, unavailable("ping signal store", err)
		}
		pinged = true
	}

	var (
		mu       sync.Mutex
		gaps     []domain.Degradation
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			evidence, failed, total, err := c.lookup(gctx, entity)
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}

			mu.Lock()
			defer mu.Unlock()
			results[entity.ProductID] = evidence
			if failed == 0 {
				return nil
			}
			if failed == total {
				failures++
			}
			gaps = append(gaps, domain.Degradation{
				ProductID: entity.ProductID,
				Kind:      domain.PartialEvidenceGap,
				Detail:    fmt.Sprintf("%d of %d signal queries failed: %v", failed, total, err),
			})
			c.logger.Warn("evidence lookup failed", "product_id", entity.ProductID, "failed", failed, "queries", total, "error", err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("correlate: %w", err)
	}

	// A store that answered its ping is reachable, so lookup failures stay
	// per-entity gaps. Without a ping, several entities all failing is the
	// only signal that the store is down.
	if !pinged && len(entities) > 1 && failures == len(entities) {
		return nil, nil, fmt.Errorf("search signals: %w: every lookup failed", ErrDataSourceUnavailable)
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i].ProductID < gaps[j].ProductID })
	c.logger.Debug("correlation done", "entities", len(entities), "gaps", len(gaps))
	return results, gaps, nil
}

// lookup runs every planned query for one entity and reports how many failed
// together with the last error seen.
func (c *Correlator) lookup(ctx context.Context, entity domain.InventoryEntity) ([]domain.Evidence, int, int, error) {
	queries := c.planner.Queries(entity)
	var (
		merged  []domain.Evidence
		failed  int
		lastErr error
	)
	for _, q := range queries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, len(queries), len(queries), err
		}
		callCtx, cancel := withCallTimeout(ctx, c.cfg.CallTimeout)
		found, err := c.store.Search(callCtx, q, c.cfg.TopK)
		cancel()
		if err != nil {
			failed++
			lastErr = fmt.Errorf("query %q: %w", q, err)
			continue
		}
		merged = append(merged, found...)
	}
	return c.rank(merged), failed, len(queries), lastErr
}

// rank de-duplicates by normalized content, drops low-relevance snippets and
// keeps the top K by relevance. Malformed snippets bypass the relevance floor
// so the rating policy can fail closed on them.
func (c *Correlator) rank(evidence []domain.Evidence) []domain.Evidence {
	byKey := make(map[string]domain.Evidence, len(evidence))
	for _, e := range evidence {
		if e.Valid() && e.Relevance < c.cfg.MinRelevance {
			continue
		}
		key := e.Key()
		if prev, ok := byKey[key]; ok && sortScore(prev.Relevance) >= sortScore(e.Relevance) {
			continue
		}
		byKey[key] = e
	}

	out := make([]domain.Evidence, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := sortScore(out[i].Relevance), sortScore(out[j].Relevance)
		if si != sj {
			return si > sj
		}
		return out[i].Key() < out[j].Key()
	})
	if len(out) > c.cfg.TopK {
		out = out[:c.cfg.TopK]
	}
	return out
}

// sortScore puts out-of-range scores first so malformed snippets survive the
// top-K cut and reach the rating policy.
func sortScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return math.Inf(1)
	}
	return v
}
