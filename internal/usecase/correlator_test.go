package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/query"
)

func newTestCorrelator(t *testing.T, store *signalStub, cfg CorrelatorConfig) *Correlator {
	t.Helper()
	planner, err := query.NewPlanner(query.DefaultRegistry(), nil)
	require.NoError(t, err)
	return NewCorrelator(store, planner, cfg, discardLogger())
}

func atRisk() []domain.InventoryEntity {
	inv := inventory()
	return []domain.InventoryEntity{inv[0], inv[3]}
}

func TestCorrelateMergesAndDeduplicates(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: signals()}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	got, gaps, err := c.Correlate(context.Background(), atRisk())
	require.NoError(t, err)
	assert.Empty(t, gaps)
	require.Len(t, got["P-100"], 1)
	assert.Contains(t, got["P-100"][0].Content, "Typhoon")
	assert.NotNil(t, got["P-400"])
	assert.Empty(t, got["P-400"])
}

func TestCorrelateRanksFiltersAndTruncates(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: []domain.Evidence{
		{Content: "Shenzhen port congestion", Relevance: 0.5},
		{Content: "shenzhen  PORT congestion", Relevance: 0.8},
		{Content: "Shenzhen power rationing", Relevance: 0.6},
		{Content: "Shenzhen holiday closures", Relevance: 0.9},
		{Content: "Shenzhen minor rain", Relevance: 0.05},
		{Content: "Shenzhen exports rise", Relevance: 0.3},
	}}
	c := newTestCorrelator(t, store, CorrelatorConfig{TopK: 3, MinRelevance: 0.1})

	got, _, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	ev := got["P-100"]
	require.Len(t, ev, 3)
	assert.Equal(t, 0.9, ev[0].Relevance)
	assert.Equal(t, 0.8, ev[1].Relevance)
	assert.Equal(t, 0.6, ev[2].Relevance)
}

func TestCorrelateKeepsMalformedSnippetsForRating(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: []domain.Evidence{
		{Content: "Shenzhen data glitch", Relevance: math.NaN()},
	}}
	c := newTestCorrelator(t, store, CorrelatorConfig{MinRelevance: 0.2})

	got, _, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	require.Len(t, got["P-100"], 1)
	assert.True(t, math.IsNaN(got["P-100"][0].Relevance))
}

func TestCorrelatePartialFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := &signalStub{
		docs:    signals(),
		failing: map[string]bool{"Power Module": true, "Volt Corp": true, "Penang": true},
	}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	got, gaps, err := c.Correlate(context.Background(), atRisk())
	require.NoError(t, err)
	require.Len(t, got["P-100"], 1)
	assert.Empty(t, got["P-400"])
	require.Len(t, gaps, 1)
	assert.Equal(t, "P-400", gaps[0].ProductID)
	assert.Equal(t, domain.PartialEvidenceGap, gaps[0].Kind)
}

func TestCorrelateKeepsEvidenceFromSurvivingQueries(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: signals(), failing: map[string]bool{"Microcontroller X": true}}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	got, gaps, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	require.Len(t, got["P-100"], 1)
	require.Len(t, gaps, 1)
	assert.Contains(t, gaps[0].Detail, "1 of 3")
}

func TestCorrelateTotalFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	store := &signalStub{failing: map[string]bool{"*": true}}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	_, _, err := c.Correlate(context.Background(), atRisk())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataSourceUnavailable))
}

func TestCorrelatePingFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	store := &pingingSignalStub{pingErr: errStoreDown}
	planner, err := query.NewPlanner(query.DefaultRegistry(), nil)
	require.NoError(t, err)
	c := NewCorrelator(store, planner, CorrelatorConfig{}, discardLogger())

	_, _, err = c.Correlate(context.Background(), atRisk())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataSourceUnavailable))
	assert.Empty(t, store.Calls())
}

func TestCorrelateNoEntities(t *testing.T) {
	t.Parallel()

	store := &signalStub{failing: map[string]bool{"*": true}}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	got, gaps, err := c.Correlate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, gaps)
}

func TestCorrelateManyEntitiesConcurrently(t *testing.T) {
	t.Parallel()

	var entities []domain.InventoryEntity
	for i := 0; i < 50; i++ {
		entities = append(entities, domain.InventoryEntity{
			ProductID:   fmt.Sprintf("P-%03d", i),
			Name:        fmt.Sprintf("Part %03d", i),
			StockLevel:  10,
			WeeklyUsage: 10,
		})
	}
	store := &signalStub{docs: []domain.Evidence{{Content: "Part 007 recalled", Relevance: 0.9}}}
	c := newTestCorrelator(t, store, CorrelatorConfig{Concurrency: 8, QueriesPerSecond: 1000, Burst: 50})

	got, gaps, err := c.Correlate(context.Background(), entities)
	require.NoError(t, err)
	assert.Empty(t, gaps)
	assert.Len(t, got, 50)
	assert.Len(t, got["P-007"], 1)
	assert.Len(t, store.Calls(), 50)
}

func TestCorrelateCancellationStopsFanOut(t *testing.T) {
	t.Parallel()

	store := &signalStub{block: true}
	c := newTestCorrelator(t, store, CorrelatorConfig{CallTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Correlate(ctx, atRisk())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCorrelateCallTimeoutBecomesGap(t *testing.T) {
	t.Parallel()

	store := &signalStub{
		docs: signals(),
		slow: map[string]bool{"Power Module": true, "Volt Corp": true, "Penang": true},
	}
	c := newTestCorrelator(t, store, CorrelatorConfig{CallTimeout: 5 * time.Millisecond})

	got, gaps, err := c.Correlate(context.Background(), atRisk())
	require.NoError(t, err)
	require.Len(t, got["P-100"], 1)
	assert.Empty(t, got["P-400"])
	require.Len(t, gaps, 1)
	assert.Equal(t, "P-400", gaps[0].ProductID)
	assert.Contains(t, gaps[0].Detail, "3 of 3")
	assert.Contains(t, gaps[0].Detail, context.DeadlineExceeded.Error())
}

func TestCorrelateEveryCallTimingOutIsUnavailable(t *testing.T) {
	t.Parallel()

	store := &signalStub{block: true}
	c := newTestCorrelator(t, store, CorrelatorConfig{CallTimeout: 5 * time.Millisecond})

	_, _, err := c.Correlate(context.Background(), atRisk())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataSourceUnavailable))
}

func TestCorrelateSingleEntityFailureWithHealthyStoreIsGap(t *testing.T) {
	t.Parallel()

	store := &pingingSignalStub{signalStub: signalStub{failing: map[string]bool{"*": true}}}
	planner, err := query.NewPlanner(query.DefaultRegistry(), nil)
	require.NoError(t, err)
	c := NewCorrelator(store, planner, CorrelatorConfig{}, discardLogger())

	got, gaps, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	assert.NotNil(t, got["P-100"])
	assert.Empty(t, got["P-100"])
	require.Len(t, gaps, 1)
	assert.Equal(t, domain.PartialEvidenceGap, gaps[0].Kind)
	assert.Contains(t, gaps[0].Detail, "3 of 3")
}

func TestCorrelateEveryEntityFailingWithHealthyStoreIsGaps(t *testing.T) {
	t.Parallel()

	store := &pingingSignalStub{signalStub: signalStub{failing: map[string]bool{"*": true}}}
	planner, err := query.NewPlanner(query.DefaultRegistry(), nil)
	require.NoError(t, err)
	c := NewCorrelator(store, planner, CorrelatorConfig{}, discardLogger())

	_, gaps, err := c.Correlate(context.Background(), atRisk())
	require.NoError(t, err)
	assert.Len(t, gaps, 2)
}

func TestCorrelateSingleEntityFailureWithoutPingIsGap(t *testing.T) {
	t.Parallel()

	store := &signalStub{failing: map[string]bool{"*": true}}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	_, gaps, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	require.Len(t, gaps, 1)
}

func TestCorrelateDropsOffTopicNeighboursByDefault(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: []domain.Evidence{
		{Content: "Shenzhen weather report: Copper prices stable across European mills", Relevance: 0.02},
		{Content: "Shenzhen trade fair opens", Relevance: 0.49},
		{Content: "Shenzhen port congestion worsens", Relevance: 0.5},
	}}
	c := newTestCorrelator(t, store, CorrelatorConfig{})

	got, _, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	require.Len(t, got["P-100"], 1)
	assert.Contains(t, got["P-100"][0].Content, "congestion")
}

func TestCorrelateKeepsNegativeRelevanceForRating(t *testing.T) {
	t.Parallel()

	store := &signalStub{docs: []domain.Evidence{
		{Content: "Shenzhen port congestion", Relevance: 0.9},
		{Content: "Shenzhen holiday closures", Relevance: 0.8},
		{Content: "Shenzhen power rationing", Relevance: 0.7},
		{Content: "Shenzhen feed glitch", Relevance: -0.3},
	}}
	c := newTestCorrelator(t, store, CorrelatorConfig{TopK: 3, MinRelevance: 0.2})

	got, _, err := c.Correlate(context.Background(), atRisk()[:1])
	require.NoError(t, err)
	ev := got["P-100"]
	require.Len(t, ev, 3)
	assert.Equal(t, -0.3, ev[0].Relevance)
}
