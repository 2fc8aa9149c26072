package rating

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupplyRadar/internal/domain"
)

func microcontroller() domain.InventoryEntity {
	return domain.InventoryEntity{
		ProductID:   "P-100",
		Name:        "Microcontroller X",
		StockLevel:  200,
		WeeklyUsage: 100,
		Supplier:    "Shenzhen Components",
		Region:      "Shenzhen",
	}
}

func typhoon() domain.Evidence {
	return domain.Evidence{
		Content:   "Typhoon closes ports near Shenzhen; shipments delayed two weeks.",
		Relevance: 0.7,
	}
}

func rule(pattern string, status domain.FeedbackStatus, at time.Time) domain.FeedbackRule {
	return domain.FeedbackRule{EntityID: "P-100", Rule: pattern, Status: status, CreatedAt: at}
}

func TestRateTyphoonScenario(t *testing.T) {
	t.Parallel()

	out, err := DefaultPolicy().Rate(Input{
		Entity:   microcontroller(),
		Evidence: []domain.Evidence{typhoon()},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingCritical, out.Rating)
	assert.Equal(t, 2.0, out.WeeksCover)
	assert.Equal(t, 1, out.Strong)
	assert.Len(t, out.Kept, 1)
	assert.False(t, out.NeedsReview)
}

func TestRateIgnoreRuleRemovesEscalation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	out, err := DefaultPolicy().Rate(Input{
		Entity:   microcontroller(),
		Evidence: []domain.Evidence{typhoon()},
		Rules:    []domain.FeedbackRule{rule("typhoon", domain.StatusIgnoreIfMissed, now)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingLow, out.Rating)
	assert.Equal(t, 1, out.Suppressed)
	assert.Empty(t, out.Kept)
}

func TestRateBaseRatings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		stock int64
		want  domain.Rating
	}{
		{name: "below floor", stock: 50, want: domain.RatingHigh},
		{name: "above floor", stock: 300, want: domain.RatingLow},
		{name: "empty shelf", stock: 0, want: domain.RatingHigh},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entity := microcontroller()
			entity.StockLevel = tc.stock
			out, err := DefaultPolicy().Rate(Input{Entity: entity})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Rating)
		})
	}
}

func TestRateWeakEvidenceRaisesToHigh(t *testing.T) {
	t.Parallel()

	entity := microcontroller()
	entity.Supplier, entity.Region = "", ""
	out, err := DefaultPolicy().Rate(Input{
		Entity:   entity,
		Evidence: []domain.Evidence{{Content: "Minor port congestion reported in Europe", Relevance: 0.4}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingHigh, out.Rating)
	assert.Zero(t, out.Strong)
}

func TestRateHighRelevanceIsStrong(t *testing.T) {
	t.Parallel()

	entity := microcontroller()
	entity.Supplier, entity.Region = "", ""
	out, err := DefaultPolicy().Rate(Input{
		Entity:   entity,
		Evidence: []domain.Evidence{{Content: "Global chip shortage deepens", Relevance: 0.9}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingCritical, out.Rating)
}

func TestRateDowngradeKeepsEvidenceButNotStrength(t *testing.T) {
	t.Parallel()

	out, err := DefaultPolicy().Rate(Input{
		Entity:   microcontroller(),
		Evidence: []domain.Evidence{typhoon()},
		Rules:    []domain.FeedbackRule{rule("Typhoon", domain.StatusDowngrade, time.Now())},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingHigh, out.Rating)
	require.Len(t, out.Kept, 1)
	assert.True(t, out.Kept[0].Downgraded)
}

func TestRateConfirmHasNoSeverityEffect(t *testing.T) {
	t.Parallel()

	base, err := DefaultPolicy().Rate(Input{Entity: microcontroller(), Evidence: []domain.Evidence{typhoon()}})
	require.NoError(t, err)

	confirmed, err := DefaultPolicy().Rate(Input{
		Entity:   microcontroller(),
		Evidence: []domain.Evidence{typhoon()},
		Rules:    []domain.FeedbackRule{rule("*", domain.StatusConfirm, time.Now())},
	})
	require.NoError(t, err)
	assert.Equal(t, base.Rating, confirmed.Rating)
	assert.True(t, confirmed.Kept[0].Confirmed)
}

func TestRateIsIdempotent(t *testing.T) {
	t.Parallel()

	in := Input{
		Entity: microcontroller(),
		Evidence: []domain.Evidence{
			typhoon(),
			{Content: "Rail strike in northern Europe", Relevance: 0.3},
		},
		Rules: []domain.FeedbackRule{rule("rail", domain.StatusDowngrade, time.Now())},
	}
	first, err := DefaultPolicy().Rate(in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := DefaultPolicy().Rate(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRateSuppressionIsMonotonic(t *testing.T) {
	t.Parallel()

	evidence := []domain.Evidence{
		typhoon(),
		{Content: "Shenzhen Components reports a factory fire", Relevance: 0.6},
		{Content: "Fuel prices rise slightly", Relevance: 0.2},
	}
	patterns := []string{"typhoon", "factory", "fuel", "*"}

	entity := microcontroller()
	prev, err := DefaultPolicy().Rate(Input{Entity: entity, Evidence: evidence})
	require.NoError(t, err)

	var rules []domain.FeedbackRule
	now := time.Now()
	for i, p := range patterns {
		rules = append(rules, rule(p, domain.StatusIgnoreIfMissed, now.Add(time.Duration(i)*time.Second)))
		next, err := DefaultPolicy().Rate(Input{Entity: entity, Evidence: evidence, Rules: rules})
		require.NoError(t, err)
		assert.LessOrEqual(t, next.Rating, prev.Rating, "after ignoring %q", p)
		prev = next
	}
	assert.Equal(t, domain.RatingLow, prev.Rating)
}

func TestRateFailsClosedOnMalformedInput(t *testing.T) {
	t.Parallel()

	zeroUsage := microcontroller()
	zeroUsage.WeeklyUsage = 0

	cases := []struct {
		name     string
		entity   domain.InventoryEntity
		evidence []domain.Evidence
	}{
		{name: "undefined cover", entity: zeroUsage},
		{name: "blank content", entity: microcontroller(), evidence: []domain.Evidence{{Content: "   ", Relevance: 0.5}}},
		{name: "relevance above one", entity: microcontroller(), evidence: []domain.Evidence{{Content: "x", Relevance: 1.5}}},
		{name: "negative relevance", entity: microcontroller(), evidence: []domain.Evidence{{Content: "x", Relevance: -0.1}}},
		{name: "nan relevance", entity: microcontroller(), evidence: []domain.Evidence{{Content: "x", Relevance: math.NaN()}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := DefaultPolicy().Rate(Input{Entity: tc.entity, Evidence: tc.evidence})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAmbiguous))
			assert.Equal(t, domain.RatingCritical, out.Rating)
			assert.True(t, out.NeedsReview)
		})
	}
}

func TestZeroPolicyUsesDefaults(t *testing.T) {
	t.Parallel()

	entity := microcontroller()
	entity.StockLevel = 50
	out, err := Policy{}.Rate(Input{Entity: entity})
	require.NoError(t, err)
	assert.Equal(t, domain.RatingHigh, out.Rating)
}

func TestActionFor(t *testing.T) {
	t.Parallel()

	assert.Contains(t, ActionFor(domain.RatingCritical, false), "Expedite")
	assert.Contains(t, ActionFor(domain.RatingHigh, false), "replenishment order")
	assert.Contains(t, ActionFor(domain.RatingLow, false), "standard reorder")
	assert.Contains(t, ActionFor(domain.RatingLow, true), "Manual review")
}

func TestRankOrdersByRatingCoverThenID(t *testing.T) {
	t.Parallel()

	assessments := []domain.Assessment{
		{ProductID: "C", Rating: domain.RatingHigh, WeeksCover: 2},
		{ProductID: "B", Rating: domain.RatingCritical, WeeksCover: 3},
		{ProductID: "A", Rating: domain.RatingHigh, WeeksCover: 2},
		{ProductID: "D", Rating: domain.RatingLow, WeeksCover: 0.5},
		{ProductID: "E", Rating: domain.RatingHigh, WeeksCover: 1},
	}
	Rank(assessments)

	ids := make([]string, 0, len(assessments))
	for _, a := range assessments {
		ids = append(ids, a.ProductID)
	}
	assert.Equal(t, []string{"B", "E", "A", "C", "D"}, ids)
}
