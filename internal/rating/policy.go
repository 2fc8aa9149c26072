// Package rating holds the deterministic rating policy for at-risk inventory.
// It has no I/O and imports nothing but the domain model, so every rule here
// is tested without stores or a language model.
package rating

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"SupplyRadar/internal/domain"
)

const (
	defaultFloorCover      = 1.0
	defaultStrongRelevance = 0.85
)

// ErrAmbiguous is returned when a rating cannot be derived from the inputs.
// The accompanying Outcome is always the fail-closed CRITICAL rating.
var ErrAmbiguous = errors.New("rating ambiguous")

// Policy weighs weeks of cover and external evidence.
type Policy struct {
	// FloorCover is the secondary lower bound: entities below it start at HIGH.
	FloorCover float64
	// StrongRelevance marks evidence as strong even without a supplier or region match.
	StrongRelevance float64
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{FloorCover: defaultFloorCover, StrongRelevance: defaultStrongRelevance}
}

// Input is one entity with its correlated evidence and every ledger rule
// recorded for it, oldest first.
type Input struct {
	Entity   domain.InventoryEntity
	Evidence []domain.Evidence
	Rules    []domain.FeedbackRule
}

// Outcome is the rating together with the evidence that produced it.
type Outcome struct {
	Rating      domain.Rating
	WeeksCover  float64
	Kept        []Weighed
	Suppressed  int
	Strong      int
	NeedsReview bool
}

// Evidence returns the snippets that survived feedback, in input order.
func (o Outcome) Evidence() []domain.Evidence {
	out := make([]domain.Evidence, 0, len(o.Kept))
	for _, w := range o.Kept {
		out = append(out, w.Evidence)
	}
	return out
}

// Rate applies feedback first and then rates what remains. On malformed input
// it returns the fail-closed outcome and an error wrapping ErrAmbiguous.
func (p Policy) Rate(in Input) (Outcome, error) {
	p = p.withDefaults()

	cover, ok := in.Entity.WeeksCover()
	if !ok || math.IsNaN(cover) || math.IsInf(cover, 0) || cover < 0 {
		return failClosed(cover), fmt.Errorf("%w: undefined weeks cover for %s", ErrAmbiguous, in.Entity.ProductID)
	}
	for i, e := range in.Evidence {
		if !e.Valid() {
			return failClosed(cover), fmt.Errorf("%w: malformed evidence #%d for %s", ErrAmbiguous, i, in.Entity.ProductID)
		}
	}

	kept, suppressed := ApplyFeedback(in.Evidence, in.Rules)

	out := Outcome{
		Rating:     domain.RatingLow,
		WeeksCover: cover,
		Kept:       kept,
		Suppressed: suppressed,
	}
	if cover < p.FloorCover {
		out.Rating = domain.RatingHigh
	}
	if len(kept) > 0 && out.Rating < domain.RatingHigh {
		out.Rating = domain.RatingHigh
	}
	for _, w := range kept {
		if p.isStrong(in.Entity, w) {
			out.Strong++
		}
	}
	if out.Strong > 0 {
		out.Rating = out.Rating.Raise()
	}
	return out, nil
}

func (p Policy) withDefaults() Policy {
	if p.FloorCover <= 0 {
		p.FloorCover = defaultFloorCover
	}
	if p.StrongRelevance <= 0 || p.StrongRelevance > 1 {
		p.StrongRelevance = defaultStrongRelevance
	}
	return p
}

func (p Policy) isStrong(entity domain.InventoryEntity, w Weighed) bool {
	if w.Downgraded {
		return false
	}
	if w.Relevance >= p.StrongRelevance {
		return true
	}
	key := w.Key()
	for _, term := range []string{entity.Supplier, entity.Region} {
		term = strings.ToLower(strings.Join(strings.Fields(term), " "))
		if term != "" && strings.Contains(key, term) {
			return true
		}
	}
	return false
}

func failClosed(cover float64) Outcome {
	if math.IsNaN(cover) || math.IsInf(cover, 0) {
		cover = 0
	}
	return Outcome{Rating: domain.RatingCritical, WeeksCover: cover, NeedsReview: true}
}

// ActionFor maps a rating to the recommended operator action.
func ActionFor(r domain.Rating, needsReview bool) string {
	if needsReview {
		return "Manual review required: rating could not be derived, treat as critical until checked."
	}
	switch r {
	case domain.RatingCritical:
		return "Expedite replenishment and activate an alternate supplier now."
	case domain.RatingHigh:
		return "Place a replenishment order and monitor the supplier daily."
	default:
		return "No action beyond the standard reorder cycle."
	}
}

// Rank orders assessments by rating desc, then weeks cover asc, then product id.
func Rank(assessments []domain.Assessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		a, b := assessments[i], assessments[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.WeeksCover != b.WeeksCover {
			return a.WeeksCover < b.WeeksCover
		}
		return a.ProductID < b.ProductID
	})
}
