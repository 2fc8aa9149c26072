package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/rating"
)

// narratorAttempts is how many model calls a narrator may chain, primary
// then fallback.
const narratorAttempts = 2

// Synthesizer is Stage 3: it applies operator feedback, rates every entity
// and asks the narrator for rationale text.
type Synthesizer struct {
	ledger   ports.FeedbackLedger
	narrator ports.Narrator
	policy   rating.Policy
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSynthesizer wires the ledger and narrator; narrator may be nil.
func NewSynthesizer(ledger ports.FeedbackLedger, narrator ports.Narrator, policy rating.Policy, timeout time.Duration, log *slog.Logger) *Synthesizer {
	return &Synthesizer{
		ledger:   ledger,
		narrator: narrator,
		policy:   policy,
		timeout:  timeout,
		logger:   orDefault(log),
		now:      time.Now,
	}
}

type rated struct {
	outcome rating.Outcome
	reason  string
}

// Synthesize produces the ranked decision. Every screened entity appears
// exactly once; the only fatal error is an unreachable ledger.
func (s *Synthesizer) Synthesize(ctx context.Context, runID uuid.UUID, entities []domain.InventoryEntity, evidence map[string][]domain.Evidence, gaps []domain.Degradation) (domain.Decision, error) {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ProductID)
	}

	snapshot := map[string][]domain.FeedbackRule{}
	if s.ledger != nil && len(ids) > 0 {
		callCtx, cancel := withCallTimeout(ctx, s.timeout)
		var err error
		snapshot, err = s.ledger.ListByEntities(callCtx, ids)
		cancel()
		if err != nil {
			return domain.Decision{}, unavailable("read feedback ledger", err)
		}
	}

	degraded := append([]domain.Degradation(nil), gaps...)
	assessments := make([]domain.Assessment, 0, len(entities))
	details := make(map[string]rated, len(entities))
	effective := make(map[string][]domain.FeedbackRule, len(entities))

	for _, entity := range entities {
		rules := snapshot[entity.ProductID]
		out, err := s.policy.Rate(rating.Input{
			Entity:   entity,
			Evidence: evidence[entity.ProductID],
			Rules:    rules,
		})
		r := rated{outcome: out}
		if err != nil {
			if !errors.Is(err, rating.ErrAmbiguous) {
				return domain.Decision{}, fmt.Errorf("rate %s: %w", entity.ProductID, err)
			}
			r.reason = err.Error()
			degraded = append(degraded, domain.Degradation{
				ProductID: entity.ProductID,
				Kind:      domain.SynthesisAmbiguity,
				Detail:    err.Error(),
			})
			s.logger.Warn("rating failed closed", "product_id", entity.ProductID, "error", err)
		}
		details[entity.ProductID] = r
		if eff := rating.EffectiveRules(rules); len(eff) > 0 {
			effective[entity.ProductID] = eff
		}

		assessments = append(assessments, domain.Assessment{
			ProductID:   entity.ProductID,
			Name:        entity.Name,
			WeeksCover:  out.WeeksCover,
			Rating:      out.Rating,
			Action:      rating.ActionFor(out.Rating, out.NeedsReview),
			Evidence:    out.Evidence(),
			Suppressed:  out.Suppressed,
			NeedsReview: out.NeedsReview,
		})
	}

	rating.Rank(assessments)
	sort.SliceStable(degraded, func(i, j int) bool {
		if degraded[i].ProductID != degraded[j].ProductID {
			return degraded[i].ProductID < degraded[j].ProductID
		}
		return degraded[i].Kind < degraded[j].Kind
	})

	narrative := s.narrate(ctx, assessments, effective)
	for i := range assessments {
		a := &assessments[i]
		if text := strings.TrimSpace(narrative.Rationales[a.ProductID]); text != "" && !a.NeedsReview {
			a.Rationale = text
			continue
		}
		a.Rationale = templateRationale(*a, details[a.ProductID])
	}

	summary := strings.TrimSpace(narrative.Summary)
	if summary == "" {
		summary = templateSummary(assessments, degraded)
	}

	return domain.Decision{
		RunID:       runID,
		GeneratedAt: s.now().UTC(),
		Summary:     summary,
		Assessments: assessments,
		Degraded:    degraded,
	}, nil
}

// narrate never fails the stage; errors fall back to the template text.
func (s *Synthesizer) narrate(ctx context.Context, assessments []domain.Assessment, feedback map[string][]domain.FeedbackRule) ports.Narrative {
	if s.narrator == nil || len(assessments) == 0 {
		return ports.Narrative{}
	}

	// A fallback narrator bounds each of its attempts by the call timeout,
	// so the whole call may take both.
	budget := s.timeout
	if budget <= 0 {
		budget = DefaultCallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, narratorAttempts*budget)
	defer cancel()

	req := ports.NarrativeRequest{
		Assessments: append([]domain.Assessment(nil), assessments...),
		Feedback:    feedback,
	}
	narrative, err := s.narrator.Narrate(callCtx, req)
	if err != nil {
		s.logger.Warn("narrator failed, using template rationale", "error", err)
		return ports.Narrative{}
	}
	return narrative
}

func templateRationale(a domain.Assessment, r rated) string {
	if a.NeedsReview {
		return fmt.Sprintf("Rated %s pending manual review: %s.", a.Rating, r.reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%.2f weeks of cover remaining.", a.WeeksCover)
	switch n := len(a.Evidence); n {
	case 0:
		b.WriteString(" No external risk signals found.")
	default:
		fmt.Fprintf(&b, " %d external risk signal(s), %d strong.", n, r.outcome.Strong)
		fmt.Fprintf(&b, " Top signal: %s", truncate(a.Evidence[0].Content, 160))
	}
	if a.Suppressed > 0 {
		fmt.Fprintf(&b, " %d signal(s) suppressed by operator feedback.", a.Suppressed)
	}
	return b.String()
}

func templateSummary(assessments []domain.Assessment, degraded []domain.Degradation) string {
	counts := map[domain.Rating]int{}
	for _, a := range assessments {
		counts[a.Rating]++
	}
	summary := fmt.Sprintf("%d item(s) at risk: %d critical, %d high, %d low.",
		len(assessments), counts[domain.RatingCritical], counts[domain.RatingHigh], counts[domain.RatingLow])
	if len(degraded) > 0 {
		summary += fmt.Sprintf(" %d degraded result(s) need attention.", len(degraded))
	}
	return summary
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
