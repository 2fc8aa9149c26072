package rating

import (
	"sort"
	"strings"

	"SupplyRadar/internal/domain"
)

// Weighed is a snippet annotated with the feedback that applies to it.
type Weighed struct {
	domain.Evidence
	Downgraded bool
	Confirmed  bool
}

// EffectiveRules resolves the ledger history of one entity. The most recent
// rule for a given pattern wins; rules with different patterns accumulate.
// The result is ordered by pattern so downstream output is stable.
func EffectiveRules(rules []domain.FeedbackRule) []domain.FeedbackRule {
	latest := make(map[string]domain.FeedbackRule, len(rules))
	for _, r := range rules {
		key := patternKey(r.Rule)
		if key == "" {
			continue
		}
		prev, seen := latest[key]
		if seen && r.CreatedAt.Before(prev.CreatedAt) {
			continue
		}
		latest[key] = r
	}

	out := make([]domain.FeedbackRule, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return patternKey(out[i].Rule) < patternKey(out[j].Rule)
	})
	return out
}

// ApplyFeedback filters evidence through the effective rules. When several
// rules match one snippet, ignore_if_missed beats downgrade, which beats confirm.
func ApplyFeedback(evidence []domain.Evidence, rules []domain.FeedbackRule) ([]Weighed, int) {
	effective := EffectiveRules(rules)
	kept := make([]Weighed, 0, len(evidence))
	suppressed := 0

	for _, e := range evidence {
		w := Weighed{Evidence: e}
		ignored := false
		for _, r := range effective {
			if !r.Matches(e) {
				continue
			}
			switch r.Status {
			case domain.StatusIgnoreIfMissed:
				ignored = true
			case domain.StatusDowngrade:
				w.Downgraded = true
			case domain.StatusConfirm:
				w.Confirmed = true
			}
		}
		if ignored {
			suppressed++
			continue
		}
		kept = append(kept, w)
	}
	return kept, suppressed
}

func patternKey(rule string) string {
	return strings.ToLower(strings.Join(strings.Fields(rule), " "))
}
