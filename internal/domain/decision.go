package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rating is the ordered risk scale.
type Rating int

const (
	RatingLow Rating = iota + 1
	RatingHigh
	RatingCritical
)

func (r Rating) String() string {
	switch r {
	case RatingLow:
		return "LOW"
	case RatingHigh:
		return "HIGH"
	case RatingCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Rating(%d)", int(r))
	}
}

// Raise moves one level up the scale, saturating at CRITICAL.
func (r Rating) Raise() Rating {
	if r >= RatingCritical {
		return RatingCritical
	}
	return r + 1
}

// MarshalText renders the rating by name in JSON and YAML.
func (r Rating) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses LOW, HIGH or CRITICAL.
func (r *Rating) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "LOW":
		*r = RatingLow
	case "HIGH":
		*r = RatingHigh
	case "CRITICAL":
		*r = RatingCritical
	default:
		return fmt.Errorf("unknown rating %q", string(text))
	}
	return nil
}

// DegradationKind names a failure that was recovered locally.
type DegradationKind string

const (
	// PartialEvidenceGap marks an entity whose evidence lookup failed.
	PartialEvidenceGap DegradationKind = "PartialEvidenceGap"
	// SynthesisAmbiguity marks an entity rated fail-closed.
	SynthesisAmbiguity DegradationKind = "SynthesisAmbiguity"
)

// Degradation tells operators which ratings deserve a second look.
type Degradation struct {
	ProductID string          `json:"product_id"`
	Kind      DegradationKind `json:"kind"`
	Detail    string          `json:"detail"`
}

// Assessment is the rated outcome for one at-risk entity.
type Assessment struct {
	ProductID   string     `json:"product_id"`
	Name        string     `json:"product_name"`
	WeeksCover  float64    `json:"weeks_cover"`
	Rating      Rating     `json:"rating"`
	Action      string     `json:"action"`
	Rationale   string     `json:"rationale"`
	Evidence    []Evidence `json:"evidence,omitempty"`
	Suppressed  int        `json:"suppressed_evidence,omitempty"`
	NeedsReview bool       `json:"needs_review,omitempty"`
}

// Decision is the final ranked output of one pipeline run.
type Decision struct {
	RunID       uuid.UUID     `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     string        `json:"summary,omitempty"`
	Assessments []Assessment  `json:"assessments"`
	Degraded    []Degradation `json:"degraded,omitempty"`
}

// Escalations returns assessments rated HIGH or above, in ranked order.
func (d Decision) Escalations() []Assessment {
	out := make([]Assessment, 0, len(d.Assessments))
	for _, a := range d.Assessments {
		if a.Rating >= RatingHigh {
			out = append(out, a)
		}
	}
	return out
}
