package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/rating"
)

const defaultSystemPrompt = `You are a supply-chain risk analyst. You receive inventory items that
have already been rated for stockout risk together with the external signals
and operator feedback behind each rating. Do not change or question ratings.
For every item write a short rationale (at most three sentences) explaining
the rating from the evidence, and one overall summary for the run.
Reply with JSON only: {"summary": "...", "rationales": [{"product_id": "...", "rationale": "..."}]}`

var narrativeSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["summary", "rationales"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "rationales": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["product_id", "rationale"],
        "properties": {
          "product_id": {"type": "string", "minLength": 1},
          "rationale": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`)

// ErrInvalidNarrative is returned when model output does not match the schema.
var ErrInvalidNarrative = errors.New("invalid narrative")

type narrativePayload struct {
	Summary    string `json:"summary"`
	Rationales []struct {
		ProductID string `json:"product_id"`
		Rationale string `json:"rationale"`
	} `json:"rationales"`
}

// ValidateNarrative checks raw model output against the narrative schema.
func ValidateNarrative(raw []byte) error {
	result, err := gojsonschema.Validate(narrativeSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNarrative, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidNarrative, strings.Join(msgs, "; "))
}

// ParseNarrative validates model output and keeps rationales only for
// products that were actually assessed.
func ParseNarrative(text string, assessments []domain.Assessment) (ports.Narrative, error) {
	raw := []byte(cleanJSONBlock(text))
	if err := ValidateNarrative(raw); err != nil {
		return ports.Narrative{}, err
	}

	var payload narrativePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ports.Narrative{}, fmt.Errorf("%w: %v", ErrInvalidNarrative, err)
	}

	known := make(map[string]bool, len(assessments))
	for _, a := range assessments {
		known[a.ProductID] = true
	}
	out := ports.Narrative{
		Summary:    strings.TrimSpace(payload.Summary),
		Rationales: make(map[string]string, len(payload.Rationales)),
	}
	for _, r := range payload.Rationales {
		if known[r.ProductID] {
			out.Rationales[r.ProductID] = strings.TrimSpace(r.Rationale)
		}
	}
	return out, nil
}

type promptItem struct {
	ProductID  string   `json:"product_id"`
	Name       string   `json:"product_name"`
	Rating     string   `json:"rating"`
	WeeksCover float64  `json:"weeks_cover"`
	Action     string   `json:"action"`
	Evidence   []string `json:"evidence,omitempty"`
	Suppressed int      `json:"suppressed_by_feedback,omitempty"`
	Feedback   []string `json:"operator_feedback,omitempty"`
}

// buildUserPrompt renders the request as the JSON document the model reads.
func buildUserPrompt(req ports.NarrativeRequest) (string, error) {
	items := make([]promptItem, 0, len(req.Assessments))
	for _, a := range req.Assessments {
		item := promptItem{
			ProductID:  a.ProductID,
			Name:       a.Name,
			Rating:     a.Rating.String(),
			WeeksCover: a.WeeksCover,
			Action:     a.Action,
			Suppressed: a.Suppressed,
		}
		for _, e := range a.Evidence {
			item.Evidence = append(item.Evidence, fmt.Sprintf("(%.2f) %s", e.Relevance, e.Content))
		}
		for _, r := range rating.EffectiveRules(req.Feedback[a.ProductID]) {
			item.Feedback = append(item.Feedback, fmt.Sprintf("%s %q %s", r.Status, r.Rule, r.Note))
		}
		items = append(items, item)
	}

	raw, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return string(raw), nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return defaultSystemPrompt
	}
	return prompt
}

// cleanJSONBlock removes markdown code fences around JSON output.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
