package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// FeedbackStatus is the operator verdict stored with a rule.
type FeedbackStatus string

const (
	// StatusIgnoreIfMissed drops matching evidence before rating.
	StatusIgnoreIfMissed FeedbackStatus = "ignore_if_missed"
	// StatusDowngrade keeps matching evidence but never lets it count as strong.
	StatusDowngrade FeedbackStatus = "downgrade"
	// StatusConfirm marks matching evidence as operator-confirmed.
	StatusConfirm FeedbackStatus = "confirm"
)

// MatchAll is the rule pattern that applies to every snippet of an entity.
const MatchAll = "*"

// ErrInvalidStatus is returned for statuses outside the known set.
var ErrInvalidStatus = errors.New("invalid feedback status")

// ParseFeedbackStatus normalizes user input into a known status.
func ParseFeedbackStatus(raw string) (FeedbackStatus, error) {
	status := FeedbackStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusIgnoreIfMissed, StatusDowngrade, StatusConfirm:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// FeedbackInput is what an operator submits to the ledger.
type FeedbackInput struct {
	EntityID string         `json:"entity" yaml:"entity" validate:"required,max=128"`
	Rule     string         `json:"rule" yaml:"rule" validate:"required,max=512"`
	Status   FeedbackStatus `json:"status" yaml:"status" validate:"required,oneof=ignore_if_missed downgrade confirm"`
	Note     string         `json:"note,omitempty" yaml:"note" validate:"max=2000"`
}

// Validate normalizes whitespace and checks the input with struct tags.
func (in *FeedbackInput) Validate() error {
	in.EntityID = strings.TrimSpace(in.EntityID)
	in.Rule = strings.TrimSpace(in.Rule)
	in.Note = strings.TrimSpace(in.Note)
	in.Status = FeedbackStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}
	return nil
}

// FeedbackRule is a persisted, immutable operator correction.
type FeedbackRule struct {
	ID        uuid.UUID      `json:"id"`
	EntityID  string         `json:"entity"`
	Rule      string         `json:"rule"`
	Status    FeedbackStatus `json:"status"`
	Note      string         `json:"note,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Matches reports whether the rule pattern applies to the snippet.
// Patterns are case-insensitive substrings; MatchAll applies to everything.
func (r FeedbackRule) Matches(e Evidence) bool {
	pattern := strings.ToLower(strings.TrimSpace(r.Rule))
	if pattern == "" {
		return false
	}
	if pattern == MatchAll {
		return true
	}
	return strings.Contains(e.Key(), strings.Join(strings.Fields(pattern), " "))
}
