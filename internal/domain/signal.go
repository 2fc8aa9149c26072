package domain

import (
	"math"
	"strings"
	"time"
)

// Evidence is one retrieved risk signal snippet with its relevance score.
type Evidence struct {
	Content     string    `json:"content" yaml:"content"`
	Relevance   float64   `json:"relevance_score" yaml:"relevance"`
	Source      string    `json:"source,omitempty" yaml:"source"`
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at"`
}

// Valid reports whether the snippet can be weighed by the rating policy.
func (e Evidence) Valid() bool {
	if strings.TrimSpace(e.Content) == "" {
		return false
	}
	if math.IsNaN(e.Relevance) || e.Relevance < 0 || e.Relevance > 1 {
		return false
	}
	return true
}

// Key is the normalized content used to de-duplicate snippets across queries.
func (e Evidence) Key() string {
	return strings.ToLower(strings.Join(strings.Fields(e.Content), " "))
}
