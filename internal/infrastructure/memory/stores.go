// Package memory provides in-process stores used for offline runs and demos.
package memory

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/infrastructure/parser"
	"SupplyRadar/internal/ports"
)

// CoverageStore serves a fixed inventory snapshot.
type CoverageStore struct {
	rows []domain.InventoryEntity
}

var _ ports.CoverageStore = (*CoverageStore)(nil)

func NewCoverageStore(rows []domain.InventoryEntity) *CoverageStore {
	return &CoverageStore{rows: append([]domain.InventoryEntity(nil), rows...)}
}

func (s *CoverageStore) AtRisk(ctx context.Context, threshold float64) ([]domain.InventoryEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.InventoryEntity, 0, len(s.rows))
	for _, r := range s.rows {
		if r.AtRisk(threshold) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, _ := out[i].WeeksCover()
		cj, _ := out[j].WeeksCover()
		if ci != cj {
			return ci < cj
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// SignalStore scores documents by query-term overlap. A document's own
// relevance, when set, scales the overlap score. HTML content is reduced to
// plain text on construction.
type SignalStore struct {
	docs   []domain.Evidence
	tokens []map[string]bool
}

var _ ports.SignalStore = (*SignalStore)(nil)

func NewSignalStore(docs []domain.Evidence) *SignalStore {
	s := &SignalStore{docs: make([]domain.Evidence, 0, len(docs))}
	for _, d := range docs {
		d.Content = parser.PlainText(d.Content)
		s.docs = append(s.docs, d)
	}
	for _, d := range s.docs {
		set := map[string]bool{}
		for _, tok := range tokenize(d.Content) {
			set[tok] = true
		}
		s.tokens = append(s.tokens, set)
	}
	return s
}

func (s *SignalStore) Search(ctx context.Context, query string, limit int) ([]domain.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	var out []domain.Evidence
	for i, d := range s.docs {
		hits := 0
		for _, term := range terms {
			if s.tokens[i][term] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(terms))
		if d.Relevance > 0 && d.Relevance <= 1 {
			score *= d.Relevance
		}
		e := d
		e.Relevance = score
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Content < out[j].Content
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
