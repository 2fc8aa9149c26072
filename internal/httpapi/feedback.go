package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/rating"
)

const maxBodyBytes = 64 << 10

type feedbackList struct {
	Entity    string                `json:"entity"`
	Rules     []domain.FeedbackRule `json:"rules"`
	Effective []domain.FeedbackRule `json:"effective"`
}

func (s *Server) handleAppendFeedback(w http.ResponseWriter, r *http.Request) {
	var in domain.FeedbackInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid feedback", err.Error())
		return
	}

	rule, err := s.ledger.Append(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			writeJSONError(w, http.StatusUnprocessableEntity, "invalid feedback", err.Error())
			return
		}
		s.logger.Error("append feedback failed", "entity", in.EntityID, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "feedback ledger unavailable", "")
		return
	}

	s.logger.Info("feedback recorded", "entity", rule.EntityID, "rule", rule.Rule, "status", rule.Status)
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	entityID := strings.TrimSpace(chi.URLParam(r, "entityID"))
	if entityID == "" {
		writeJSONError(w, http.StatusBadRequest, "entity id is required", "")
		return
	}

	rules, err := s.ledger.ListByEntity(r.Context(), entityID)
	if err != nil {
		s.logger.Error("list feedback failed", "entity", entityID, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, "feedback ledger unavailable", "")
		return
	}
	if rules == nil {
		rules = []domain.FeedbackRule{}
	}

	respondJSON(w, http.StatusOK, feedbackList{
		Entity:    entityID,
		Rules:     rules,
		Effective: rating.EffectiveRules(rules),
	})
}
