package httpapi

import (
	"errors"
	"net/http"

	"SupplyRadar/internal/usecase"
)

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeJSONError(w, http.StatusNotImplemented, "pipeline is not configured", "")
		return
	}
	if !s.runMu.TryLock() {
		writeJSONError(w, http.StatusConflict, "a run is already in progress", "")
		return
	}
	defer s.runMu.Unlock()

	state, err := s.runner.Run(r.Context())
	if err != nil {
		var stageErr *usecase.StageError
		if !errors.As(err, &stageErr) {
			writeJSONError(w, http.StatusInternalServerError, "run failed", err.Error())
			return
		}
		respondJSON(w, statusForKind(stageErr.Kind), stageErr)
		return
	}

	decision, _ := state.Decision()
	respondJSON(w, http.StatusOK, decision)
}

func statusForKind(kind usecase.Kind) int {
	switch kind {
	case usecase.KindDataSourceUnavailable:
		return http.StatusServiceUnavailable
	case usecase.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
