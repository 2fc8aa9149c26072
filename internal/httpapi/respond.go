package httpapi

import (
	"encoding/json"
	"net/http"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError sends a consistent {error, details} body.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, jsonError{Error: message, Details: details})
}
