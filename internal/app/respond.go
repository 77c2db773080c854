package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Spok95/timetable-substitutes/internal/schedule"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeDomainError maps a domain error to its status. Store failures keep
// their details out of the response.
func writeDomainError(w http.ResponseWriter, err error) {
	code := schedule.Outcome(err)
	if errors.Is(err, schedule.ErrStoreFailure) || code == "store_failure" {
		writeError(w, http.StatusInternalServerError, "store_failure", "")
		return
	}
	writeError(w, statusFor(code), code, err.Error())
}

func statusFor(code string) int {
	switch code {
	case "invalid_parameter":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "forbidden":
		return http.StatusForbidden
	case "not_scheduled":
		return http.StatusUnprocessableEntity
	case "duplicate_request", "no_substitute", "conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
