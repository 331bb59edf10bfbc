package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apimw "github.com/gitjobs/notifier/internal/api/middleware"
	"github.com/gitjobs/notifier/internal/domain"
)

// errorBody is the JSON shape of every non-2xx response. The correlation id
// lets a caller quote the failing request back to us.
type errorBody struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// statusBySentinel is checked in order with errors.Is.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrInvalidKind, http.StatusUnprocessableEntity},
	{domain.ErrTemplateData, http.StatusUnprocessableEntity},
	{domain.ErrTooManyRecipients, http.StatusUnprocessableEntity},
	{domain.ErrUnknownRecipient, http.StatusUnprocessableEntity},
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, status, errorBody{
		Error:         msg,
		CorrelationID: apimw.GetCorrelationID(r.Context()),
	})
}

// mapError writes the response for an error returned by the service.
// Unrecognised errors become a 500 without leaking their text.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			respondError(w, r, m.status, err.Error())
			return
		}
	}
	respondError(w, r, http.StatusInternalServerError, "internal server error")
}
