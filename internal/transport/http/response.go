package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cronsched/internal/apperr"
)

// writeJSON marshals v with a fresh timestamp merged in by the caller; every
// response body in this package carries "success" and "timestamp" per the
// control plane's contract, so every response struct embeds envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// envelope is embedded as an anonymous field in every response struct, so
// its success and timestamp fields appear first in each JSON body.
type envelope struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

func newEnvelope(success bool) envelope {
	return envelope{Success: success, Timestamp: time.Now().UTC()}
}

type errorResponse struct {
	envelope
	Error   string              `json:"error"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// writeError maps an apperr.Kind (or an unrecognized error) to a status
// code and writes the standard error envelope. A Store call that observes
// ctx.Err() after the request deadline passes returns a plain
// context.DeadlineExceeded (or a wrapped variant); that is reclassified as
// apperr.Timeout here so it surfaces as 408 rather than a generic 500.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperr.Wrap(apperr.Timeout, "request deadline exceeded", err)
	}
	kind := apperr.KindOf(err)
	status, label := statusForKind(kind)

	var details []apperr.FieldError
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		details = appErr.Details
	}

	writeJSON(w, status, errorResponse{
		envelope: newEnvelope(false),
		Error:    label,
		Details:  details,
	})
}

func statusForKind(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.ValidationFailure:
		return http.StatusBadRequest, "Validation Error"
	case apperr.NotFound:
		return http.StatusNotFound, "Not Found"
	case apperr.Conflict:
		return http.StatusConflict, "Conflict"
	case apperr.Timeout:
		return http.StatusRequestTimeout, "Request Timeout"
	case apperr.TransientStore:
		return http.StatusServiceUnavailable, "Service Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeBadRequest(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		envelope: newEnvelope(false),
		Error:    "Validation Error",
		Details:  []apperr.FieldError{{Field: field, Message: message}},
	})
}
