package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookstore/catalog/internal/query"
	"github.com/bookstore/catalog/internal/repo"
	"go.uber.org/zap"
)

var errUnauthenticated = errors.New("a valid X-User-Id header is required")

// badRequestError is a client input problem found while decoding a request
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"`
}

func statusFor(err error) int {
	var bad *badRequestError
	var invalid *ValidationError
	switch {
	case errors.As(err, &bad), errors.As(err, &invalid), errors.Is(err, query.ErrInvalidSort):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, query.ErrPageOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Message: err.Error()}

	var invalid *ValidationError
	if errors.As(err, &invalid) {
		body.Fields = invalid.Fields
	}
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body.Message = http.StatusText(status)
		if errors.Is(err, query.ErrCategoryCycle) {
			body.Message = "category hierarchy is inconsistent"
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
