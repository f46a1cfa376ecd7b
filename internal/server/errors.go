package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shapestone/shape-csvreader/internal/logging"
	"github.com/shapestone/shape-csvreader/pkg/csv"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// paramError reports an invalid query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.name, e.msg)
}

// classify maps err to an HTTP status, a machine code and a client message.
func classify(err error) (int, string, string) {
	var (
		maxBytes *http.MaxBytesError
		param    *paramError
		opts     *csv.OptionsError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "body_too_large",
			fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit)
	case errors.Is(err, csv.ErrMalformedRecord):
		return http.StatusUnprocessableEntity, "malformed_csv", err.Error()
	case errors.As(err, &param), errors.As(err, &opts):
		return http.StatusBadRequest, "invalid_parameter", err.Error()
	case errors.Is(err, csv.ErrFieldNotFound), errors.Is(err, csv.ErrInvalidOperation):
		return http.StatusBadRequest, "unknown_field", err.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal server error"
	}
}

// respondError logs err with the request context and writes a JSON error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "code", code, "error", err)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "code", code, "error", err)
	}

	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
		Code:    code,
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
