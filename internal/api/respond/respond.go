// Package respond writes JSON responses in the shape all handlers share.
package respond

import (
	"encoding/json"
	"net/http"

	"phishguard/pkg/logger"
)

// ErrorBody is the payload of every non-2xx response
type ErrorBody struct {
	Detail string       `json:"detail"`
	Error  string       `json:"error,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError names one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes v with status code
func JSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Warnw("Failed to encode response", "error", err)
	}
}

// Detail writes an ErrorBody carrying only detail
func Detail(w http.ResponseWriter, code int, detail string) {
	JSON(w, code, ErrorBody{Detail: detail})
}
