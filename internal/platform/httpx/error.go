// Package httpx writes the pricing API's JSON responses and its error envelope:
//
//	{"error":"invalid_service","message":"...","status":400,"field":"services[0]","request_id":"...","trace_id":"..."}
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/cateringhub/pricing/internal/platform/requestctx"
	"github.com/cateringhub/pricing/internal/platform/textutil"
)

const (
	codeLimit    = 80
	messageLimit = 512
	fieldLimit   = 120
)

// Error is an API failure ready to be written with WriteError.
type Error struct {
	Code    string
	Message string
	Status  int
	// Field points at the offending request input, e.g. "services[2]" or "currency".
	Field   string
	Details map[string]any
}

type envelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	Field     string         `json:"field,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewError builds an Error; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, codeLimit),
		Message: clean(message, messageLimit),
		Status:  status,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// WithField names the request input the error refers to.
func (e Error) WithField(field string) Error {
	e.Field = clean(field, fieldLimit)
	return e
}

// WithDetails attaches a copy of details under the envelope's "details" key.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = make(map[string]any, len(details))
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WriteError writes err as the JSON envelope, stamping the chi request id and trace id from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	WriteJSON(w, err.Status, envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		Field:     err.Field,
		RequestID: clean(middleware.GetReqID(ctx), codeLimit),
		TraceID:   clean(requestctx.TraceID(ctx), 64),
		Details:   err.Details,
	})
}

// WriteJSON encodes payload as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func clean(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	return textutil.Truncate(strings.TrimSpace(value), limit)
}
