// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
)

// maxBodyBytes caps JSON request bodies. Token payload uploads use their own
// limit.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request bodies that normalize and check
// themselves before reaching a service.
type Validatable interface {
	Validate() error
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	desc := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		desc = de.Message
	}
	if code == dErrors.CodeInternal {
		desc = ""
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorResponse{Error: string(code), ErrorDescription: desc})
}

// DecodeAndPrepare decodes a JSON body into T and runs its validation.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// PageFromQuery reads from_index and limit query parameters.
func PageFromQuery(r *http.Request) (domain.Page, error) {
	var page domain.Page
	q := r.URL.Query()
	if raw := q.Get("from_index"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return page, dErrors.New(dErrors.CodeBadRequest, "from_index must be a non-negative integer")
		}
		page.FromIndex = &v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return page, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		page.Limit = &v
	}
	return page, nil
}

// WaitFromQuery reads the optional ?wait=<duration> parameter used by the
// pending-operation endpoints, capped at limit.
func WaitFromQuery(r *http.Request, limit time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil || wait < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "wait must be a positive duration")
	}
	return min(wait, limit), nil
}
