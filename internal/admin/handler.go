// Package admin exposes operator endpoints: the event log and caller tokens
// for the sandbox ledger. Routes are mounted behind RequireAdminToken.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "microbonds/internal/jwt_token"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/httputil"
	"microbonds/pkg/requestcontext"
)

const (
	defaultRecent   = 50
	maxRecent       = 500
	defaultTokenTTL = time.Hour
	maxTokenTTL     = 24 * time.Hour
)

// EventLog reads persisted domain events.
type EventLog interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// TokenIssuer signs and verifies caller tokens.
type TokenIssuer interface {
	GenerateAccessToken(accountID domain.AccountID, expiresIn time.Duration) (string, error)
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// TokenRevoker records revoked token ids until the token would expire.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type Handler struct {
	events  EventLog
	tokens  TokenIssuer
	revoker TokenRevoker
	logger  *slog.Logger
}

func New(events EventLog, tokens TokenIssuer, revoker TokenRevoker, logger *slog.Logger) *Handler {
	return &Handler{events: events, tokens: tokens, revoker: revoker, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/events", h.HandleEvents)
	r.Post("/admin/tokens", h.HandleIssueToken)
	r.Post("/admin/tokens/revoke", h.HandleRevokeToken)
}

// EventResponse is one event in both structured and log-line form.
type EventResponse struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Event     string            `json:"event"`
	Subject   string            `json:"subject"`
	ActorID   string            `json:"actor_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Log       string            `json:"log"`
}

type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

// HandleEvents lists the events of ?subject=, or the most recent ?limit=
// events when no subject is given.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		events []audit.Event
		err    error
	)
	if subject := q.Get("subject"); subject != "" {
		events, err = h.events.List(ctx, subject)
	} else {
		limit := defaultRecent
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
				return
			}
		}
		events, err = h.events.Recent(ctx, min(limit, maxRecent))
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read events"))
		return
	}

	resp := EventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			ID:        e.ID.String(),
			Timestamp: e.Timestamp,
			Service:   e.Service,
			Event:     e.Action,
			Subject:   e.Subject,
			ActorID:   e.ActorID,
			Data:      e.Data,
			Log:       e.LogLine(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// IssueTokenRequest is the body of POST /admin/tokens.
type IssueTokenRequest struct {
	AccountID string `json:"account_id"`
	ExpiresIn string `json:"expires_in,omitempty"`

	ttl time.Duration
}

func (r *IssueTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if _, err := domain.ParseAccountID(r.AccountID); err != nil {
		return err
	}
	r.ttl = defaultTokenTTL
	if r.ExpiresIn != "" {
		d, err := time.ParseDuration(r.ExpiresIn)
		if err != nil || d <= 0 || d > maxTokenTTL {
			return dErrors.New(dErrors.CodeBadRequest, "expires_in must be a duration up to 24h")
		}
		r.ttl = d
	}
	return nil
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenID     string `json:"token_id"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleIssueToken signs a bearer token asserting the given account as
// caller.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := h.tokens.GenerateAccessToken(domain.AccountID(req.AccountID), req.ttl)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token"))
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read issued token"))
		return
	}
	h.logger.InfoContext(ctx, "caller token issued",
		"request_id", requestID,
		"account_id", req.AccountID,
		"token_id", claims.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenID:     claims.ID,
		TokenType:   "Bearer",
		ExpiresIn:   int64(req.ttl.Seconds()),
	})
}

// RevokeTokenRequest is the body of POST /admin/tokens/revoke.
type RevokeTokenRequest struct {
	AccessToken string `json:"access_token"`
}

func (r *RevokeTokenRequest) Validate() error {
	if r == nil || r.AccessToken == "" {
		return dErrors.New(dErrors.CodeBadRequest, "access_token is required")
	}
	return nil
}

// HandleRevokeToken revokes a still-valid caller token for the rest of its
// lifetime.
func (h *Handler) HandleRevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	claims, err := h.tokens.ValidateToken(req.AccessToken)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "access_token is invalid or expired"))
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "access_token is invalid or expired"))
		return
	}
	if err := h.revoker.RevokeToken(ctx, claims.ID, ttl); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke token",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token"))
		return
	}
	h.logger.InfoContext(ctx, "caller token revoked",
		"request_id", requestID,
		"account_id", claims.AccountID,
		"token_id", claims.ID,
	)
	w.WriteHeader(http.StatusNoContent)
}
