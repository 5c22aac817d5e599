package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/httputil"
	"microbonds/pkg/requestcontext"
)

const maxWait = 30 * time.Second

// Service defines the custody operations exposed over HTTP.
type Service interface {
	Owner() domain.AccountID
	AddTokenForOwner(ctx context.Context, req models.AddTokenRequest) error
	TokensForOwner(ctx context.Context, ownerID string, page domain.Page) ([]string, error)
	LinkAccount(ctx context.Context, userID string, accountID domain.AccountID) (models.LinkResult, error)
	AccountForUser(ctx context.Context, userID string) (domain.AccountID, bool, error)
	SendTokenToOwner(ctx context.Context, req models.SendTokenRequest) (*models.PendingTransfer, error)
	Transfer(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error)
	AwaitTransfer(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error)
}

// Handler wires custody endpoints to the custody service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read-only custody endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/custody/owner", h.HandleOwner)
	r.Get("/custody/owners/{ownerID}/tokens", h.HandleTokensForOwner)
	r.Get("/custody/users/{userID}/account", h.HandleAccountForUser)
	r.Get("/custody/transfers/{correlationID}", h.HandleTransfer)
}

// RegisterMutations mounts endpoints that require an authenticated caller.
func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/custody/owners/{ownerID}/tokens", h.HandleAddToken)
	r.Put("/custody/users/{userID}/account", h.HandleLinkAccount)
	r.Post("/custody/transfers", h.HandleSendToken)
}

func (h *Handler) HandleOwner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{OwnerID: h.service.Owner()})
}

func (h *Handler) HandleAddToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	ownerID := chi.URLParam(r, "ownerID")

	req, ok := httputil.DecodeAndPrepare[AddTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.AddTokenForOwner(ctx, req.ToModel(ownerID)); err != nil {
		h.logger.WarnContext(ctx, "add token for owner failed",
			"request_id", requestID,
			"owner_id", ownerID,
			"token_account_id", req.TokenAccountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"owner_id":         ownerID,
		"token_account_id": req.TokenAccountID,
		"token_id":         req.TokenID,
	})
}

func (h *Handler) HandleTokensForOwner(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")
	tokens, err := h.service.TokensForOwner(r.Context(), ownerID, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokensResponse{OwnerID: ownerID, Tokens: tokens})
}

func (h *Handler) HandleLinkAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := chi.URLParam(r, "userID")

	req, ok := httputil.DecodeAndPrepare[LinkAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account := domain.AccountID(req.AccountID)
	result, err := h.service.LinkAccount(ctx, userID, account)
	if err != nil {
		h.logger.WarnContext(ctx, "link account failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := LinkResponse{UserID: userID, AccountID: account, Changed: result.Changed}
	if result.Changed && !result.Previous.IsZero() {
		resp.PreviousAccountID = &result.Previous
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleAccountForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	account, ok, err := h.service.AccountForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := AccountResponse{UserID: userID}
	if ok {
		resp.AccountID = &account
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleSendToken accepts a withdrawal and answers 202 with its correlation
// id. The outcome is read from GET /custody/transfers/{id}.
func (h *Handler) HandleSendToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	pending, err := h.service.SendTokenToOwner(ctx, req.ToModel())
	if err != nil {
		h.logger.WarnContext(ctx, "token withdrawal rejected",
			"request_id", requestID,
			"owner_id", req.OwnerID,
			"token_account_id", req.TokenAccountID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, FromTransfer(pending))
}

// HandleTransfer reports a withdrawal. With ?wait=<duration> it blocks until
// the withdrawal resolves or the wait elapses.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseCorrelationID(chi.URLParam(r, "correlationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	wait, err := httputil.WaitFromQuery(r, maxWait)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var pending *models.PendingTransfer
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		pending, err = h.service.AwaitTransfer(waitCtx, id)
	} else {
		pending, err = h.service.Transfer(ctx, id)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTransfer(pending))
}
