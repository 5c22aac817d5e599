package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microbonds/internal/membership/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	"microbonds/pkg/platform/httputil"
	"microbonds/pkg/requestcontext"
)

// Service defines the membership operations exposed over HTTP.
type Service interface {
	Owner() domain.AccountID
	AddUser(ctx context.Context, req models.AddUserRequest) error
	ListUsers(ctx context.Context, municipalityID string, page domain.Page) ([]string, error)
	IsMember(ctx context.Context, municipalityID, userID string) (bool, error)
}

// AddUserRequest is the body of POST /registry/municipalities/{municipalityID}/users.
type AddUserRequest struct {
	UserID string `json:"user_id"`
}

func (r *AddUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return domain.ValidateID("user_id", r.UserID)
}

type UsersResponse struct {
	MunicipalityID string   `json:"municipality_id"`
	Users          []string `json:"users"`
}

type MembershipResponse struct {
	MunicipalityID string `json:"municipality_id"`
	UserID         string `json:"user_id"`
	Member         bool   `json:"member"`
}

// Handler wires registry endpoints to the membership service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/registry/owner", h.HandleOwner)
	r.Get("/registry/municipalities/{municipalityID}/users", h.HandleListUsers)
	r.Get("/registry/municipalities/{municipalityID}/users/{userID}", h.HandleIsMember)
}

func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/registry/municipalities/{municipalityID}/users", h.HandleAddUser)
}

func (h *Handler) HandleOwner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.AccountID{"owner_id": h.service.Owner()})
}

func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	municipalityID := chi.URLParam(r, "municipalityID")

	req, ok := httputil.DecodeAndPrepare[AddUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	err := h.service.AddUser(ctx, models.AddUserRequest{MunicipalityID: municipalityID, UserID: req.UserID})
	if err != nil {
		h.logger.WarnContext(ctx, "add user failed",
			"request_id", requestID,
			"municipality_id", municipalityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, MembershipResponse{
		MunicipalityID: municipalityID,
		UserID:         req.UserID,
		Member:         true,
	})
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	municipalityID := chi.URLParam(r, "municipalityID")
	users, err := h.service.ListUsers(r.Context(), municipalityID, page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UsersResponse{MunicipalityID: municipalityID, Users: users})
}

func (h *Handler) HandleIsMember(w http.ResponseWriter, r *http.Request) {
	municipalityID := chi.URLParam(r, "municipalityID")
	userID := chi.URLParam(r, "userID")
	member, err := h.service.IsMember(r.Context(), municipalityID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembershipResponse{
		MunicipalityID: municipalityID,
		UserID:         userID,
		Member:         member,
	})
}
