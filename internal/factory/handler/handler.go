package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	"microbonds/pkg/platform/httputil"
	"microbonds/pkg/requestcontext"
)

const (
	// maxCodeBytes caps token code uploads.
	maxCodeBytes = 4 << 20
	maxWait      = 30 * time.Second
)

// Service defines the factory operations exposed over HTTP.
type Service interface {
	Owner() domain.AccountID
	AddVersion(ctx context.Context, payload []byte) (uint64, error)
	ListVersions(ctx context.Context) ([]uint64, error)
	Code(ctx context.Context, index uint64) ([]byte, error)
	DeploymentCost(ctx context.Context, index uint64) (domain.Amount, error)
	AddMunicipality(ctx context.Context, municipalityID string, memo *string) error
	AddProject(ctx context.Context, municipalityID, projectID string, memo *string) error
	ListMunicipalities(ctx context.Context, page domain.Page) ([]string, error)
	ListProjects(ctx context.Context, municipalityID string, page domain.Page) ([]string, error)
	ListTokens(ctx context.Context, municipalityID, projectID string, page domain.Page) ([]models.TokenReference, error)
	DeployToken(ctx context.Context, req models.DeployTokenRequest) (*models.PendingDeployment, error)
	Deployment(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error)
	AwaitDeployment(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error)
}

// Handler wires factory endpoints to the factory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read-only factory endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/factory/owner", h.HandleOwner)
	r.Get("/factory/versions", h.HandleListVersions)
	r.Get("/factory/versions/{index}/cost", h.HandleDeploymentCost)
	r.Get("/factory/versions/{index}/code", h.HandleCode)
	r.Get("/factory/municipalities", h.HandleListMunicipalities)
	r.Get("/factory/municipalities/{municipalityID}/projects", h.HandleListProjects)
	r.Get("/factory/municipalities/{municipalityID}/projects/{projectID}/tokens", h.HandleListTokens)
	r.Get("/factory/deployments/{correlationID}", h.HandleDeployment)
}

// RegisterMutations mounts endpoints that require an authenticated caller.
func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/factory/versions", h.HandleAddVersion)
	r.Post("/factory/municipalities", h.HandleAddMunicipality)
	r.Post("/factory/municipalities/{municipalityID}/projects", h.HandleAddProject)
	r.Post("/factory/deployments", h.HandleDeployToken)
}

func (h *Handler) HandleOwner(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, OwnerResponse{OwnerID: h.service.Owner()})
}

// HandleAddVersion stores the raw request body as a new token version. The
// owner check runs before the upload is read so non-owners see Unauthorized
// whatever they send.
func (h *Handler) HandleAddVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if requestcontext.Caller(ctx) != h.service.Owner() {
		h.logger.WarnContext(ctx, "add token version rejected",
			"request_id", requestID,
			"caller", requestcontext.Caller(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "only the factory owner can call this method"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCodeBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidPayload, "token code exceeds upload limit"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read token code"))
		return
	}

	index, err := h.service.AddVersion(ctx, payload)
	if err != nil {
		h.logger.WarnContext(ctx, "add token version failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, VersionResponse{TokenVersion: index})
}

func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.ListVersions(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VersionsResponse{Versions: versions})
}

func (h *Handler) HandleDeploymentCost(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	cost, err := h.service.DeploymentCost(r.Context(), index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CostResponse{TokenVersion: index, Cost: cost})
}

func (h *Handler) HandleCode(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	code, err := h.service.Code(r.Context(), index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CodeResponse{TokenVersion: index, Code: code})
}

func (h *Handler) HandleAddMunicipality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddMunicipalityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.AddMunicipality(ctx, req.MunicipalityID, req.Memo); err != nil {
		h.logger.WarnContext(ctx, "add municipality failed",
			"request_id", requestID,
			"municipality_id", req.MunicipalityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) HandleAddProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	municipalityID := chi.URLParam(r, "municipalityID")

	req, ok := httputil.DecodeAndPrepare[AddProjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.AddProject(ctx, municipalityID, req.ProjectID, req.Memo); err != nil {
		h.logger.WarnContext(ctx, "add project failed",
			"request_id", requestID,
			"municipality_id", municipalityID,
			"project_id", req.ProjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"municipality_id": municipalityID,
		"project_id":      req.ProjectID,
	})
}

func (h *Handler) HandleListMunicipalities(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ids, err := h.service.ListMunicipalities(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: ids})
}

func (h *Handler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ids, err := h.service.ListProjects(r.Context(), chi.URLParam(r, "municipalityID"), page)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: ids})
}

func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tokens, err := h.service.ListTokens(r.Context(),
		chi.URLParam(r, "municipalityID"),
		chi.URLParam(r, "projectID"),
		page,
	)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokensResponse{Tokens: tokens})
}

// HandleDeployToken accepts a deployment and answers 202 with its
// correlation id. The outcome is read from GET /factory/deployments/{id}.
func (h *Handler) HandleDeployToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[DeployTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	pending, err := h.service.DeployToken(ctx, req.ToModel())
	if err != nil {
		h.logger.WarnContext(ctx, "token deployment rejected",
			"request_id", requestID,
			"municipality_id", req.MunicipalityID,
			"project_id", req.ProjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "token deployment accepted",
		"request_id", requestID,
		"correlation_id", pending.CorrelationID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, FromDeployment(pending))
}

// HandleDeployment reports a deployment. With ?wait=<duration> it blocks
// until the deployment resolves or the wait elapses.
func (h *Handler) HandleDeployment(w http.ResponseWriter, r *http.Request) {
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

	var pending *models.PendingDeployment
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		pending, err = h.service.AwaitDeployment(waitCtx, id)
	} else {
		pending, err = h.service.Deployment(ctx, id)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDeployment(pending))
}

func parseIndex(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token version must be a non-negative integer"))
		return 0, false
	}
	return index, true
}
