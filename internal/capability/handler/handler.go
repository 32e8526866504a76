package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"subvault/internal/capability/models"
	platmetrics "subvault/internal/platform/metrics"
	"subvault/internal/platform/middleware"
	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
	"subvault/pkg/platform/httputil"
)

// Service defines the capability authority operations the handler exposes.
type Service interface {
	CreateCreator(ctx context.Context, caller id.Principal) (*models.CreatorAccount, models.CreatorCapability, error)
	GetAccount(ctx context.Context, accountID id.AccountID) (*models.CreatorAccount, error)
}

// TokenMinter signs a capability so it can travel to the caller without
// becoming forgeable.
type TokenMinter interface {
	GenerateCapabilityToken(capabilityID id.CapabilityID, accountID id.AccountID) (string, error)
}

// Handler handles creator account endpoints.
type Handler struct {
	logger       *slog.Logger
	svc          Service
	minter       TokenMinter
	metrics      *platmetrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new capability Handler.
func New(
	svc Service,
	minter TokenMinter,
	logger *slog.Logger,
	metrics *platmetrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		svc:          svc,
		minter:       minter,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the creator routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	creatorRouter := chi.NewRouter()
	creatorRouter.Use(middleware.Recovery(h.logger))
	creatorRouter.Use(middleware.RequestID)
	creatorRouter.Use(middleware.Logger(h.logger))
	creatorRouter.Use(middleware.Timeout(30 * time.Second))
	creatorRouter.Use(middleware.ContentTypeJSON)
	creatorRouter.Use(middleware.LatencyMiddleware(h.metrics))

	creatorRouter.With(middleware.RequireAuth(h.jwtValidator, h.logger)).
		Post("/", h.handleCreateCreator)
	creatorRouter.Get("/{accountID}", h.handleGetAccount)

	r.Mount("/creators", creatorRouter)
}

type createCreatorResponse struct {
	Account         *models.CreatorAccount `json:"account"`
	CapabilityToken string                 `json:"capability_token"`
}

// handleCreateCreator mints an account for the authenticated caller and
// returns the signed capability token. The token is shown exactly once; it is
// never stored server-side.
func (h *Handler) handleCreateCreator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	caller := middleware.GetPrincipal(ctx)
	if caller == "" {
		h.logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	account, capability, err := h.svc.CreateCreator(ctx, caller)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create creator account",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.minter.GenerateCapabilityToken(capability.ID, capability.AccountID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign capability token",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue capability"))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createCreatorResponse{
		Account:         account,
		CapabilityToken: token,
	})
}

// handleGetAccount resolves a published account. Open to anyone; accounts are
// discoverable by identity.
func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}

	account, err := h.svc.GetAccount(ctx, accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, account)
}
