package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	capmodels "subvault/internal/capability/models"
	platmetrics "subvault/internal/platform/metrics"
	"subvault/internal/platform/middleware"
	"subvault/internal/registry/models"
	"subvault/internal/registry/service"
	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
	"subvault/pkg/platform/httputil"
)

// CapabilityHeader carries the signed capability token on creator-only calls.
const CapabilityHeader = "X-Capability-Token"

// Service defines the registry operations the handler exposes.
type Service interface {
	CreateSubscription(ctx context.Context, capability capmodels.CreatorCapability, accountID id.AccountID, caller id.Principal, in service.CreateSubscriptionInput) (*models.Subscription, error)
	Purchase(ctx context.Context, accountID id.AccountID, name string, caller id.Principal, payment models.Payment) (models.AccessGrant, error)
	AccessContent(ctx context.Context, accountID id.AccountID, name string, caller id.Principal) ([]byte, error)
	UpdateContent(ctx context.Context, capability capmodels.CreatorCapability, accountID id.AccountID, name string, caller id.Principal, content []byte) error
	CancelSubscription(ctx context.Context, capability capmodels.CreatorCapability, accountID id.AccountID, name string, caller id.Principal) error
	Unsubscribe(ctx context.Context, accountID id.AccountID, name string, caller id.Principal) error
	ListSubscriptions(ctx context.Context, accountID id.AccountID) ([]models.Subscription, error)
}

// CapabilityParser verifies a signed capability token and recovers the
// capability binding it carries.
type CapabilityParser interface {
	ParseCapability(token string) (id.CapabilityID, id.AccountID, error)
}

// Handler handles subscription registry endpoints.
type Handler struct {
	logger       *slog.Logger
	svc          Service
	parser       CapabilityParser
	metrics      *platmetrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new registry Handler.
func New(
	svc Service,
	parser CapabilityParser,
	logger *slog.Logger,
	metrics *platmetrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		logger:       logger,
		svc:          svc,
		parser:       parser,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the subscription routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	subRouter := chi.NewRouter()
	subRouter.Use(middleware.Recovery(h.logger))
	subRouter.Use(middleware.RequestID)
	subRouter.Use(middleware.Logger(h.logger))
	subRouter.Use(middleware.Timeout(30 * time.Second))
	subRouter.Use(middleware.ContentTypeJSON)
	subRouter.Use(middleware.LatencyMiddleware(h.metrics))

	// Listing is open; everything else requires an authenticated caller.
	subRouter.Get("/", h.handleList)

	subRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/", h.handleCreate)
		r.Post("/{name}/purchase", h.handlePurchase)
		r.Get("/{name}/content", h.handleAccessContent)
		r.Put("/{name}/content", h.handleUpdateContent)
		r.Delete("/{name}", h.handleCancel)
		r.Delete("/{name}/grant", h.handleUnsubscribe)
	})

	r.Mount("/accounts/{accountID}/subscriptions", subRouter)
}

type createSubscriptionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       uint64 `json:"price"`
	DurationMs  int64  `json:"duration_ms"`
	Content     string `json:"content"`
}

type purchaseRequest struct {
	Amount uint64 `json:"amount"`
}

type contentResponse struct {
	Content string `json:"content"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}
	capability, err := h.capabilityFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sub, err := h.svc.CreateSubscription(ctx, capability, accountID, caller, service.CreateSubscriptionInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		DurationMs:  req.DurationMs,
		Content:     []byte(req.Content),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create subscription",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	grant, err := h.svc.Purchase(ctx, accountID, chi.URLParam(r, "name"), caller, models.Payment{Amount: req.Amount})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) handleAccessContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	content, err := h.svc.AccessContent(ctx, accountID, chi.URLParam(r, "name"), caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, contentResponse{Content: string(content)})
}

func (h *Handler) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}
	capability, err := h.capabilityFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req contentResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.svc.UpdateContent(ctx, capability, accountID, chi.URLParam(r, "name"), caller, []byte(req.Content)); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}
	capability, err := h.capabilityFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.svc.CancelSubscription(ctx, capability, accountID, chi.URLParam(r, "name"), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, caller, ok := h.requestIdentity(w, r)
	if !ok {
		return
	}

	if err := h.svc.Unsubscribe(ctx, accountID, chi.URLParam(r, "name"), caller); err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}

	subs, err := h.svc.ListSubscriptions(ctx, accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, subs)
}

// requestIdentity extracts the account id from the URL and the authenticated
// principal from the context, writing the error response itself on failure.
func (h *Handler) requestIdentity(w http.ResponseWriter, r *http.Request) (id.AccountID, id.Principal, bool) {
	ctx := r.Context()

	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return id.AccountID{}, "", false
	}

	caller := middleware.GetPrincipal(ctx)
	if caller == "" {
		h.logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.AccountID{}, "", false
	}
	return accountID, caller, true
}

// capabilityFrom verifies the capability token header. The capability id and
// account binding come from the signature-checked claims, never from the
// request body.
func (h *Handler) capabilityFrom(r *http.Request) (capmodels.CreatorCapability, error) {
	token := r.Header.Get(CapabilityHeader)
	if token == "" {
		return capmodels.CreatorCapability{}, dErrors.New(dErrors.CodeInvalidCapability, "missing capability token")
	}

	capabilityID, accountID, err := h.parser.ParseCapability(token)
	if err != nil {
		return capmodels.CreatorCapability{}, err
	}
	return capmodels.CreatorCapability{ID: capabilityID, AccountID: accountID}, nil
}
