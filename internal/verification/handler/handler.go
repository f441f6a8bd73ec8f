package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attest/internal/platform/middleware"
	"attest/internal/transport/http/shared"
	"attest/internal/verification/models"
	"attest/internal/verification/provider"
	"attest/internal/verification/service"
	dErrors "attest/pkg/domain-errors"
)

// Service defines the verification operations the handler depends on.
type Service interface {
	StartSession(ctx context.Context, input service.StartSessionInput) (*models.SessionResult, error)
	HandleDecisionWebhook(ctx context.Context, body []byte, tag string) models.WebhookResult
	RecordByReference(ctx context.Context, reference string) (*models.RecordBundle, error)
	IsUserValidated(ctx context.Context, userID string) (bool, error)
	UpdateRecordStatus(ctx context.Context, reference, newStatus string) (bool, error)
}

// Handler handles verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification Service
	jwtValidator middleware.JWTValidator
}

// New creates a new verification Handler.
func New(verification Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		jwtValidator: jwtValidator,
	}
}

// Register registers the verification routes with the chi router. The
// decision webhook is authenticated by its signature tag, not by a bearer
// token, so it lives outside the RequireAuth chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recover(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))

	router.Post("/v1/webhooks/decision", h.handleDecisionWebhook)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		authed.Post("/v1/sessions", h.handleStartSession)
		authed.Get("/v1/records/{reference}", h.handleGetRecord)
		authed.Get("/v1/users/{userID}/validated", h.handleIsValidated)
		authed.Patch("/v1/records/{reference}/status", h.handleUpdateStatus)
	})

	r.Mount("/", router)
}

type startSessionRequest struct {
	Locale  string `json:"locale,omitempty"`
	Country string `json:"country,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req startSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.WarnContext(ctx, "invalid start session request",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	result, err := h.verification.StartSession(ctx, service.StartSessionInput{
		UserID:  userID,
		Locale:  req.Locale,
		Country: req.Country,
		Mode:    req.Mode,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start verification session",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDecisionWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable request body"))
		return
	}

	result := h.verification.HandleDecisionWebhook(ctx, body, r.Header.Get(provider.SignatureHeader))

	// Reconciliation failures are soft; the provider gets a 200 either way so
	// it does not retry a payload we have already judged.
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference := chi.URLParam(r, "reference")

	bundle, err := h.verification.RecordByReference(ctx, reference)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load verification record",
			"request_id", middleware.GetRequestID(ctx),
			"reference", reference,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if bundle == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no record for reference"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, bundle)
}

func (h *Handler) handleIsValidated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	validated, err := h.verification.IsUserValidated(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve validation state",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", userID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"userId":    userID,
		"validated": validated,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reference := chi.URLParam(r, "reference")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	updated, err := h.verification.UpdateRecordStatus(ctx, reference, req.Status)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update record status",
			"request_id", middleware.GetRequestID(ctx),
			"reference", reference,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if !updated {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no record for reference"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"reference": reference,
		"status":    req.Status,
		"updated":   true,
	})
}
