// Package handler exposes policy application, payment and listing endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/platform/config"
	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

type Service interface {
	Apply(ctx context.Context, farmerID id.FarmerID, req *models.ApplyRequest) (*models.PaymentOrderResponse, error)
	ConfirmPayment(ctx context.Context, farmerID id.FarmerID, req *models.ConfirmPaymentRequest) (*models.Policy, error)
	Get(ctx context.Context, farmerID id.FarmerID, policyID id.PolicyID) (*models.Details, error)
	ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Details, error)
	ListActive(ctx context.Context, farmerID id.FarmerID) ([]*models.Details, error)
	Crops() []config.CropRate
}

type Handler struct {
	svc         Service
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
}

func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/crops", h.handleCrops)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(auth.RequireRole(h.logger, requestcontext.RoleFarmer))
		r.Route("/policies", func(r chi.Router) {
			r.Post("/", h.handleApply)
			r.Get("/", h.handleList)
			r.Get("/active", h.handleListActive)
			r.Post("/payment/confirm", h.handleConfirmPayment)
			r.Get("/{policyID}", h.handleGet)
		})
	})
}

func (h *Handler) handleCrops(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"crops": models.ToCropResponses(h.svc.Crops())})
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.ApplyRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "apply policy")
		return
	}
	order, err := h.svc.Apply(r.Context(), farmerID, req)
	if err != nil {
		h.writeError(r.Context(), w, err, "apply policy")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[models.ConfirmPaymentRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "confirm payment")
		return
	}
	policy, err := h.svc.ConfirmPayment(r.Context(), farmerID, req)
	if err != nil {
		h.writeError(r.Context(), w, err, "confirm payment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"policy_id":     policy.ID.String(),
		"policy_number": policy.Number,
		"status":        policy.Status,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	policies, err := h.svc.ListByFarmer(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "list policies")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": toResponses(policies)})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	policies, err := h.svc.ListActive(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "list active policies")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": toResponses(policies)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		h.writeError(r.Context(), w, err, "get policy")
		return
	}
	details, err := h.svc.Get(r.Context(), farmerID, policyID)
	if err != nil {
		h.writeError(r.Context(), w, err, "get policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToPolicyResponse(details))
}

func toResponses(all []*models.Details) []*models.PolicyResponse {
	out := make([]*models.PolicyResponse, 0, len(all))
	for _, d := range all {
		out = append(out, models.ToPolicyResponse(d))
	}
	return out
}

func (h *Handler) farmerID(w http.ResponseWriter, r *http.Request) (id.FarmerID, bool) {
	farmerID, ok := requestcontext.Principal(r.Context()).FarmerID()
	if !ok {
		h.logger.ErrorContext(r.Context(), "farmer principal missing from context",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.FarmerID{}, false
	}
	return farmerID, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
