// Package handler exposes the official-facing verification queue.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/verification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

type Service interface {
	ListPending(ctx context.Context, area string) ([]*models.View, error)
	Get(ctx context.Context, verificationID id.VerificationID) (*models.View, error)
	Decide(ctx context.Context, officialID id.OfficialID, verificationID id.VerificationID, req *models.DecideRequest) (*models.View, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
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
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(auth.RequireRole(h.logger, requestcontext.RoleOfficial))
		r.Route("/verifications", func(r chi.Router) {
			r.Get("/pending", h.handleListPending)
			r.Get("/dashboard", h.handleDashboard)
			r.Get("/{verificationID}", h.handleGet)
			r.Post("/{verificationID}/decision", h.handleDecide)
		})
	})
}

// handleListPending scopes the queue to ?area=, falling back to the
// official's assigned area. An official without an area sees everything.
func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	area := r.URL.Query().Get("area")
	if area == "" {
		area = requestcontext.Principal(r.Context()).Area
	}
	views, err := h.svc.ListPending(r.Context(), area)
	if err != nil {
		h.writeError(r.Context(), w, err, "list pending verifications")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"verifications": views})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "verification dashboard")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		h.writeError(r.Context(), w, err, "get verification")
		return
	}
	view, err := h.svc.Get(r.Context(), verificationID)
	if err != nil {
		h.writeError(r.Context(), w, err, "get verification")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	officialID, ok := requestcontext.Principal(r.Context()).OfficialID()
	if !ok {
		h.logger.ErrorContext(r.Context(), "official principal missing from context",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		h.writeError(r.Context(), w, err, "decide verification")
		return
	}
	req, err := httputil.DecodeJSON[models.DecideRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "decide verification")
		return
	}
	view, err := h.svc.Decide(r.Context(), officialID, verificationID, req)
	if err != nil {
		h.writeError(r.Context(), w, err, "decide verification")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
