// Package handler exposes the farmer notification inbox.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/notification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, farmerID id.FarmerID, limit int) (*models.ListResponse, error)
	UnreadCount(ctx context.Context, farmerID id.FarmerID) (int, error)
	MarkRead(ctx context.Context, farmerID id.FarmerID, notificationID id.NotificationID) (*models.Response, error)
	MarkAllRead(ctx context.Context, farmerID id.FarmerID) (int, error)
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
		r.Use(auth.RequireRole(h.logger, requestcontext.RoleFarmer))
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Get("/unread-count", h.handleUnreadCount)
			r.Patch("/read-all", h.handleMarkAllRead)
			r.Patch("/{notificationID}/read", h.handleMarkRead)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"), "list notifications")
			return
		}
		limit = n
	}
	list, err := h.svc.List(r.Context(), farmerID, limit)
	if err != nil {
		h.writeError(r.Context(), w, err, "list notifications")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "count notifications")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UnreadResponse{Unread: n})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		h.writeError(r.Context(), w, err, "mark notification read")
		return
	}
	n, err := h.svc.MarkRead(r.Context(), farmerID, notificationID)
	if err != nil {
		h.writeError(r.Context(), w, err, "mark notification read")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.MarkAllRead(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "mark notifications read")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MarkAllResponse{Updated: n})
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
