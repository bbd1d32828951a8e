// Package handler exposes the official dashboard and claim review endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/admin/report"
	"farmshield/internal/admin/service"
	"farmshield/internal/admin/types"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

type Service interface {
	Stats(ctx context.Context) (*service.Stats, error)
	Claims(ctx context.Context) ([]*types.ClaimRow, error)
	ExportClaims(ctx context.Context) ([]byte, error)
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
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", h.handleStats)
			r.Get("/claims", h.handleClaims)
			r.Get("/claims/export", h.handleExport)
		})
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "admin stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleClaims(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Claims(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "admin claims")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ToClaimListResponse(rows))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.ExportClaims(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "export claims")
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.ClaimsFilename(requestcontext.Now(r.Context()))+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
