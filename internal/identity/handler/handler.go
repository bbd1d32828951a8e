// Package handler exposes sign-in, session and farmer profile endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/identity/models"
	"farmshield/internal/imagestore"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

type Service interface {
	SendOTP(ctx context.Context, req *models.SendOTPRequest) (*models.OTPSentResponse, error)
	VerifyOTP(ctx context.Context, req *models.VerifyOTPRequest) (*models.AuthResult, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error)
	OfficialLogin(ctx context.Context, req *models.OfficialLoginRequest) (*models.AuthResult, error)
	Refresh(ctx context.Context, req *models.RefreshRequest) (*models.AuthResult, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context, farmerID id.FarmerID) (*models.Farmer, error)
	UpdateProfile(ctx context.Context, farmerID id.FarmerID, update *models.ProfileUpdate) (*models.Farmer, error)
	SetProfileImage(ctx context.Context, farmerID id.FarmerID, file imagestore.File) (*models.Farmer, error)
}

type Handler struct {
	svc           Service
	logger        *slog.Logger
	requireAuth   func(http.Handler) http.Handler
	maxImageBytes int64
}

// New wires the handler. requireAuth is the bearer-token middleware shared by
// every authenticated route.
func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler, maxImageBytes int64) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth, maxImageBytes: maxImageBytes}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/otp/send", h.handleSendOTP)
	r.Post("/auth/otp/verify", h.handleVerifyOTP)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/official/login", h.handleOfficialLogin)
	r.Post("/auth/refresh", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/auth/logout", h.handleLogout)

		r.With(auth.RequireRole(h.logger, requestcontext.RoleFarmer)).Route("/farmers/me", func(r chi.Router) {
			r.Get("/", h.handleGetProfile)
			r.Put("/", h.handleUpdateProfile)
			r.Post("/photo", h.handleUploadPhoto)
		})
	})
}

func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.SendOTPRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "send otp")
		return
	}
	res, err := h.svc.SendOTP(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "send otp")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.VerifyOTPRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "verify otp")
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "verify otp")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.RegisterRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "register")
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "register")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleOfficialLogin(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.OfficialLoginRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "official login")
		return
	}
	res, err := h.svc.OfficialLogin(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "official login")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.RefreshRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "refresh")
		return
	}
	res, err := h.svc.Refresh(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "refresh")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		h.writeError(r.Context(), w, err, "logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	farmer, err := h.svc.GetProfile(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "get profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToProfileResponse(farmer))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	update, err := httputil.DecodeJSON[models.ProfileUpdate](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "update profile")
		return
	}
	farmer, err := h.svc.UpdateProfile(r.Context(), farmerID, update)
	if err != nil {
		h.writeError(r.Context(), w, err, "update profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToProfileResponse(farmer))
}

func (h *Handler) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	files, err := imagestore.ParseForm(w, r, "photo", h.maxImageBytes+(1<<20))
	if err != nil {
		h.writeError(r.Context(), w, err, "upload photo")
		return
	}
	file, err := imagestore.FromMultipart(files[0], h.maxImageBytes)
	if err != nil {
		h.writeError(r.Context(), w, err, "upload photo")
		return
	}
	farmer, err := h.svc.SetProfileImage(r.Context(), farmerID, file)
	if err != nil {
		h.writeError(r.Context(), w, err, "upload photo")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToProfileResponse(farmer))
}

func (h *Handler) farmerID(w http.ResponseWriter, r *http.Request) (id.FarmerID, bool) {
	farmerID, ok := requestcontext.Principal(r.Context()).FarmerID()
	if !ok {
		// RequireRole runs first, so this is a wiring bug.
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
