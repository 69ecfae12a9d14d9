package auth

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req Registration
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	pair, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	access, err := h.svc.Refresh(r.Context(), req.Refresh)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]string{"access": access})
}

// HandleProfile and HandleUpdateProfile run behind Authenticator.Required.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	user, err := h.svc.Profile(r.Context(), actor)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, user)
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ProfileUpdate
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, h.logger, err.Error())
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), actor, req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("profile updated", "user_id", user.ID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, user)
}
