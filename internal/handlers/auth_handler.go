package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"activation-backend/internal/middleware"
	"activation-backend/internal/models"
	"activation-backend/internal/services"
	"activation-backend/pkg/utils"
)

type AuthHandler struct {
	Service *services.UserService
	log     *slog.Logger
}

func NewAuthHandler(s *services.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Service: s, log: logger.With("component", "auth_handler")}
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	authResp, err := h.Service.Login(r.Context(), &req)
	if err != nil {
		h.log.Warn("login rejected", "ip", middleware.ClientIP(r), "error", err)
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, authResp)
}

// Logout drops the caller's session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.Service.Logout(r.Context(), sessionID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.Service.Repo.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}
