package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"activation-backend/internal/models"
	"activation-backend/internal/services"
	"activation-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	Service *services.UserService
	log     *slog.Logger
}

func NewUserHandler(s *services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{Service: s, log: logger.With("component", "user_handler")}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := &models.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		EntityCode: req.EntityCode,
	}
	if err := h.Service.CreateUser(r.Context(), user, req.Password); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.JSON(w, http.StatusCreated, user)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	user, err := h.Service.Repo.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, user)
}
