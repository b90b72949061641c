package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"activation-backend/internal/models"
	"activation-backend/internal/repositories"
	"activation-backend/pkg/utils"
)

type AdminActionLogHandler struct {
	Repo repositories.ActionLogStore
	log  *slog.Logger
}

func NewAdminActionLogHandler(repo repositories.ActionLogStore, logger *slog.Logger) *AdminActionLogHandler {
	return &AdminActionLogHandler{Repo: repo, log: logger}
}

// ListActionLogs returns the most recent admin action logs
func (h *AdminActionLogHandler) ListActionLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.Repo.ListActionLogs(r.Context(), limit)
	if err != nil {
		h.log.Error("list action logs failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to retrieve admin action logs")
		return
	}
	if logs == nil {
		logs = []*models.AdminActionLog{}
	}
	utils.JSON(w, http.StatusOK, logs)
}
