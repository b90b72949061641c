package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"activation-backend/internal/middleware"
	"activation-backend/internal/models"
	"activation-backend/internal/services"
	"activation-backend/pkg/utils"
)

type AssignmentHandler struct {
	Service *services.AssignmentService
	log     *slog.Logger
}

func NewAssignmentHandler(s *services.AssignmentService, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{Service: s, log: logger.With("component", "assignment_handler")}
}

// ListAssignments serves the dashboard. Vendors only see their own rows.
func (h *AssignmentHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := models.AssignmentFilter{
		Range:      rng,
		VendorCode: strings.ToUpper(strings.TrimSpace(q.Get("vendor"))),
		Limit:      limit,
	}

	if role, _ := middleware.GetRoleFromContext(r.Context()); role == models.RoleVendor {
		code, _ := middleware.GetEntityCodeFromContext(r.Context())
		if code == "" {
			utils.RespondError(w, http.StatusForbidden, "vendor account has no vendor code")
			return
		}
		filter.VendorCode = code
	}

	list, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, list)
}
