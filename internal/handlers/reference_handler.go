package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"activation-backend/internal/services"
	"activation-backend/pkg/utils"
)

type ReferenceHandler struct {
	Service  *services.ReferenceService
	MaxBytes int64
	log      *slog.Logger
}

func NewReferenceHandler(s *services.ReferenceService, maxBytes int64, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{Service: s, MaxBytes: maxBytes, log: logger.With("component", "reference_handler")}
}

// Upload loads a TYPE / CODE / NAME master data sheet
func (h *ReferenceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+formSlack)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, h.log, services.ErrFileTooLarge)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	set, err := h.Service.Import(r.Context(), header.Filename, data, r.FormValue("sheet"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]int{
		"supervisors": len(set.Supervisors),
		"vendors":     len(set.Vendors),
		"clients":     len(set.Clients),
		"routes":      len(set.Routes),
		"categories":  len(set.Categories),
	})
}
