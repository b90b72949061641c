package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"activation-backend/internal/middleware"
	"activation-backend/internal/models"
	"activation-backend/internal/services"
	"activation-backend/internal/timeutil"
	"activation-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipart overhead allowed on top of the file size limit
const formSlack = 1 << 20

type ImportHandler struct {
	Imports   *services.ImportService
	Promotion *services.PromotionService
	Ledger    *services.RunLedger
	Reports   *services.ReportService
	MaxBytes  int64
	log       *slog.Logger
}

func NewImportHandler(imports *services.ImportService, promotion *services.PromotionService, ledger *services.RunLedger,
	reports *services.ReportService, maxBytes int64, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		Imports:   imports,
		Promotion: promotion,
		Ledger:    ledger,
		Reports:   reports,
		MaxBytes:  maxBytes,
		log:       logger.With("component", "import_handler"),
	}
}

// parseRange reads an optional start/end pair of YYYY-MM-DD dates
func parseRange(start, end string) (*models.DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: start and end are both required", services.ErrInvalidDateRange)
	}
	s, err := timeutil.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", services.ErrInvalidDateRange, start)
	}
	e, err := timeutil.ParseDate(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q", services.ErrInvalidDateRange, end)
	}
	r := &models.DateRange{Start: s, End: e}
	if !r.Valid() {
		return nil, services.ErrInvalidDateRange
	}
	return r, nil
}

func parseMode(s string) (models.ImportMode, error) {
	mode, ok := models.ParseImportMode(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", services.ErrInvalidMode, s)
	}
	return mode, nil
}

// readUpload decodes the multipart form shared by preview and upload
func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) (services.UploadRequest, error) {
	var req services.UploadRequest
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+formSlack)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, services.ErrFileTooLarge
		}
		return req, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, fmt.Errorf("file field is required: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("read upload: %w", err)
	}

	mode, err := parseMode(r.FormValue("mode"))
	if err != nil {
		return req, err
	}
	rng, err := parseRange(r.FormValue("start"), r.FormValue("end"))
	if err != nil {
		return req, err
	}

	req = services.UploadRequest{
		FileName:  header.Filename,
		Data:      data,
		Sheet:     r.FormValue("sheet"),
		Mode:      mode,
		Range:     rng,
		IPAddress: middleware.ClientIP(r),
	}
	if n, err := strconv.Atoi(r.FormValue("preview_rows")); err == nil {
		req.PreviewRows = n
	}
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		req.UploadedBy = &id
	}
	return req, nil
}

func (h *ImportHandler) badUpload(w http.ResponseWriter, err error) {
	if status := statusFor(err); status != http.StatusInternalServerError {
		writeServiceError(w, h.log, err)
		return
	}
	utils.RespondError(w, http.StatusBadRequest, err.Error())
}

// Preview parses and normalizes the upload without creating a run
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUpload(w, r)
	if err != nil {
		h.badUpload(w, err)
		return
	}
	res, err := h.Imports.Preview(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// Upload stages the file as a new import run
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	req, err := h.readUpload(w, r)
	if err != nil {
		h.badUpload(w, err)
		return
	}
	res, err := h.Imports.Upload(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusCreated, res)
}

type promoteBody struct {
	RunID *uuid.UUID `json:"run_id"`
	Mode  string     `json:"mode"`
	Start string     `json:"start"`
	End   string     `json:"end"`
}

func (h *ImportHandler) promote(w http.ResponseWriter, r *http.Request, body promoteBody) {
	req := services.PromoteRequest{RunID: body.RunID, IPAddress: middleware.ClientIP(r)}
	if body.Mode != "" {
		mode, err := parseMode(body.Mode)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		req.Mode = mode
	}
	rng, err := parseRange(body.Start, body.End)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	req.Range = rng
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		req.ActorID = &id
	}

	res, err := h.Promotion.Promote(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

// Promote promotes every processing run. The body is optional.
func (h *ImportHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var body promoteBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	h.promote(w, r, body)
}

// PromoteRun promotes with the defaults of the run in the path
func (h *ImportHandler) PromoteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	var body promoteBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	body.RunID = &id
	h.promote(w, r, body)
}

func runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ImportHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Ledger.ListRuns(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if runs == nil {
		runs = []*models.ImportRun{}
	}
	utils.JSON(w, http.StatusOK, runs)
}

func (h *ImportHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := h.Ledger.GetRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, run)
}

func (h *ImportHandler) Rows(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	state := models.StagingState(r.URL.Query().Get("state"))
	switch state {
	case "", models.StagingStaged, models.StagingPromoted, models.StagingRejected:
	default:
		utils.RespondError(w, http.StatusBadRequest, "state must be staged, promoted or rejected")
		return
	}
	rows, err := h.Ledger.Rows(r.Context(), id, state)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if rows == nil {
		rows = []*models.StagingRow{}
	}
	utils.JSON(w, http.StatusOK, rows)
}

type failBody struct {
	Reason string `json:"reason"`
}

// FailRun aborts a run that has not been promoted
func (h *ImportHandler) FailRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	var body failBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "aborted by operator"
	}
	if err := h.Ledger.FailRun(r.Context(), id, body.Reason); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	run, err := h.Ledger.GetRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, run)
}

func (h *ImportHandler) RejectedCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	data, err := h.Reports.RejectedCSV(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=rejected_%s.csv", id))
	w.Write(data)
}

func (h *ImportHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	data, err := h.Reports.RunPDF(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=import_%s.pdf", id))
	w.Write(data)
}
