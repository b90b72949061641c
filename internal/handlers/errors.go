package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"activation-backend/internal/repositories"
	"activation-backend/internal/services"
	"activation-backend/internal/spreadsheet"
	"activation-backend/pkg/utils"
)

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, spreadsheet.ErrSheetNotFound),
		errors.Is(err, spreadsheet.ErrEmptyDocument),
		errors.Is(err, spreadsheet.ErrUnsupportedFormat),
		errors.Is(err, spreadsheet.ErrUnreadable),
		errors.Is(err, services.ErrInvalidReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrNoDateRange),
		errors.Is(err, services.ErrInvalidMode),
		errors.Is(err, services.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRunAlreadyPromoted),
		errors.Is(err, services.ErrRunFailed),
		errors.Is(err, services.ErrRunNotStaged),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrPlanConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserInactive):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		if errors.Is(err, services.ErrTransactionFailure) {
			utils.RespondError(w, status, services.ErrTransactionFailure.Error())
			return
		}
		utils.RespondError(w, status, "internal server error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
