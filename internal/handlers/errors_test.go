package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"activation-backend/internal/repositories"
	"activation-backend/internal/services"
	"activation-backend/internal/spreadsheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{spreadsheet.ErrSheetNotFound, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: boom", spreadsheet.ErrUnreadable), http.StatusUnprocessableEntity},
		{services.ErrInvalidReference, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: 10 bytes", services.ErrFileTooLarge), http.StatusRequestEntityTooLarge},
		{services.ErrTooManyRows, http.StatusRequestEntityTooLarge},
		{services.ErrNoDateRange, http.StatusBadRequest},
		{services.ErrInvalidMode, http.StatusBadRequest},
		{services.ErrRunNotFound, http.StatusNotFound},
		{repositories.ErrNotFound, http.StatusNotFound},
		{services.ErrRunAlreadyPromoted, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("%w: run staged as replace", services.ErrPlanConflict), http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrUserInactive, http.StatusForbidden},
		{services.ErrTransactionFailure, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteServiceErrorHidesInternalDetail(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		err  error
		want string
	}{
		{errors.New("pq: connection refused on 10.0.0.3"), "internal server error"},
		{fmt.Errorf("%w: deadlock detected", services.ErrTransactionFailure), services.ErrTransactionFailure.Error()},
		{services.ErrNoDateRange, services.ErrNoDateRange.Error()},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, log, tt.err)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tt.want, body["error"])
	}
}
