package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RowErrorCode string

const (
	ErrCodeMissingRequiredField   RowErrorCode = "MissingRequiredField"
	ErrCodeInvalidDate            RowErrorCode = "InvalidDate"
	ErrCodeUnknownActivationState RowErrorCode = "UnknownActivationState"
)

// RowError is a row-level validation failure or warning
type RowError struct {
	Row     int          `json:"row"`
	Code    RowErrorCode `json:"code"`
	Fields  []string     `json:"fields,omitempty"`
	Message string       `json:"message"`
}

func (e RowError) String() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("row %d: %s (%s)", e.Row, e.Code, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Code, e.Message)
}

type StagingState string

const (
	StagingStaged   StagingState = "staged"
	StagingPromoted StagingState = "promoted"
	StagingRejected StagingState = "rejected"
)

// StagingRow is one source spreadsheet row scoped to an import run
type StagingRow struct {
	ID         int64             `json:"id"`
	RunID      uuid.UUID         `json:"run_id"`
	RowNumber  int               `json:"row_number"`
	Raw        map[string]string `json:"raw"`
	Extras     map[string]string `json:"extras,omitempty"`
	Normalized []Assignment      `json:"normalized"`
	Valid      bool              `json:"valid"`
	Reasons    []RowError        `json:"reasons,omitempty"`
	State      StagingState      `json:"state"`
	CreatedAt  time.Time         `json:"created_at"`
	PromotedAt *time.Time        `json:"promoted_at,omitempty"`
}
