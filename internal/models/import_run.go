package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ImportRunStatus string

const (
	RunPending    ImportRunStatus = "pending"
	RunProcessing ImportRunStatus = "processing"
	RunCompleted  ImportRunStatus = "completed"
	RunFailed     ImportRunStatus = "failed"
)

func (s ImportRunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

type ImportMode string

const (
	ModeReplace     ImportMode = "replace"
	ModeIncremental ImportMode = "incremental"
)

func ParseImportMode(s string) (ImportMode, bool) {
	switch ImportMode(s) {
	case ModeReplace:
		return ModeReplace, true
	case ModeIncremental, "":
		return ModeIncremental, true
	}
	return "", false
}

// ImportRun is the ledger entry of one upload attempt. Runs are never deleted.
type ImportRun struct {
	ID            uuid.UUID       `json:"id"`
	UploadedBy    *int            `json:"uploaded_by,omitempty"`
	FileName      string          `json:"file_name"`
	FileSHA256    string          `json:"file_sha256"`
	SheetName     string          `json:"sheet_name"`
	Mode          ImportMode      `json:"mode"`
	Range         *DateRange      `json:"range,omitempty"`
	TotalRows     int             `json:"total_rows"`
	ProcessedRows int             `json:"processed_rows"`
	InsertedRows  int             `json:"inserted_rows"`
	Status        ImportRunStatus `json:"status"`
	ErrorSummary  []string        `json:"error_summary"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// RunUpdate carries the counters written with a status transition. Nil
// fields are left unchanged.
type RunUpdate struct {
	ProcessedRows *int
	InsertedRows  *int
	ErrorSummary  []string
}

// MaxErrorSummary caps the stored error summary of a run
const MaxErrorSummary = 100

// MergeErrorSummary appends lines to summary, keeping at most
// MaxErrorSummary entries and a trailing overflow note
func MergeErrorSummary(summary []string, lines ...string) []string {
	out := make([]string, 0, len(summary)+len(lines))
	dropped := 0
	for _, l := range append(append([]string{}, summary...), lines...) {
		if strings.HasPrefix(l, overflowPrefix) {
			var n int
			fmt.Sscanf(l, overflowPrefix+"%d", &n)
			dropped += n
			continue
		}
		if len(out) < MaxErrorSummary {
			out = append(out, l)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		out = append(out, fmt.Sprintf(overflowPrefix+"%d more", dropped))
	}
	return out
}

const overflowPrefix = "... and "
