package models

import "github.com/google/uuid"

// UnresolvedReason doubles as the RowErrorCode of a row rejected at promotion
type UnresolvedReason string

const (
	UnresolvedVendor        UnresolvedReason = "UnknownVendor"
	UnresolvedClient        UnresolvedReason = "UnknownClient"
	UnresolvedCategory      UnresolvedReason = "UnknownCategory"
	UnresolvedRoute         UnresolvedReason = "UnknownRoute"
	UnresolvedOutsideWindow UnresolvedReason = "OutsideReplaceWindow"
)

// UnresolvedReference reports an assignment excluded from promotion
type UnresolvedReference struct {
	RunID    uuid.UUID        `json:"run_id"`
	Row      int              `json:"row"`
	Category string           `json:"category,omitempty"`
	Reason   UnresolvedReason `json:"reason"`
	Value    string           `json:"value,omitempty"`
}

// RunPromotion is the share of a promotion applied by one run
type RunPromotion struct {
	RunID         uuid.UUID  `json:"run_id"`
	Mode          ImportMode `json:"mode"`
	Range         *DateRange `json:"range,omitempty"`
	InsertedCount int        `json:"inserted_count"`
	UpdatedCount  int        `json:"updated_count"`
	DeletedCount  int64      `json:"deleted_count"`
	InsertedRows  int        `json:"inserted_rows"`
}

// PromotionResult totals one promotion. Mode and Range are empty when the
// promoted runs were staged with different plans.
type PromotionResult struct {
	Mode                 ImportMode            `json:"mode,omitempty"`
	Range                *DateRange            `json:"range,omitempty"`
	RunIDs               []uuid.UUID           `json:"run_ids"`
	Runs                 []RunPromotion        `json:"runs"`
	InsertedCount        int                   `json:"inserted_count"`
	UpdatedCount         int                   `json:"updated_count"`
	DeletedCount         int64                 `json:"deleted_count"`
	DuplicateKeys        int                   `json:"duplicate_keys"`
	UnresolvedReferences []UnresolvedReference `json:"unresolved_references"`
}
