// Package normalizer maps heterogeneous sheet rows onto the canonical
// Assignment schema. It is a pure transform over parsed rows.
package normalizer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"activation-backend/internal/models"
	"activation-backend/internal/spreadsheet"
)

type Options struct {
	// ProcessingDate fills rows without a report date
	ProcessingDate time.Time
	Rules          []HeaderRule
	Logger         *slog.Logger
}

type Normalizer struct {
	processingDate time.Time
	rules          []HeaderRule
	log            *slog.Logger
}

func New(opts Options) *Normalizer {
	if opts.ProcessingDate.IsZero() {
		opts.ProcessingDate = time.Now()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Normalizer{
		processingDate: opts.ProcessingDate,
		rules:          opts.Rules,
		log:            opts.Logger.With("component", "normalizer"),
	}
}

// RowResult is the outcome for one source row
type RowResult struct {
	Row         int                 `json:"row"`
	Raw         map[string]string   `json:"raw"`
	Extras      map[string]string   `json:"extras,omitempty"`
	Assignments []models.Assignment `json:"assignments,omitempty"`
	Errors      []models.RowError   `json:"errors,omitempty"`
	Warnings    []models.RowError   `json:"warnings,omitempty"`
}

func (r RowResult) Valid() bool { return len(r.Errors) == 0 }

// Result partitions every input row into Valid or Rejected
type Result struct {
	Columns  []Column          `json:"columns"`
	Valid    []RowResult       `json:"valid"`
	Rejected []RowResult       `json:"rejected"`
	Warnings []models.RowError `json:"warnings,omitempty"`
}

func (r Result) Total() int { return len(r.Valid) + len(r.Rejected) }

func (n *Normalizer) MapHeaders(header []string) []Column {
	return MapHeaders(header, n.rules)
}

func (n *Normalizer) Normalize(sheet *spreadsheet.Sheet) Result {
	res := Result{Columns: n.MapHeaders(sheet.Header)}
	for _, row := range sheet.Rows {
		rr := n.NormalizeRow(res.Columns, row)
		res.Warnings = append(res.Warnings, rr.Warnings...)
		if rr.Valid() {
			res.Valid = append(res.Valid, rr)
		} else {
			res.Rejected = append(res.Rejected, rr)
		}
	}
	return res
}

func (n *Normalizer) NormalizeRow(cols []Column, row spreadsheet.Row) RowResult {
	rr := RowResult{
		Row: row.Number,
		Raw: make(map[string]string, len(cols)),
	}

	values := make(map[Field]string)
	var states []stateCell
	for _, col := range cols {
		cell := ""
		if col.Index < len(row.Cells) {
			cell = row.Cells[col.Index]
		}
		rawKey := col.Header
		if _, dup := rr.Raw[rawKey]; dup || rawKey == "" {
			rawKey = col.Key
		}
		rr.Raw[rawKey] = cell

		switch col.Field {
		case FieldExtra:
			if rr.Extras == nil {
				rr.Extras = make(map[string]string)
			}
			rr.Extras[col.Key] = cell
		case FieldCategoryState:
			states = append(states, stateCell{col: col, value: cell})
		default:
			values[col.Field] = cell
		}
	}

	var base models.Assignment
	base.VendorCode, base.VendorName = SplitCodeName(values[FieldVendor])
	if code := values[FieldVendorCode]; code != "" {
		base.VendorCode = strings.ToUpper(code)
	}
	base.SupervisorCode, base.SupervisorName = SplitCodeName(values[FieldSupervisor])

	base.RouteCode, base.RouteName = SplitCodeName(values[FieldRouteName])
	if code := values[FieldRouteCode]; code != "" {
		base.RouteCode = strings.ToUpper(code)
	}

	base.ClientName = values[FieldClientName]
	if code := values[FieldClientCode]; code != "" {
		base.ClientCode = strings.ToUpper(code)
	} else {
		base.ClientCode, base.ClientName = splitClient(base.ClientName)
	}

	date, err := ParseDate(values[FieldReportDate], n.processingDate)
	if err != nil {
		rr.Errors = append(rr.Errors, models.RowError{
			Row:     row.Number,
			Code:    models.ErrCodeInvalidDate,
			Fields:  []string{"reportDate"},
			Message: fmt.Sprintf("cannot parse %q", values[FieldReportDate]),
		})
	}
	base.ReportDate = date

	var assignments []models.Assignment
	if len(states) > 0 {
		for _, sc := range states {
			a := base
			a.CategoryName = sc.col.Category
			a.ActivationState = n.activation(&rr, sc.col.Header, sc.value)
			assignments = append(assignments, a)
		}
		if overall, ok := values[FieldOverallState]; ok {
			if rr.Extras == nil {
				rr.Extras = make(map[string]string)
			}
			rr.Extras[string(FieldOverallState)] = overall
		}
	} else if category := values[FieldCategory]; category != "" {
		a := base
		a.CategoryName = canonicalCategory(category)
		a.ActivationState = n.activation(&rr, "state", values[FieldOverallState])
		assignments = append(assignments, a)
	}

	var missing []string
	if base.VendorCode == "" {
		missing = append(missing, "vendorCode")
	}
	if base.ClientName == "" {
		missing = append(missing, "clientName")
	}
	if len(assignments) == 0 {
		missing = append(missing, "categoryName")
	}
	if len(missing) > 0 {
		rr.Errors = append(rr.Errors, models.RowError{
			Row:     row.Number,
			Code:    models.ErrCodeMissingRequiredField,
			Fields:  missing,
			Message: "required fields are empty",
		})
	}

	if rr.Valid() {
		rr.Assignments = assignments
	}
	return rr
}

type stateCell struct {
	col   Column
	value string
}

func (n *Normalizer) activation(rr *RowResult, column, literal string) models.ActivationState {
	state, known := ParseActivation(literal)
	if !known {
		n.log.Warn("unknown activation literal", "row", rr.Row, "column", column, "value", literal)
		rr.Warnings = append(rr.Warnings, models.RowError{
			Row:     rr.Row,
			Code:    models.ErrCodeUnknownActivationState,
			Fields:  []string{column},
			Message: fmt.Sprintf("%q treated as %s", literal, state),
		})
	}
	return state
}
