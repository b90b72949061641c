package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivationState is the tri-state activation of one category for one client
type ActivationState string

const (
	ActivationActivated ActivationState = "Activated"
	ActivationMissing   ActivationState = "Missing"
	ActivationZero      ActivationState = "Zero"
)

func (s ActivationState) Valid() bool {
	switch s {
	case ActivationActivated, ActivationMissing, ActivationZero:
		return true
	}
	return false
}

// KnownCategories seeds the in-memory categories table; the migrations seed
// the same rows in Postgres. Promotion resolves codes from the table.
var KnownCategories = []Category{
	{Code: "ENS", Name: "ENSURE"},
	{Code: "CHO", Name: "CHOCOLATE"},
	{Code: "ALP", Name: "ALPINA"},
	{Code: "SDA", Name: "SUPER DE ALIMENTOS"},
}

// Assignment is the canonical activation record. It is the payload of a
// staging row and the shape of the production assignments table.
type Assignment struct {
	ID              int64           `json:"id,omitempty"`
	SupervisorCode  string          `json:"supervisor_code"`
	SupervisorName  string          `json:"supervisor_name"`
	VendorCode      string          `json:"vendor_code"`
	VendorName      string          `json:"vendor_name"`
	RouteCode       string          `json:"route_code,omitempty"`
	RouteName       string          `json:"route_name,omitempty"`
	ClientCode      string          `json:"client_code"`
	ClientName      string          `json:"client_name"`
	CategoryCode    string          `json:"category_code"`
	CategoryName    string          `json:"category_name"`
	ActivationState ActivationState `json:"activation_state"`
	ReportDate      time.Time       `json:"report_date"`
	RunID           *uuid.UUID      `json:"run_id,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// NaturalKey identifies an assignment in production
type NaturalKey struct {
	VendorCode   string
	ClientCode   string
	CategoryCode string
	ReportDate   string
}

func (a *Assignment) Key() NaturalKey {
	return NaturalKey{
		VendorCode:   a.VendorCode,
		ClientCode:   a.ClientCode,
		CategoryCode: a.CategoryCode,
		ReportDate:   a.ReportDate.Format("2006-01-02"),
	}
}

// DateRange is an inclusive range of business dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the calendar day of t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	day := dayOf(t)
	return !day.Before(dayOf(r.Start)) && !day.After(dayOf(r.End))
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !dayOf(r.End).Before(dayOf(r.Start))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AssignmentFilter narrows assignment listings for the dashboard
type AssignmentFilter struct {
	Range      *DateRange
	VendorCode string
	Limit      int
}
