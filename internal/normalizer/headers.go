package normalizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Field is the canonical destination of a sheet column
type Field string

const (
	FieldVendor        Field = "vendor"
	FieldVendorCode    Field = "vendor_code"
	FieldSupervisor    Field = "supervisor"
	FieldClientCode    Field = "client_code"
	FieldClientName    Field = "client_name"
	FieldRouteCode     Field = "route_code"
	FieldRouteName     Field = "route_name"
	FieldReportDate    Field = "report_date"
	FieldCategory      Field = "category"
	FieldCategoryState Field = "category_state"
	FieldOverallState  Field = "overall_state"
	FieldExtra         Field = "extra"
)

// HeaderRule maps any header containing Token to Field. Category is set
// for per-category state columns.
type HeaderRule struct {
	Token    string
	Field    Field
	Category string
}

// DefaultRules is evaluated top to bottom, first match wins. Composite
// tokens precede the single words they contain.
var DefaultRules = []HeaderRule{
	{Token: "CODIGO VENDEDOR", Field: FieldVendorCode},
	{Token: "COD VENDEDOR", Field: FieldVendorCode},
	{Token: "CODIGO CLIENTE", Field: FieldClientCode},
	{Token: "COD CLIENTE", Field: FieldClientCode},
	{Token: "CODIGO RUTA", Field: FieldRouteCode},
	{Token: "COD RUTA", Field: FieldRouteCode},
	{Token: "FECHA", Field: FieldReportDate},
	{Token: "SUPER DE ALIM", Field: FieldCategoryState, Category: "SUPER DE ALIMENTOS"},
	{Token: "ENSURE", Field: FieldCategoryState, Category: "ENSURE"},
	{Token: "CHOCOLATE", Field: FieldCategoryState, Category: "CHOCOLATE"},
	{Token: "ALPINA", Field: FieldCategoryState, Category: "ALPINA"},
	{Token: "VENDEDOR", Field: FieldVendor},
	{Token: "CLIENTE", Field: FieldClientName},
	{Token: "SUPERVISOR", Field: FieldSupervisor},
	{Token: "RUTA", Field: FieldRouteName},
	{Token: "CATEGORIA", Field: FieldCategory},
	{Token: "CONDICIONATE", Field: FieldOverallState},
	{Token: "ESTADO", Field: FieldOverallState},
}

// Column is a header cell resolved to its canonical field
type Column struct {
	Index    int    `json:"index"`
	Header   string `json:"header"`
	Field    Field  `json:"field"`
	Category string `json:"category,omitempty"`
	Key      string `json:"key"`
}

var accentFolder = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
	".", " ", "_", " ", ":", " ",
)

// canonicalHeader uppercases, folds accents and punctuation and collapses spaces
func canonicalHeader(h string) string {
	h = accentFolder.Replace(strings.ToUpper(strings.TrimSpace(h)))
	return strings.Join(strings.Fields(h), " ")
}

// Slugify lowercases s and replaces every run of non-alphanumeric
// characters with a single underscore
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// MapHeaders resolves every header cell against rules. Headers that match
// no rule, or repeat a field already taken, become extras keyed by slug.
func MapHeaders(header []string, rules []HeaderRule) []Column {
	if rules == nil {
		rules = DefaultRules
	}

	taken := make(map[string]bool)
	cols := make([]Column, 0, len(header))
	for i, h := range header {
		col := Column{Index: i, Header: h, Field: FieldExtra}

		upper := canonicalHeader(h)
		for _, rule := range rules {
			if upper != "" && strings.Contains(upper, rule.Token) {
				col.Field = rule.Field
				col.Category = rule.Category
				break
			}
		}

		col.Key = string(col.Field)
		if col.Field == FieldCategoryState {
			col.Key = "state_" + Slugify(col.Category)
		}
		if col.Field == FieldExtra || taken[col.Key] {
			col.Field = FieldExtra
			col.Category = ""
			col.Key = Slugify(h)
			if col.Key == "" {
				col.Key = fmt.Sprintf("column_%d", i+1)
			}
			if taken[col.Key] {
				col.Key = fmt.Sprintf("%s_%d", col.Key, i+1)
			}
		}
		taken[col.Key] = true
		cols = append(cols, col)
	}
	return cols
}
