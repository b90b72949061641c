package normalizer

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"activation-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidDate = errors.New("invalid date")

var codeNamePattern = regexp.MustCompile(`^\s*([A-Za-z0-9]+)\s*-\s*(.+)$`)

// SplitCodeName splits "E56 - JUAN PEREZ" into ("E56", "JUAN PEREZ"). A
// value without the pattern is returned whole as the name.
func SplitCodeName(s string) (code, name string) {
	m := codeNamePattern.FindStringSubmatch(s)
	if m == nil {
		return "", strings.TrimSpace(s)
	}
	return strings.ToUpper(strings.TrimSpace(m[1])), strings.TrimSpace(m[2])
}

// splitClient only accepts a code token carrying a digit, so business
// names with a hyphen stay whole.
func splitClient(s string) (code, name string) {
	code, name = SplitCodeName(s)
	if code == "" || strings.IndexFunc(code, isDigit) < 0 {
		return "", strings.TrimSpace(s)
	}
	return code, name
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

var (
	activatedLiterals = map[string]bool{"activado": true, "activo": true, "si": true, "sí": true, "yes": true, "1": true}
	missingLiterals   = map[string]bool{"": true, "pendiente": true, "no": true, "no_aplica": true, "falta": true, "0": true}
)

// ParseActivation maps a cell literal to an activation state. known is
// false for literals outside both vocabularies, which map to Zero.
func ParseActivation(s string) (state models.ActivationState, known bool) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), "_")
	switch {
	case activatedLiterals[key]:
		return models.ActivationActivated, true
	case missingLiterals[key]:
		return models.ActivationMissing, true
	}
	return models.ActivationZero, false
}

// Day-first layouts are tried before ISO; month-first input is not accepted.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006/01/02",
	"02/01/06",
	"2/1/06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	time.RFC3339,
}

// ParseDate parses a report date cell. Blank cells take fallback. Excel
// serial numbers are accepted as stored in workbook cells.
func ParseDate(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateOnly(fallback), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 20000 && serial < 80000 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return DateOnly(t), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// DateOnly truncates t to its calendar day in UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// canonicalCategory maps a long-format category cell onto a known
// category name, leaving unknown values uppercased for resolution to reject
func canonicalCategory(s string) string {
	upper := canonicalHeader(s)
	for _, rule := range DefaultRules {
		if rule.Field == FieldCategoryState && strings.Contains(upper, rule.Token) {
			return rule.Category
		}
	}
	return upper
}
