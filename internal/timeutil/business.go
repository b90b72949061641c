package timeutil

import (
	"sync"
	"time"
)

// DefaultZone is the business timezone used when none is configured
const DefaultZone = "America/Bogota"

var (
	mu       sync.RWMutex
	location = loadLocation(DefaultZone)
)

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback: fixed UTC-5 when tzdata is not available
		return time.FixedZone("COT", -5*60*60)
	}
	return loc
}

// SetLocation changes the business timezone. Called once at startup.
func SetLocation(name string) {
	loc := loadLocation(name)
	mu.Lock()
	location = loc
	mu.Unlock()
}

// Location returns the business timezone
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Now returns the current time in the business timezone
func Now() time.Time {
	return time.Now().In(Location())
}

// Today returns the current business date at midnight UTC, the form
// report dates are stored in
func Today() time.Time {
	y, m, d := Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD business date
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// Report dates use DateLayout; exports show times with the other two
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
