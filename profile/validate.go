package profile

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidationError reports malformed input. Input is never silently corrected.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile: invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NormalizeSet trims, lower-cases and de-duplicates values. The result is
// sorted so equal sets compare equal regardless of input order.
func NormalizeSet(values []string) []string {
	out := NormalizeList(values)
	sort.Strings(out)
	return out
}

// NormalizeList trims, lower-cases and de-duplicates values keeping the
// first-seen order.
func NormalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func ValidateAge(age int) error {
	if age < MinAge || age > MaxAge {
		return invalid("age", "must be between %d and %d, got %d", MinAge, MaxAge, age)
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return invalid("phone", "must be 7-15 digits with optional leading +")
	}
	return nil
}

// ValidateLocation rejects coordinates outside the lon/lat ranges.
func ValidateLocation(loc Location) error {
	if loc.Point == nil {
		return nil
	}
	p := *loc.Point
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return invalid("location.coordinates", "longitude %v out of range [-180,180]", p.Lon)
	}
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return invalid("location.coordinates", "latitude %v out of range [-90,90]", p.Lat)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	return nil
}

func validateWorker(w Worker) error {
	if strings.TrimSpace(w.Name) == "" {
		return invalid("name", "is required")
	}
	if err := ValidateAge(w.Age); err != nil {
		return err
	}
	if err := ValidatePhone(w.Phone); err != nil {
		return err
	}
	if w.Experience < 0 {
		return invalid("experience", "must not be negative")
	}
	return ValidateLocation(w.Location)
}

func validateEmployer(e Employer) error {
	if strings.TrimSpace(e.Name) == "" {
		return invalid("name", "is required")
	}
	if err := ValidatePhone(e.Phone); err != nil {
		return err
	}
	if e.Email != "" && !strings.Contains(e.Email, "@") {
		return invalid("email", "must be a valid address")
	}
	return ValidateLocation(e.Location)
}
