package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gigmatch/profile"
)

// ValidationError reports a malformed posting or request.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("job: invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func ParseWagePeriod(s string) (WagePeriod, error) {
	p := WagePeriod(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case WageHourly, WageDaily, WageWeekly, WageMonthly:
		return p, nil
	}
	return "", invalid("wage.period", "must be one of hourly, daily, weekly, monthly")
}

// buildJob normalizes and validates input against now.
func buildJob(in JobInput, now time.Time) (Job, error) {
	j := Job{
		Title:              strings.TrimSpace(in.Title),
		Description:        strings.TrimSpace(in.Description),
		RequiredSkills:     profile.NormalizeSet(in.RequiredSkills),
		Location:           in.Location,
		Wage:               in.Wage,
		Duration:           strings.TrimSpace(in.Duration),
		RequiredExperience: in.RequiredExperience,
		PreferredLanguages: profile.NormalizeList(in.PreferredLanguages),
		StartDate:          in.StartDate,
		Status:             StatusOpen,
	}
	j.Location.Address = strings.TrimSpace(j.Location.Address)

	if j.Title == "" {
		return Job{}, invalid("title", "is required")
	}
	if len(j.RequiredSkills) == 0 {
		return Job{}, invalid("requiredSkills", "at least one skill is required")
	}
	if j.Wage.Amount <= 0 {
		return Job{}, invalid("wage.amount", "must be greater than zero")
	}
	period, err := ParseWagePeriod(string(j.Wage.Period))
	if err != nil {
		return Job{}, err
	}
	j.Wage.Period = period
	if j.RequiredExperience < 0 {
		return Job{}, invalid("requiredExperience", "must not be negative")
	}
	if j.StartDate.IsZero() {
		return Job{}, invalid("startDate", "is required")
	}
	if j.StartDate.Before(now) {
		return Job{}, invalid("startDate", "must not be in the past")
	}
	if err := profile.ValidateLocation(j.Location); err != nil {
		var pErr *profile.ValidationError
		if errors.As(err, &pErr) {
			return Job{}, invalid(pErr.Field, "%s", pErr.Msg)
		}
		return Job{}, err
	}
	return j, nil
}
