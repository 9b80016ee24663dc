package validator

import (
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Date validation
func IsValidDate(dateStr string) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", dateStr)
	return date, err == nil
}

// IsValidDateTime checks if a string is a valid ISO8601 timestamp.
// Accepts formats like: "2024-01-15T10:30:00Z" or "2024-01-15T10:30:00+07:00"
func IsValidDateTime(dateTimeStr string) (time.Time, bool) {
	// Try RFC3339 format (ISO8601 with timezone)
	t, err := time.Parse(time.RFC3339, dateTimeStr)
	if err == nil {
		return t, true
	}

	// Try RFC3339Nano format (with nanoseconds)
	t, err = time.Parse(time.RFC3339Nano, dateTimeStr)
	if err == nil {
		return t, true
	}

	return time.Time{}, false
}

// IsValidTimezone reports whether name is a loadable IANA zone.
func IsValidTimezone(name string) bool {
	if IsEmpty(name) {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Slice contains check
func IsInSlice(value string, slice []string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}

// DateRange validates a "YYYY-MM-DD" pair and returns [start, end+1 day) at
// UTC midnight. maxDays of zero disables the length check.
func DateRange(startField, start, endField, end string, maxDays int) (time.Time, time.Time, ValidationErrors) {
	var errs ValidationErrors

	from, ok := IsValidDate(start)
	if !ok {
		errs = append(errs, ValidationError{Field: startField, Message: "must be a date in YYYY-MM-DD format"})
	}
	to, ok := IsValidDate(end)
	if !ok {
		errs = append(errs, ValidationError{Field: endField, Message: "must be a date in YYYY-MM-DD format"})
	}
	if len(errs) > 0 {
		return time.Time{}, time.Time{}, errs
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, ValidationErrors{{Field: endField, Message: "must not be before " + startField}}
	}
	to = to.AddDate(0, 0, 1)
	if maxDays > 0 && to.Sub(from) > time.Duration(maxDays)*24*time.Hour {
		return time.Time{}, time.Time{}, ValidationErrors{{Field: endField, Message: "range is too long"}}
	}

	return from, to, nil
}
