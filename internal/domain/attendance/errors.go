package attendance

import "errors"

// Attendance domain errors
var (
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrInvalidClockOut    = errors.New("clock out must be after clock in")
	ErrNoClockTimes       = errors.New("attendance has neither clock in nor clock out")
)
