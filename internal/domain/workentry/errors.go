package workentry

import "errors"

var (
	ErrWorkEntryNotFound = errors.New("work entry not found")
	ErrEntryValidated    = errors.New("work entry is validated and cannot be modified")
)
