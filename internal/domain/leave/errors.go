package leave

import "errors"

var (
	ErrPenaltyNotFound    = errors.New("penalty leave not found")
	ErrInvalidPortion     = errors.New("invalid penalty portion")
	ErrInvalidInfraction  = errors.New("invalid infraction type")
	ErrInvalidLeaveWindow = errors.New("leave end must be after start")
)
