package compliance

import (
	"fmt"
	"time"
)

// TieBreakPolicy decides what happens when an employee completed the
// morning and then left before the full-day threshold while an afternoon
// shift exists.
type TieBreakPolicy string

const (
	// TieBreakMissingShift reclassifies the deficiency as a missing
	// afternoon shift.
	TieBreakMissingShift TieBreakPolicy = "missing_shift"
	// TieBreakFullDay keeps the full-day penalty.
	TieBreakFullDay TieBreakPolicy = "full_day"
)

// Config is the policy snapshot of one pipeline invocation. It is passed by
// value so a pass never observes a change made mid-run.
type Config struct {
	LateGraceMinutes          int
	EarlyCheckoutGraceMinutes int
	MinimumOvertimeMinutes    int
	FullDayTieBreak           TieBreakPolicy
	MaxReentrancyDepth        int
}

func DefaultConfig() Config {
	return Config{
		LateGraceMinutes:          10,
		EarlyCheckoutGraceMinutes: 10,
		MinimumOvertimeMinutes:    30,
		FullDayTieBreak:           TieBreakMissingShift,
		MaxReentrancyDepth:        3,
	}
}

func (c Config) LateGrace() time.Duration {
	return time.Duration(c.LateGraceMinutes) * time.Minute
}

func (c Config) EarlyCheckoutGrace() time.Duration {
	return time.Duration(c.EarlyCheckoutGraceMinutes) * time.Minute
}

func (c Config) MinimumOvertime() time.Duration {
	return time.Duration(c.MinimumOvertimeMinutes) * time.Minute
}

func (c Config) Validate() error {
	if c.LateGraceMinutes < 0 {
		return fmt.Errorf("%w: late grace minutes must not be negative", ErrInvalidConfig)
	}
	if c.EarlyCheckoutGraceMinutes < 0 {
		return fmt.Errorf("%w: early checkout grace minutes must not be negative", ErrInvalidConfig)
	}
	if c.MinimumOvertimeMinutes < 0 {
		return fmt.Errorf("%w: minimum overtime minutes must not be negative", ErrInvalidConfig)
	}
	switch c.FullDayTieBreak {
	case TieBreakMissingShift, TieBreakFullDay:
	default:
		return fmt.Errorf("%w: unknown full day tie break %q", ErrInvalidConfig, c.FullDayTieBreak)
	}
	if c.MaxReentrancyDepth < 1 {
		return fmt.Errorf("%w: max reentrancy depth must be at least 1", ErrInvalidConfig)
	}
	return nil
}
