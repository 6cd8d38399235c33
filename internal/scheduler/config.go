package scheduler

import "time"

// FixedDelay describes an in-process fixed-rate schedule: the first tick
// fires after InitialDelay, every subsequent tick after Period, measured
// from the previous tick's scheduled time (not its completion time).
type FixedDelay struct {
	InitialDelay time.Duration
	Period       time.Duration
}

// ScheduleConfiguration is the tagged variant callers (chiefly the TTL
// manager) submit when they don't want to pick pg_cron vs in-process
// scheduling themselves. Exactly one of CronConfiguration or
// FixedDelayConfiguration should be used per registration.
type ScheduleConfiguration interface {
	isScheduleConfiguration()
}

// CronConfiguration selects pg_cron scheduling when available. Fallback,
// if set, is used verbatim as the in-process schedule when pg_cron is
// unavailable; if nil, ToFixedDelayConfiguration derives a conservative
// default instead.
type CronConfiguration struct {
	CronExpression string
	Fallback       *FixedDelay
}

func (CronConfiguration) isScheduleConfiguration() {}

// ToFixedDelayConfiguration returns the in-process fallback for this cron
// configuration: the carried Fallback if present, otherwise a default of
// (0, 1 minute). The default is deliberately conservative — it is meant
// to keep an in-process job alive when pg_cron is unexpectedly absent,
// not to approximate the cron expression's actual cadence.
func (c CronConfiguration) ToFixedDelayConfiguration() FixedDelay {
	if c.Fallback != nil {
		return *c.Fallback
	}
	return FixedDelay{InitialDelay: 0, Period: time.Minute}
}

// FixedDelayConfiguration selects in-process scheduling unconditionally.
type FixedDelayConfiguration struct {
	FixedDelay
}

func (FixedDelayConfiguration) isScheduleConfiguration() {}

// CronTarget names the SQL-side function a Cron-mode registration should
// invoke when installed as a pg_cron job.
type CronTarget struct {
	FunctionName string
	Args         []string
}
