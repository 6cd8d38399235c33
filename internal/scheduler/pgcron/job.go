package pgcron

import "time"

// CronExpression names a handful of well-known pg_cron expressions used by
// tests and demos, mirroring the fixed set exercised by the original
// integration tests. Any syntactically valid five-field expression, or
// six-field one with a leading seconds field, is accepted at runtime — this type is a convenience, not an enum
// enforced by the scheduler.
type CronExpression string

const (
	OneSecond    CronExpression = "* * * * * *"
	TenSecond    CronExpression = "*/10 * * * * *"
	ThirtySecond CronExpression = "*/30 * * * * *"
	EveryMinute  CronExpression = "*/1 * * * *"
)

// Job describes a pg_cron job registration. FunctionName must satisfy
// pgident.IsValidFunctionName in qualified or unqualified form. Args, if
// present, are passed as SQL literals inside the generated "SELECT
// fn(...)" call body — pg_cron has no notion of bound parameters for the
// scheduled command, so each element must already be a safely-quoted SQL
// literal.
type Job struct {
	Name           string
	FunctionName   string
	Args           []string
	CronExpression string
}

// Entry is a paged read of a cron.job row, used for observability only.
type Entry struct {
	JobID    int64
	JobName  string
	Schedule string
	Command  string
	Active   bool
}

// RunDetail is a paged read of a cron.job_run_details row.
type RunDetail struct {
	RunID     int64
	JobID     int64
	Status    string
	StartTime time.Time
	EndTime   *time.Time
	ReturnMsg string
}
