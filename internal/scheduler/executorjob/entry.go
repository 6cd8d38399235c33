package executorjob

import "time"

// Entry is one row of the executor_scheduled_job audit table: one row
// per live in-process job on the current leader. Name follows the
// convention "<logical-name>-<instance-id>", where instance-id already
// embeds the host name, so Host is carried separately only for quick
// filtering.
type Entry struct {
	Name          string
	Host          string
	LastStartedAt *time.Time
	NextFireAt    *time.Time
}
