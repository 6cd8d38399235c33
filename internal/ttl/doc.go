// Package ttl installs periodic DELETE-by-predicate jobs against user
// tables, on top of the scheduler core. It installs one generic
// identifier-safe PL/pgSQL delete function at startup and schedules
// per-table jobs through that function (pg_cron mode) or by running the
// equivalent DELETE directly inside a unit of work (in-process mode).
package ttl
