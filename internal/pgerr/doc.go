// Package pgerr classifies PostgreSQL errors the scheduler and TTL manager
// need to react to specially: a pg_cron extension that exists but was not
// loaded via shared_preload_libraries, and transient IO/connection faults
// that should be logged and swallowed rather than propagated.
package pgerr
