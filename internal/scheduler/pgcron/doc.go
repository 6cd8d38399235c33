// Package pgcron is a thin data-access layer over PostgreSQL's pg_cron
// extension (cron.job, cron.job_run_details). It never computes fire
// times itself — cron expressions are validated for syntax only and then
// handed to cron.schedule verbatim.
package pgcron
