// Package executorjob is CRUD access over the executor_scheduled_job
// audit table: the cross-node observability record of in-process
// fixed-delay jobs running on the current leader.
package executorjob
