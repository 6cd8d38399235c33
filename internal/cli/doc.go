// Package cli implements schedulerctl's command tree: a read-only
// operator CLI that reads directly from Postgres through the same
// repositories the daemon uses, rather than through an HTTP API — this
// layer never exposes one.
//
// # Key components
//
// ## Output
//
// Output formatting, carried over unchanged: table via text/tabwriter
// by default, JSON with --json. Data goes to stdout, messages
// (Success/Error) to stderr, so `schedulerctl jobs pgcron list --json | jq .`
// works.
//
// ## Commands
//
// Cobra command groups, one per observability surface:
//   - jobs pgcron: list, runs JOB_ID
//   - jobs executor (lists entries itself; it has no subcommands)
//   - subscriptions: show --subscriber-id --aggregate-type
//
// Each group is created via a factory function (NewJobsCmd,
// NewSubscriptionsCmd) taking closures for the pgxpool.Pool and Output
// so both are constructed lazily, after PersistentFlags are parsed.
package cli
