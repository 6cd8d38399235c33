package cli

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/trustworks/essentials-scheduler/internal/scheduler/executorjob"
	"github.com/trustworks/essentials-scheduler/internal/scheduler/pgcron"
)

// NewJobsCmd builds the "jobs" command group: paged, read-only views
// over cron.job / cron.job_run_details and the executor_scheduled_job
// audit table.
func NewJobsCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect scheduled jobs",
	}
	cmd.AddCommand(newJobsPgCronCmd(poolFn, outputFn), newJobsExecutorCmd(poolFn, outputFn))
	return cmd
}

func newJobsPgCronCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pgcron",
		Short: "Inspect cron.job entries installed by this module",
	}
	cmd.AddCommand(newJobsPgCronListCmd(poolFn, outputFn), newJobsPgCronRunsCmd(poolFn, outputFn))
	return cmd
}

func newJobsPgCronListCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cron.job entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := pgcron.NewPostgresRepository(poolFn())
			out := outputFn()

			entries, err := repo.FetchEntries(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}
			total, err := repo.GetTotalEntries(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"JOB_ID", "NAME", "SCHEDULE", "COMMAND", "ACTIVE"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					strconv.FormatInt(e.JobID, 10), e.JobName, e.Schedule, e.Command,
					strconv.FormatBool(e.Active),
				}
			}
			out.Print(headers, rows, entries)
			out.Success(totalLine(len(entries), offset, total))
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func newJobsPgCronRunsCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "runs JOB_ID",
		Short: "List cron.job_run_details for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}

			repo := pgcron.NewPostgresRepository(poolFn())
			out := outputFn()

			runs, err := repo.FetchRunDetails(cmd.Context(), jobID, offset, limit)
			if err != nil {
				return err
			}

			headers := []string{"RUN_ID", "STATUS", "START_TIME", "END_TIME", "RETURN_MESSAGE"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				endTime := ""
				if r.EndTime != nil {
					endTime = r.EndTime.Format("2006-01-02T15:04:05Z07:00")
				}
				rows[i] = []string{
					strconv.FormatInt(r.RunID, 10), r.Status,
					r.StartTime.Format("2006-01-02T15:04:05Z07:00"), endTime, r.ReturnMsg,
				}
			}
			out.Print(headers, rows, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func newJobsExecutorCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "executor",
		Short: "List executor_scheduled_job entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := executorjob.NewPostgresRepository(poolFn())
			out := outputFn()

			entries, err := repo.FetchEntries(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}
			total, err := repo.GetTotalEntries(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "HOST", "LAST_STARTED_AT", "NEXT_FIRE_AT"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				lastStarted, nextFire := "", ""
				if e.LastStartedAt != nil {
					lastStarted = e.LastStartedAt.Format("2006-01-02T15:04:05Z07:00")
				}
				if e.NextFireAt != nil {
					nextFire = e.NextFireAt.Format("2006-01-02T15:04:05Z07:00")
				}
				rows[i] = []string{e.Name, e.Host, lastStarted, nextFire}
			}
			out.Print(headers, rows, entries)
			out.Success(totalLine(len(entries), offset, total))
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func totalLine(shown, offset int, total int64) string {
	return strconv.Itoa(shown) + " shown (offset " + strconv.Itoa(offset) + "), " + strconv.FormatInt(total, 10) + " total"
}
