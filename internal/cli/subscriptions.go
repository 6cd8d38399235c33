package cli

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/trustworks/essentials-scheduler/internal/eventstore"
	"github.com/trustworks/essentials-scheduler/internal/subscription"
)

// NewSubscriptionsCmd builds the "subscriptions" command group: a
// read-only view over durable_subscription_resume_points.
func NewSubscriptionsCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Inspect durable subscription resume points",
	}
	cmd.AddCommand(newSubscriptionsShowCmd(poolFn, outputFn))
	return cmd
}

func newSubscriptionsShowCmd(poolFn func() *pgxpool.Pool, outputFn func() *Output) *cobra.Command {
	var subscriberID, aggregateType string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a subscriber's current resume point",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subscriberID == "" || aggregateType == "" {
				return cmd.Help()
			}

			repo := subscription.NewPostgresRepository(poolFn())
			out := outputFn()

			point, found, err := repo.FindResumePoint(cmd.Context(),
				eventstore.SubscriberId(subscriberID),
				eventstore.AggregateType(aggregateType))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no resume point for subscriber %q on aggregate type %q", subscriberID, aggregateType)
			}

			out.Print(
				[]string{"SUBSCRIBER_ID", "AGGREGATE_TYPE", "RESUME_FROM_AND_INCLUDING"},
				[][]string{{subscriberID, aggregateType, formatGlobalOrder(point.ResumeFromAndIncluding())}},
				point,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&subscriberID, "subscriber-id", "", "Subscriber id (required)")
	cmd.Flags().StringVar(&aggregateType, "aggregate-type", "", "Aggregate type (required)")
	cmd.MarkFlagRequired("subscriber-id")
	cmd.MarkFlagRequired("aggregate-type")
	return cmd
}

func formatGlobalOrder(order eventstore.GlobalEventOrder) string {
	return strconv.FormatInt(int64(order), 10)
}
