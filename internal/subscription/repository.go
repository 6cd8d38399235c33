package subscription

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trustworks/essentials-scheduler/internal/eventstore"
)

// DurableSubscriptionRepository persists ResumePoint rows so a
// subscriber resumes from its last acknowledged position across
// restarts.
type DurableSubscriptionRepository interface {
	GetOrCreateResumePoint(ctx context.Context, subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType, initialResumeFromAndIncluding eventstore.GlobalEventOrder) (*ResumePoint, error)
	// FindResumePoint is a side-effect-free read: it returns
	// (nil, false, nil) rather than creating a row when none exists.
	FindResumePoint(ctx context.Context, subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType) (*ResumePoint, bool, error)
	SaveResumePoint(ctx context.Context, point *ResumePoint) error
}

// PostgresRepository is the DurableSubscriptionRepository reference
// implementation, backed by a composite-keyed table on
// (subscriber_id, aggregate_type).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository builds a PostgresRepository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const resumePointTable = "durable_subscription_resume_points"

// EnsureSchema creates the resume-point table if it doesn't already
// exist. Callers typically run this once during startup.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		create table if not exists %s (
			subscriber_id text not null,
			aggregate_type text not null,
			resume_from_and_including bigint not null,
			primary key (subscriber_id, aggregate_type)
		)`, resumePointTable))
	return err
}

func (r *PostgresRepository) GetOrCreateResumePoint(ctx context.Context, subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType, initialResumeFromAndIncluding eventstore.GlobalEventOrder) (*ResumePoint, error) {
	var existing int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`select resume_from_and_including from %s where subscriber_id = $1 and aggregate_type = $2`, resumePointTable),
		string(subscriberID), string(aggregateType)).Scan(&existing)
	if err == nil {
		return NewResumePoint(subscriberID, aggregateType, eventstore.GlobalEventOrder(existing)), nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("get resume point: %w", err)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(
		`insert into %s (subscriber_id, aggregate_type, resume_from_and_including) values ($1, $2, $3)
		 on conflict (subscriber_id, aggregate_type) do nothing`, resumePointTable),
		string(subscriberID), string(aggregateType), int64(initialResumeFromAndIncluding))
	if err != nil {
		return nil, fmt.Errorf("create resume point: %w", err)
	}
	return NewResumePoint(subscriberID, aggregateType, initialResumeFromAndIncluding), nil
}

func (r *PostgresRepository) FindResumePoint(ctx context.Context, subscriberID eventstore.SubscriberId, aggregateType eventstore.AggregateType) (*ResumePoint, bool, error) {
	var existing int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(
		`select resume_from_and_including from %s where subscriber_id = $1 and aggregate_type = $2`, resumePointTable),
		string(subscriberID), string(aggregateType)).Scan(&existing)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find resume point: %w", err)
	}
	return NewResumePoint(subscriberID, aggregateType, eventstore.GlobalEventOrder(existing)), true, nil
}

func (r *PostgresRepository) SaveResumePoint(ctx context.Context, point *ResumePoint) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`insert into %s (subscriber_id, aggregate_type, resume_from_and_including) values ($1, $2, $3)
		 on conflict (subscriber_id, aggregate_type) do update set resume_from_and_including = excluded.resume_from_and_including`, resumePointTable),
		string(point.SubscriberID), string(point.AggregateType), int64(point.ResumeFromAndIncluding()))
	if err != nil {
		return fmt.Errorf("save resume point: %w", err)
	}
	return nil
}

var _ DurableSubscriptionRepository = (*PostgresRepository)(nil)
