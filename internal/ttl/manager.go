package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/trustworks/essentials-scheduler/internal/db"
	"github.com/trustworks/essentials-scheduler/internal/pgident"
	"github.com/trustworks/essentials-scheduler/internal/scheduler"
)

// DefaultTTLFunctionName is the well-known PL/pgSQL function this
// manager installs when no override is configured.
const DefaultTTLFunctionName = "essentials_ttl_delete"

// Definition pairs a JobAction with the ScheduleConfiguration it should
// run under.
type Definition struct {
	Action                JobAction
	ScheduleConfiguration scheduler.ScheduleConfiguration
}

// Manager is the TTL job manager (spec §4.F): a Lifecycle object that
// installs its delete function once and then delegates every registered
// job to the scheduler.
type Manager interface {
	Start(ctx context.Context) error
	IsStarted() bool
	ScheduleTTLJob(def Definition) error
}

// PostgresManager is the reference Manager implementation.
type PostgresManager struct {
	scheduler       scheduler.Scheduler
	unitOfWork      db.UnitOfWorkFactory
	ttlFunctionName string
	logger          *slog.Logger
	metrics         MetricsSink

	mu       sync.Mutex
	started  bool
	queued   []Definition
	byName   map[string]struct{}
}

// MetricsSink is the subset of telemetry.Metrics the TTL manager updates.
type MetricsSink interface {
	TTLDeleteRan(table string)
}

// Config wires a PostgresManager's collaborators. TTLFunctionName
// defaults to DefaultTTLFunctionName when empty.
type Config struct {
	Scheduler       scheduler.Scheduler
	UnitOfWork      db.UnitOfWorkFactory
	TTLFunctionName string
	Logger          *slog.Logger
	Metrics         MetricsSink
}

// New builds a PostgresManager. TTLFunctionName, if set, must satisfy
// pgident.IsValidFunctionName — it is spliced directly into the DDL
// initializeTTLFunction runs, and the Java original never exposed this
// as caller-controlled for exactly that reason.
func New(cfg Config) (*PostgresManager, error) {
	name := cfg.TTLFunctionName
	if name == "" {
		name = DefaultTTLFunctionName
	}
	if !pgident.IsValidFunctionName(name) {
		return nil, fmt.Errorf("ttl: invalid TTLFunctionName %q", name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresManager{
		scheduler:       cfg.Scheduler,
		unitOfWork:      cfg.UnitOfWork,
		ttlFunctionName: name,
		logger:          logger,
		metrics:         cfg.Metrics,
		byName:          make(map[string]struct{}),
	}, nil
}

func (m *PostgresManager) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Start idempotently installs the TTL delete function, then schedules
// every definition queued before Start was called.
func (m *PostgresManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.initializeTTLFunction(ctx); err != nil {
		return fmt.Errorf("initialize TTL function: %w", err)
	}

	m.mu.Lock()
	queued := m.queued
	m.queued = nil
	m.started = true
	m.mu.Unlock()

	for _, def := range queued {
		if err := m.installTTLJob(def); err != nil {
			m.logger.Error("failed to install queued TTL job", "job_name", def.Action.JobName(), "error", err)
		}
	}
	return nil
}

func (m *PostgresManager) initializeTTLFunction(ctx context.Context) error {
	return m.unitOfWork.UsingUnitOfWork(ctx, func(uow db.UnitOfWork) error {
		ddl := fmt.Sprintf(`
			create or replace function %s(p_table_name text, p_delete_statement text)
			returns void as $$
			begin
				execute format('DELETE FROM %%I WHERE %%s', p_table_name, p_delete_statement);
			end;
			$$ language plpgsql;`, m.ttlFunctionName)
		_, err := uow.Tx().Exec(ctx, ddl)
		return err
	})
}

// ScheduleTTLJob de-dups against the registered list; if the manager
// hasn't started yet, def is queued for Start to install.
func (m *PostgresManager) ScheduleTTLJob(def Definition) error {
	name := def.Action.JobName()

	m.mu.Lock()
	if _, exists := m.byName[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("ttl: job %q already registered", name)
	}
	m.byName[name] = struct{}{}
	started := m.started
	if !started {
		m.queued = append(m.queued, def)
	}
	m.mu.Unlock()

	if !started {
		return nil
	}
	return m.installTTLJob(def)
}

func (m *PostgresManager) installTTLJob(def Definition) error {
	name := def.Action.JobName()
	functionName, args := def.Action.FunctionCall()

	task := func(ctx context.Context) error {
		err := def.Action.ExecuteDirectly(ctx, m.unitOfWork)
		if err == nil && m.metrics != nil {
			if da, ok := def.Action.(*DefaultAction); ok {
				m.metrics.TTLDeleteRan(da.TableName)
			}
		}
		return err
	}

	return m.scheduler.Schedule(name, def.ScheduleConfiguration, scheduler.CronTarget{
		FunctionName: functionName,
		Args:         args,
	}, task)
}
