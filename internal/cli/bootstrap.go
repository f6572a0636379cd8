// Package cli wires the helpdeskd commands: serve, sweep and migrate.
package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/api/http/handlers"
	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/config"
	"github.com/opsline/helpdesk-core/internal/escalate"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/idempotency"
	"github.com/opsline/helpdesk-core/internal/knowledge"
	"github.com/opsline/helpdesk-core/internal/monitor"
	"github.com/opsline/helpdesk-core/internal/notify"
	"github.com/opsline/helpdesk-core/internal/observability"
	"github.com/opsline/helpdesk-core/internal/persistence"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/internal/routing"
	"github.com/opsline/helpdesk-core/internal/service"
	"github.com/opsline/helpdesk-core/internal/worker"
)

// runtime holds the constructed dependency graph shared by the commands.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	postgres *persistence.Postgres
	redis    *persistence.Redis
	nats     *notify.NATSNotifier

	tickets   *service.TicketService
	workflow  *service.WorkflowService
	feedback  *service.FeedbackService
	scheduler *monitor.Scheduler

	checks map[string]handlers.Pinger
}

// newRuntime builds the full graph. Without a postgres DSN every store runs
// in memory, which keeps local development and the sweep command DSN-free.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rd := persistence.NewRedis(cfg.Redis, logger)

	table, err := routing.Load(cfg.Routing.TablePath)
	if err != nil {
		rd.Close()
		pg.Close()
		return nil, err
	}

	dispatcher := events.NewInMemoryDispatcher()
	checks := map[string]handlers.Pinger{}
	clk := clock.Real{}

	var (
		ticketRepo  repository.TicketRepository
		changeRepo  repository.FieldChangeRepository
		stateRepo   repository.WorkflowStateRepository
		attemptRepo repository.ResolutionAttemptRepository
		idemStore   idempotency.Store
		dedupStore  monitor.DedupStore
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool, clk)
		changeRepo = repository.NewFieldChangeRepository(pool)
		stateRepo = repository.NewWorkflowStateRepository(pool)
		attemptRepo = repository.NewResolutionAttemptRepository(pool)
		idemStore = idempotency.NewRedisStore(rd.Client, 0)
		dedupStore = monitor.NewRedisDedup(rd.Client, 0)
		checks["postgres"] = pg.Ping
		checks["redis"] = rd.Ping
	} else {
		logger.Warn("running with in-memory stores")
		mem := repository.NewMemoryTicketRepository(clk)
		ticketRepo = mem
		changeRepo = mem
		stateRepo = repository.NewMemoryWorkflowStateRepository(clk)
		attemptRepo = repository.NewMemoryResolutionAttemptRepository(clk)
		idemStore = idempotency.NewMemoryStore()
		dedupStore = monitor.NewMemoryDedup()
	}

	var searcher knowledge.Searcher
	var elastic *knowledge.Elastic
	if len(cfg.Elasticsearch.Addresses) > 0 {
		elastic, err = knowledge.NewElastic(knowledge.ElasticConfig{
			Addresses: cfg.Elasticsearch.Addresses,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			Index:     cfg.Elasticsearch.Index,
		})
		if err != nil {
			rd.Close()
			pg.Close()
			return nil, fmt.Errorf("init elasticsearch: %w", err)
		}
		if err := elastic.Seed(ctx, knowledge.SeedArticles()); err != nil {
			logger.Warn("seed knowledge index failed", zap.Error(err))
		}
		searcher = elastic
		checks["elasticsearch"] = elastic.Ping
	} else {
		searcher = knowledge.NewMemoryIndex()
	}

	var rt runtime
	var base notify.Notifier
	if cfg.NATS.URL != "" {
		nn, err := notify.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("nats unavailable, using log notifier", zap.Error(err))
			base = notify.NewLogNotifier(logger)
		} else {
			base = nn
			rt.nats = nn
			checks["nats"] = nn.Ping
		}
	} else {
		base = notify.NewLogNotifier(logger)
	}
	notifier := notify.NewRetrier(base, 0, 0, 0)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		ChangeRepo: changeRepo,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	workflowSvc := service.NewWorkflowService(service.WorkflowDependencies{
		Tickets:     tickets,
		StateRepo:   stateRepo,
		Idempotency: idemStore,
		Searcher:    searcher,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	feedbackSvc := service.NewFeedbackService(service.FeedbackDependencies{
		Tickets:     tickets,
		AttemptRepo: attemptRepo,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	worker.StartEventWorker(service.NewEventLogService(dispatcher, logger))

	scheduler := monitor.NewScheduler(monitor.Dependencies{
		TicketRepo: ticketRepo,
		Tickets:    tickets,
		Evaluator:  escalate.NewEvaluator(table),
		Table:      table,
		Notifier:   notifier,
		Dedup:      dedupStore,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
		Metrics:    metrics,
	}, monitor.Options{
		Interval:      cfg.Monitor.Interval(),
		NotifyTimeout: cfg.Monitor.NotifyTimeout(),
		BatchSize:     cfg.Monitor.SweepBatchSize,
	})

	rt.cfg = cfg
	rt.logger = logger
	rt.metrics = metrics
	rt.postgres = pg
	rt.redis = rd
	rt.tickets = tickets
	rt.workflow = workflowSvc
	rt.feedback = feedbackSvc
	rt.scheduler = scheduler
	rt.checks = checks
	return &rt, nil
}

// Close releases external connections.
func (r *runtime) Close() {
	if r.nats != nil {
		r.nats.Close()
	}
	r.redis.Close()
	r.postgres.Close()
	_ = r.logger.Sync()
}
