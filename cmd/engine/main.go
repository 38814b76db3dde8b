package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/escalation-engine/internal/api/http"
	"github.com/spec-kit/escalation-engine/internal/api/http/handlers"
	"github.com/spec-kit/escalation-engine/internal/auth"
	"github.com/spec-kit/escalation-engine/internal/config"
	"github.com/spec-kit/escalation-engine/internal/domain"
	"github.com/spec-kit/escalation-engine/internal/engine"
	"github.com/spec-kit/escalation-engine/internal/events"
	"github.com/spec-kit/escalation-engine/internal/notify"
	"github.com/spec-kit/escalation-engine/internal/observability"
	"github.com/spec-kit/escalation-engine/internal/persistence"
	"github.com/spec-kit/escalation-engine/internal/repository"
	"github.com/spec-kit/escalation-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	sla := domain.SLAPolicyFromSeconds(cfg.SLA.LowSeconds, cfg.SLA.MediumSeconds, cfg.SLA.HighSeconds, cfg.SLA.CriticalSeconds)
	channel := domain.NotificationChannel(cfg.Notify.DefaultChannel)

	var (
		ticketRepo repository.TicketRepository
		ruleRepo   repository.RuleRepository
		logRepo    repository.EscalationLogRepository
		tracker    engine.FiringTracker
		dispatcher notify.Dispatcher
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		ruleRepo = repository.NewRuleRepository(pool)
		logRepo = repository.NewEscalationLogRepository(pool)
		tracker = persistence.NewRedisFiringTracker(redis.Client)
		dispatcher = notify.NewRedisDispatcher(redis.Client, cfg.Notify.QueueKey)
	} else {
		logs := repository.NewMemoryEscalationLogRepository()
		ticketRepo = repository.NewMemoryTicketRepository(logs)
		ruleRepo = repository.NewMemoryRuleRepository()
		logRepo = logs
		tracker = engine.NewMemoryFiringTracker()
		dispatcher = notify.NewMemoryDispatcher()
	}

	bus := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(bus, dispatcher, ticketRepo, channel, logger)
	notificationService.RegisterHandlers()

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo: ticketRepo,
		LogRepo:    logRepo,
		Dispatcher: bus,
		SLA:        sla,
		Logger:     logger,
		Metrics:    metrics,
	})

	evaluator := engine.NewEvaluator(engine.EvaluatorDependencies{
		TicketRepo: ticketRepo,
		RuleRepo:   ruleRepo,
		Tracker:    tracker,
		Logger:     logger,
		Metrics:    metrics,
	})
	executor := engine.NewExecutor(engine.ExecutorDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Bus:        bus,
		SLA:        sla,
		Channel:    channel,
		Logger:     logger,
		Metrics:    metrics,
	})
	scheduler := engine.NewScheduler(engine.SchedulerDependencies{
		Evaluator: evaluator,
		Executor:  executor,
		Tracker:   tracker,
		Interval:  cfg.Engine.TickInterval(),
		Workers:   cfg.Engine.WorkerCount,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	authMiddleware := auth.NewMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret))

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Lifecycle:      handlers.NewLifecycleHandler(lifecycleService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-scheduler.Stop().Done()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
