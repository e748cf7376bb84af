package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"collabflow/internal/api/handler"
	"collabflow/internal/config"
	"collabflow/internal/core/postgres/repository"
	"collabflow/internal/domain"
	infraredis "collabflow/internal/infrastructure/redis"
	"collabflow/internal/metrics"
	"collabflow/internal/service"
	"collabflow/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 1. Database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&domain.WorkflowInstance{},
		&domain.SharedContext{},
		&domain.Checkpoint{},
		&domain.QueuedInput{},
		&domain.Conflict{},
		&domain.Decision{},
		&domain.DecisionVersion{},
		&domain.DecisionReview{},
		&domain.Session{},
	); err != nil {
		logger.Error("failed to migrate schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Redis event bus
	redisClient, err := infraredis.NewRedisClient(cfg.Redis.Addr)
	if err != nil {
		logger.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	bus := infraredis.NewRedisEventBus(redisClient)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// 4. Repositories
	workflowRepo := repository.NewWorkflowRepository(db)
	contextRepo := repository.NewContextRepository(db)
	checkpointRepo := repository.NewCheckpointRepository(db)
	inputRepo := repository.NewInputRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	decisionRepo := repository.NewDecisionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// 5. Services
	validators := service.NewValidatorRegistry()
	workflowSvc := service.NewWorkflowService(workflowRepo, logger)
	contextSvc := service.NewContextService(contextRepo, cfg.Workflow.ContextTokenBudget, logger, m)
	checkpointSvc := service.NewCheckpointService(checkpointRepo, inputRepo, bus, logger, m)
	conflictSvc := service.NewConflictService(conflictRepo, inputRepo, workflowRepo, bus, cfg.Workflow.ConflictTTL, logger, m)
	queueSvc := service.NewQueueService(inputRepo, workflowRepo, conflictSvc, validators, logger, m)
	decisionSvc := service.NewDecisionService(decisionRepo, bus, logger)
	sessionSvc := service.NewSessionService(sessionRepo, bus,
		cfg.Workflow.SessionIdleTimeout, cfg.Workflow.RecoveryWindow, cfg.Workflow.ActivityDebounce, logger, m)

	// 6. Background sweeps
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := worker.NewSweeper(conflictSvc, sessionSvc,
		cfg.Workflow.EscalationInterval, cfg.Workflow.SessionSweep, logger)
	sweeper.Start(ctx)

	// 7. HTTP
	router := gin.Default()
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	h := handler.New(workflowSvc, contextSvc, checkpointSvc, queueSvc, conflictSvc, decisionSvc, sessionSvc)
	h.Register(router.Group("/api/v1"))

	logger.Info("server starting", slog.String("addr", cfg.Server.Addr))
	if err := router.Run(cfg.Server.Addr); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
