package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/fulfillment-service/internal/api/http"
	"github.com/spec-kit/fulfillment-service/internal/api/http/handlers"
	"github.com/spec-kit/fulfillment-service/internal/auth"
	"github.com/spec-kit/fulfillment-service/internal/chat"
	"github.com/spec-kit/fulfillment-service/internal/config"
	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/observability"
	"github.com/spec-kit/fulfillment-service/internal/persistence"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	"github.com/spec-kit/fulfillment-service/internal/service"
	"github.com/spec-kit/fulfillment-service/internal/worker"
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

	pool := pg.PoolHandle()
	memberRepo := repository.NewMemberRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	itemRepo := repository.NewItemRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	historyRepo := repository.NewOrderHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	worker.RegisterMetricsSubscriber(dispatcher, metrics)

	var messenger chat.Messenger
	if cfg.Notification.WebhookURL != "" {
		messenger = chat.NewWebhookMessenger(cfg.Notification)
	} else {
		logger.Warn("no notification webhook configured; deliveries go to the log")
		messenger = chat.NewLogMessenger(logger)
	}

	fanout := service.NewNotificationFanout(messenger, cfg.Channels, logger)
	tokens := service.NewRedisActionTokens(redis.Client, cfg.Interaction.ActionTokenTTL())
	roles := service.NewRoleResolver(memberRepo, cfg.Roles)

	guard := service.NewReservationGuard(service.ReservationDependencies{
		ItemRepo:   itemRepo,
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	lifecycle := service.NewOrderLifecycleService(service.LifecycleDependencies{
		OrderRepo:   orderRepo,
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Guard:       guard,
		Fanout:      fanout,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	disputes := service.NewDisputeService(service.DisputeDependencies{
		IssueRepo:  issueRepo,
		Lifecycle:  lifecycle,
		Roles:      roles,
		Fanout:     fanout,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	bindings := service.NewTicketBindingService(service.BindingDependencies{
		TicketRepo: ticketRepo,
		OrderRepo:  orderRepo,
		ItemRepo:   itemRepo,
		Logger:     logger,
	})
	authService := service.NewAuthService(cfg.Auth, memberRepo)

	ledger := worker.NewLedgerWorker(messenger, cfg.Channels.LedgerChannelID, logger)
	ledger.Register(dispatcher)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), memberRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Auth:     authMiddleware,
		Staff:    roles,
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		AuthAPI:  handlers.NewAuthHandler(authService),
		Orders:   handlers.NewOrdersHandler(lifecycle, roles, tokens, logger),
		Disputes: handlers.NewDisputesHandler(disputes, tokens, logger),
		Items:    handlers.NewItemsHandler(guard),
		Tickets:  handlers.NewTicketsHandler(bindings),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
