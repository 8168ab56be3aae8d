package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/logsmarket001/api-fidelity-trust/internal/chat"
	"github.com/logsmarket001/api-fidelity-trust/internal/config"
	"github.com/logsmarket001/api-fidelity-trust/internal/controller"
	"github.com/logsmarket001/api-fidelity-trust/internal/database"
	"github.com/logsmarket001/api-fidelity-trust/internal/events"
	"github.com/logsmarket001/api-fidelity-trust/internal/ledger"
	"github.com/logsmarket001/api-fidelity-trust/internal/middleware"
	"github.com/logsmarket001/api-fidelity-trust/internal/monitoring"
	"github.com/logsmarket001/api-fidelity-trust/internal/realtime"
	"github.com/logsmarket001/api-fidelity-trust/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"version": version,
		"port":    cfg.Server.Port,
	}).Info("Starting FidelityTrust API")

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.cleanup()

	router := setupRouter(cfg, deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	cancel()
	logrus.Info("Server exited")
}

type dependencies struct {
	db               *database.Database
	publisher        events.Publisher
	engine           ledger.Engine
	chatService      chat.Service
	chatHub          *realtime.Hub
	notificationsHub *realtime.Hub
	reconciler       *ledger.Reconciler
	metrics          monitoring.MetricsService
	healthChecker    monitoring.HealthChecker
}

func (d *dependencies) cleanup() {
	if d.reconciler != nil {
		d.reconciler.Stop()
	}
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.db.Close(ctx)
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{}

	deps.metrics = monitoring.NewPrometheusMetrics()
	deps.healthChecker = monitoring.NewHealthChecker(version)

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.db = db

	deps.healthChecker.RegisterCheck("storage", monitoring.NewCheckFunc(db.HealthCheck, 5*time.Second))

	if cfg.RabbitMQ.Enabled {
		publisher, err := events.NewPublisher(&events.Config{
			URL:           cfg.RabbitMQ.URL,
			RetryAttempts: cfg.RabbitMQ.RetryAttempts,
			RetryDelay:    cfg.RabbitMQ.RetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		deps.publisher = publisher
	} else {
		logrus.Info("Event publishing disabled, using noop publisher")
		deps.publisher = events.NoopPublisher{}
	}

	deps.chatHub = realtime.NewHub("chat")
	deps.notificationsHub = realtime.NewHub("notifications")
	notifier := realtime.NewNotifier(deps.notificationsHub)

	repos := db.Repositories
	deps.engine = ledger.NewEngine(
		repos.Account,
		repos.Transaction,
		repos.Stock,
		repos.LockManager,
		repos.Idempotency,
		db.TxnRunner(),
		notifier,
		deps.publisher,
		deps.metrics,
		ledger.EngineOptions{
			LockTTL:        cfg.Redis.LockTTL,
			IdempotencyTTL: cfg.Redis.IdempotencyTTL,
		},
	)

	deps.chatService = chat.NewService(repos.Chat, repos.Account, deps.chatHub, notifier, deps.publisher, deps.metrics)

	threshold, err := decimal.NewFromString(cfg.Ledger.ReconciliationThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid reconciliation threshold: %w", err)
	}
	deps.reconciler = ledger.NewReconciler(repos.Account, repos.Transaction, repos.LockManager, threshold, cfg.Ledger.ReconciliationBatchSize)
	if err := deps.reconciler.Start(cfg.Ledger.ReconciliationSchedule); err != nil {
		return nil, fmt.Errorf("failed to start reconciler: %w", err)
	}

	return deps, nil
}

func setupRouter(cfg *config.Config, deps *dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.RequestLogger(logrus.StandardLogger()))
	router.Use(middleware.HTTPMetrics(deps.metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.MaxBodySize(1 << 20))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET(cfg.Monitoring.HealthCheckPath, func(c *gin.Context) {
		health := deps.healthChecker.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	})

	if cfg.Monitoring.EnableMetrics {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	repos := deps.db.Repositories
	auth := middleware.NewAuthMiddleware(cfg.Auth)
	rateLimiter := middleware.NewRateLimitMiddleware(deps.db.RedisDB)

	transactionController := controller.NewTransactionController(deps.engine, repos.Account, repos.Transaction)
	stockController := controller.NewStockController(deps.engine, repos.Stock)
	chatController := controller.NewChatController(deps.chatService)
	wsController := controller.NewWSController(deps.chatHub, deps.notificationsHub, deps.metrics)

	api := router.Group("/api", auth.RequireUser())
	{
		moneyLimit := rateLimiter.PerUser("money", 30, time.Minute)

		transactions := api.Group("/transactions")
		{
			transactions.POST("/fund", moneyLimit, transactionController.FundWallet)
			transactions.POST("/withdraw", moneyLimit, transactionController.Withdraw)
			transactions.POST("/send", moneyLimit, transactionController.SendMoney)
			transactions.GET("", transactionController.ListMine)
			transactions.GET("/:id", transactionController.GetTransaction)
		}

		api.GET("/account/balance", transactionController.GetBalance)

		stocks := api.Group("/stocks")
		{
			stocks.POST("/buy", moneyLimit, stockController.Buy)
			stocks.POST("/sell", moneyLimit, stockController.Sell)
			stocks.GET("/portfolio", stockController.Portfolio)
		}

		chatRoutes := api.Group("/chat")
		{
			chatRoutes.POST("/messages", chatController.SendMessage)
			chatRoutes.GET("/messages", chatController.ListMessages)
			chatRoutes.GET("/unread", chatController.UnreadCount)
			chatRoutes.POST("/read", chatController.MarkRead)
		}
	}

	admin := router.Group("/api/admin", auth.RequireAdmin())
	{
		admin.POST("/accounts", transactionController.CreateAccount)
		admin.GET("/users/:userId/account", transactionController.GetAccount)
		admin.GET("/users/:userId/transactions", transactionController.ListForUser)
		admin.POST("/transactions", transactionController.CreateTransaction)
		admin.PATCH("/transactions/:id", transactionController.UpdateTransaction)
		admin.GET("/transactions", transactionController.ListAll)
		admin.GET("/chat/conversations", chatController.ListConversations)
		admin.GET("/chat/users/:userId/messages", chatController.ListUserMessages)
		admin.POST("/chat/users/:userId/messages", chatController.SendAsAdmin)
		admin.POST("/chat/users/:userId/read", chatController.MarkReadAsAdmin)
	}

	ws := router.Group("/ws", auth.RequireUser())
	{
		ws.GET("/chat", wsController.Chat)
		ws.GET("/notifications", wsController.Notifications)
	}

	return router
}
