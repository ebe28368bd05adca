package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-bridge/config"
	"ticket-bridge/internal/chain"
	"ticket-bridge/internal/gaps"
	"ticket-bridge/internal/handlers"
	"ticket-bridge/internal/notify"
	"ticket-bridge/internal/reconcile"
	"ticket-bridge/internal/store"
	"ticket-bridge/monitoring"
	"ticket-bridge/security"
	"ticket-bridge/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	app := pocketbase.New()

	// Default to serving on PORT when started without a subcommand
	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http=0.0.0.0:" + cfg.Port})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize the contract client
	ethClient, err := chain.Dial(ctx, chainConfig(cfg))
	if err != nil {
		return err
	}
	defer ethClient.Close()

	admin, err := adminAccount(ctx, cfg, ethClient)
	if err != nil {
		return err
	}

	dataStore, err := newStore(cfg, app)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	gasPrice, _ := new(big.Int).SetString(cfg.GasPriceWei, 10)
	gapQueue := gaps.NewQueue(redisClient)
	monitor := monitoring.NewMonitor(gapQueue, cfg.GapMetricsInterval)

	// Initialize services
	service := reconcile.NewService(reconcile.Deps{
		Chain:    ethClient,
		Store:    dataStore,
		Events:   dataStore,
		Gaps:     gapQueue,
		Notifier: notifier,
		Metrics:  monitor,
	}, reconcile.Config{
		Admin:        admin,
		GasLimit:     cfg.GasLimit,
		GasPrice:     gasPrice,
		ChainTimeout: cfg.ChainTimeout,
	})
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	checks := healthChecks(redisClient, ethClient.Health)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(service)
	eventHandler := handlers.NewEventHandler(service)
	adminHandler := handlers.NewAdminHandler(service, map[string]func(context.Context) error{
		"redis": checks["redis"],
		"chain": checks["chain"],
	})

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	// Start background tasks
	if cfg.EnableMetrics {
		go monitor.Run(ctx)
		go serveOps(ctx, monitoring.NewOpsServer(":"+cfg.MetricsPort, checks, limiter.EchoMiddleware()))
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		api := se.Router.Group("/api/v1")

		// Ticket endpoints
		tickets := api.Group("/tickets")
		tickets.GET("", ticketHandler.GetTickets)
		tickets.POST("/mint", ticketHandler.Mint).BindFunc(limiter.Middleware)
		tickets.POST("/buy", ticketHandler.Buy).BindFunc(limiter.Middleware)
		tickets.POST("/list", ticketHandler.List).BindFunc(limiter.Middleware)
		tickets.POST("/cancel", ticketHandler.Cancel).BindFunc(limiter.Middleware)
		tickets.POST("/purchase", ticketHandler.Purchase).BindFunc(limiter.Middleware)
		tickets.POST("/validate", ticketHandler.Validate).BindFunc(limiter.Middleware)

		// Event catalog
		events := api.Group("/events")
		events.GET("", eventHandler.GetEvents)
		events.POST("", eventHandler.CreateEvent).Bind(apis.RequireSuperuserAuth())

		// Admin endpoints
		adminRoutes := api.Group("/admin")
		adminRoutes.Bind(apis.RequireSuperuserAuth())
		adminRoutes.GET("/gaps", adminHandler.GetGaps)
		adminRoutes.POST("/gaps/{gapId}/repair", adminHandler.RepairGap)
		adminRoutes.POST("/withdraw", adminHandler.Withdraw)

		// Health check
		se.Router.GET("/health", adminHandler.Health)

		log.Println("Server routes registered")

		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	// Start server
	return app.Start()
}

// adminAccount picks the signer for mint and withdraw: ADMIN_ADDRESS when
// set, otherwise the node's first unlocked account.
func adminAccount(ctx context.Context, cfg *config.Config, client *chain.EthClient) (common.Address, error) {
	if cfg.AdminAddress != "" {
		return common.HexToAddress(cfg.AdminAddress), nil
	}

	accounts, err := client.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read node accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.New("node has no accounts; set ADMIN_ADDRESS")
	}

	slog.Info("Using node account as admin", "address", accounts[0].Hex())
	return accounts[0], nil
}

// chainConfig waits for receipts as long as a chain call may take, so
// CHAIN_TIMEOUT is not capped by the client's own default.
func chainConfig(cfg *config.Config) chain.Config {
	return chain.Config{
		RPCURL:              cfg.RPCURL,
		ContractAddress:     cfg.ContractAddress,
		ReceiptPollInterval: cfg.ReceiptPollInterval,
		ReceiptTimeout:      cfg.ChainTimeout,
	}
}

func healthChecks(redisClient *redis.Client, chainHealth monitoring.HealthCheck) map[string]monitoring.HealthCheck {
	return map[string]monitoring.HealthCheck{
		"redis": func(ctx context.Context) error { return utils.RedisHealthCheck(ctx, redisClient) },
		"chain": chainHealth,
	}
}

func newStore(cfg *config.Config, app core.App) (store.Store, error) {
	if cfg.StoreDriver == "postgres" {
		return store.OpenPostgres(cfg.PostgresDSN)
	}
	return store.NewPocketBaseStore(app), nil
}

// newNotifier fans out to every configured transport. The returned func
// closes them.
func newNotifier(cfg *config.Config) (notify.Notifier, func(), error) {
	var notifiers notify.Multi
	closers := []func() error{}

	if cfg.PubNubPublishKey != "" {
		notifiers = append(notifiers, notify.NewPubNubNotifier(notify.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}))
	}

	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, amqpNotifier)
		closers = append(closers, amqpNotifier.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close notifier", "error", err)
			}
		}
	}

	if len(notifiers) == 0 {
		slog.Info("No notifier configured")
		return notify.Nop{}, closeAll, nil
	}
	return notifiers, closeAll, nil
}

// serveOps runs the metrics server until ctx is done.
func serveOps(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Ops server shutdown failed", "error", err)
		}
	}()

	slog.Info("Ops server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Ops server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
