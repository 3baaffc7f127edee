package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"

	"github.com/bibbank/microfinance/internal/application/usecase"
	"github.com/bibbank/microfinance/internal/domain/service"
	"github.com/bibbank/microfinance/internal/infrastructure/adapter"
	"github.com/bibbank/microfinance/internal/infrastructure/cache"
	"github.com/bibbank/microfinance/internal/infrastructure/config"
	"github.com/bibbank/microfinance/internal/infrastructure/kafka"
	"github.com/bibbank/microfinance/internal/infrastructure/metrics"
	"github.com/bibbank/microfinance/internal/infrastructure/persistence/postgres"
	grpcPresentation "github.com/bibbank/microfinance/internal/presentation/grpc"
	"github.com/bibbank/microfinance/internal/presentation/rest"
	"github.com/bibbank/microfinance/pkg/auth"
	"github.com/bibbank/microfinance/pkg/events"
	pkgkafka "github.com/bibbank/microfinance/pkg/kafka"
	"github.com/bibbank/microfinance/pkg/observability"
	pkgpostgres "github.com/bibbank/microfinance/pkg/postgres"
	"github.com/bibbank/microfinance/pkg/tlsutil"
)

func main() {
	if err := run(); err != nil {
		slog.Error("loand exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.ServiceName,
	})
	logger.Info("starting loan service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	// Observability.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return err
	}

	// Database.
	dbCfg := pkgpostgres.Config{
		URL:      cfg.DB.URL,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
		SSLMode:  cfg.DB.SSLMode,
		MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec // bounded by configuration
	}
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := pkgpostgres.NewPool(dbCtx, dbCfg)
	dbCancel()
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	if cfg.DB.MigrateOnStart {
		if err := pkgpostgres.RunMigrations(dbCfg.DSN(), postgres.Migrations, postgres.MigrationsDir); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	// Product cache.
	redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Kafka.
	kafkaCfg := pkgkafka.Config{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      cfg.Kafka.ClientID,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		SASLEnabled:   cfg.Kafka.SASLMechanism != "",
		SASLMechanism: cfg.Kafka.SASLMechanism,
		SASLUsername:  cfg.Kafka.SASLUsername,
		SASLPassword:  cfg.Kafka.SASLPassword,
		TLS:           cfg.Kafka.TLS,
	}
	producer, err := pkgkafka.NewProducer(kafkaCfg)
	if err != nil {
		return err
	}

	// Repositories and domain services.
	loanRepo := postgres.NewLoanRepo(pool)
	productRepo := postgres.NewProductRepo(pool)
	productCache := cache.NewProductCache(redisClient, cfg.Redis.TTL)
	clock := adapter.SystemClock{}
	allocator := service.NewAllocationEngine()

	// Use cases.
	uc := grpcPresentation.UseCases{
		Catalog:     usecase.NewProductCatalogUseCase(productRepo, productCache, clock, logger),
		Originate:   usecase.NewOriginateLoanUseCase(loanRepo, productRepo, productCache, adapter.NewClaimsApprovalAuthority(), clock, logger),
		Disburse:    usecase.NewDisburseLoanUseCase(loanRepo, service.NewTrancheManager(), clock),
		Payment:     usecase.NewMakePaymentUseCase(loanRepo, allocator, clock),
		Servicing:   usecase.NewServiceLoanUseCase(loanRepo, clock),
		Restructure: usecase.NewRestructureLoanUseCase(loanRepo, service.NewRestructureEngine(), clock),
		WriteOff:    usecase.NewWriteOffLoanUseCase(loanRepo, service.NewWriteOffEngine(allocator), clock),
		GetLoan:     usecase.NewGetLoanUseCase(loanRepo, clock),
	}

	// Outbox relay: committed events go to Kafka and to the event metrics.
	eventMetrics, err := metrics.NewEventMetrics(otel.Meter("github.com/bibbank/microfinance"))
	if err != nil {
		return err
	}
	dispatcher := events.NewDispatcher()
	dispatcher.Subscribe(events.Wildcard, "kafka", kafka.NewEventPublisher(producer, cfg.Kafka.EventsTopic, logger).Handle)
	dispatcher.Subscribe(events.Wildcard, "metrics", eventMetrics.Handle)
	relay := events.NewRelay(postgres.NewOutboxRepo(pool, 0), dispatcher, events.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	}, logger)

	// Milestone verifications from the field app.
	consumer, err := pkgkafka.NewConsumer(kafkaCfg, cfg.Kafka.MilestonesTopic,
		kafka.NewMilestoneHandler(uc.Disburse, logger).Handle,
		pkgkafka.ConsumerOptions{MaxRetryElapsed: cfg.Kafka.MaxRetryElapsed},
		logger,
	)
	if err != nil {
		return err
	}

	// gRPC server.
	jwtService, err := newJWTService(cfg.JWT)
	if err != nil {
		return err
	}
	grpcServer, err := grpcPresentation.NewServer(grpcPresentation.ServerConfig{
		TLS: tlsutil.ServerConfig{
			CertFile:     cfg.TLS.CertFile,
			KeyFile:      cfg.TLS.KeyFile,
			ClientCAFile: cfg.TLS.CAFile,
		},
		Reflection: cfg.GRPCReflection,
	}, grpcPresentation.NewLoanHandler(uc, logger), jwtService, logger)
	if err != nil {
		return err
	}

	// HTTP server (health checks and metrics).
	mux := http.NewServeMux()
	rest.NewHealthHandler(cfg.ServiceName, map[string]rest.Check{
		"postgres": func(ctx context.Context) error { return pkgpostgres.HealthCheck(ctx, pool) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, logger).RegisterRoutes(mux, metricsHandler)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start everything.
	errCh := make(chan error, 4)
	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("outbox relay: %w", err)
		}
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("milestone consumer: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("component failed, shutting down", "error", runErr)
	}
	cancel()

	// Graceful shutdown.
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	var result *multierror.Error
	if runErr != nil {
		result = multierror.Append(result, runErr)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	if err := consumer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close consumer: %w", err))
	}
	if err := producer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close producer: %w", err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("meter provider shutdown: %w", err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracer shutdown: %w", err))
	}

	logger.Info("loan service stopped")
	return result.ErrorOrNil()
}

// newJWTService builds a validation-only JWT service. A public key wins over
// the shared secret.
func newJWTService(cfg config.JWTConfig) (*auth.JWTService, error) {
	jwtCfg := auth.JWTConfig{Issuer: cfg.Issuer}
	switch {
	case cfg.PublicKeyPEM != "":
		jwtCfg.PublicKeyPEM = cfg.PublicKeyPEM
	case cfg.PublicKeyFile != "":
		key, err := auth.LoadKeyFromFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		jwtCfg.PublicKeyPEM = key
	default:
		jwtCfg.Secret = cfg.Secret
	}
	return auth.NewJWTService(jwtCfg)
}
