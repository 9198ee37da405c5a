package app

import (
	"context"
	"errors"
	"net"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run запускает витрину: JSON API, gRPC health, метрики и фоновые воркеры.
// Возвращает ctx.Err() после штатной остановки или первую ошибку серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.close(logger)

	storefrontMetrics := metrics.NewStorefrontMetrics()
	outboxMetrics := metrics.NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
	idempotencyMetrics := metrics.NewIdempotencyMetricsWithRegisterer(prometheus.DefaultRegisterer)
	if runtime.store != nil {
		registerCollector(prometheus.DefaultRegisterer, runtime.store.Collector(), logger)
	}

	// Ошибка уже залогирована: без брокера события просто не пишутся.
	producer, _ := initKafkaProducer(cfg, logger)

	var events domain.OutboxRepository
	if producer != nil {
		events = runtime.outboxRepo
	}
	deps, err := NewDependencies(cfg, events, storefrontMetrics, logger.WithField("layer", "service"))
	if err != nil {
		closeKafkaProducer(producer, logger)
		return err
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("commerce_backend", healthcheck.NewPingChecker("commerce_backend", deps.Backend.Ping))
	if runtime.storageChecker != nil {
		healthHandler.RegisterChecker("storage", runtime.storageChecker)
	}

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	outboxWorker := newOutboxWorker(cfg, runtime.outboxRepo, producer, outboxMetrics, logger)
	cleanupWorker := idempotency.NewCleanupWorker(runtime.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithCleanupRecorder(idempotencyMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMaxBatches(cfg.IdempotencyCleanupMaxBatches),
	)
	go func() {
		defer close(workersDone)
		done := make(chan struct{})
		go func() {
			defer close(done)
			cleanupWorker.Run(workersCtx)
		}()
		if outboxWorker != nil {
			outboxWorker.Run(workersCtx)
		}
		<-done
	}()

	guard := idempotency.NewGuard(runtime.idempotencyRepo,
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithRequestRecorder(idempotencyMetrics),
		idempotency.WithGuardLogger(logger.WithField("layer", "idempotency")),
	)

	errCh := make(chan error, 2)
	apiSrv, err := startHTTPServer(cfg.HTTPAddr, newAPIHandler(cfg, deps, guard), logger, errCh)
	if err != nil {
		shutdownWorkers(cancelWorkers, workersDone, logger)
		closeKafkaProducer(producer, logger)
		return err
	}

	grpcServer, healthServer := newGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(apiSrv, logger)
		shutdownWorkers(cancelWorkers, workersDone, logger)
		closeKafkaProducer(producer, logger)
		return err
	}
	go func() {
		logger.Infof("gRPC health сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	metricsSrv := startMetricsServer(metricsCtx, cfg.MetricsAddr, logger, healthHandler, prometheus.DefaultGatherer)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем витрину")
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			logger.WithError(err).Error("server failed")
			runErr = err
		}
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownHTTP(apiSrv, logger)
	stopGRPC(grpcServer, logger)
	shutdownWorkers(cancelWorkers, workersDone, logger)
	drainOutbox(outboxWorker, cfg.OutboxDrainTimeout, logger)
	closeKafkaProducer(producer, logger)
	shutdownHTTP(metricsSrv, logger)

	return runErr
}

// newOutboxWorker создаёт воркер публикации событий. Без producer'а — nil.
func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, recorder outbox.Recorder, logger *log.Entry) *outbox.Worker {
	if producer == nil {
		return nil
	}
	return outbox.NewWorker(repo,
		kafka.NewOutboxPublisher(producer, kafka.DefaultTopics(), kafka.TopicCartEvents),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithLogger(logger.WithField("worker", "outbox")),
		outbox.WithRecorder(recorder),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// newGRPCServer создаёт gRPC-сервер с health и reflection для probe'ов и grpcurl.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

func stopGRPC(grpcServer *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		grpcServer.Stop()
	}
}

// shutdownWorkers останавливает фоновые воркеры и ждёт их завершения.
func shutdownWorkers(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("background workers stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("background workers did not stop in time")
	}
}

// drainOutbox публикует оставшиеся события перед закрытием producer'а.
func drainOutbox(worker *outbox.Worker, timeout time.Duration, logger *log.Entry) {
	if worker == nil {
		return
	}
	if timeout <= 0 {
		timeout = shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	worker.Drain(ctx)
	logger.Info("outbox drained")
}

func registerCollector(registerer prometheus.Registerer, collector prometheus.Collector, logger *log.Entry) {
	if err := registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			logger.WithError(err).Warn("failed to register collector")
		}
	}
}
