package app

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestNewGRPCServer_HealthServing(t *testing.T) {
	grpcServer, healthServer := newGRPCServer(log.WithField("test", "grpc"))
	defer grpcServer.Stop()

	resp, err := healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", resp.GetStatus())
	}

	if _, ok := grpcServer.GetServiceInfo()["grpc.health.v1.Health"]; !ok {
		t.Error("health service should be registered")
	}
}

func TestNewGRPCServer_RepeatedRegistration(t *testing.T) {
	// Повторная регистрация метрик не должна паниковать.
	first, _ := newGRPCServer(log.WithField("test", "grpc-first"))
	second, _ := newGRPCServer(log.WithField("test", "grpc-second"))
	first.Stop()
	second.Stop()
}

func TestNewOutboxWorker_WithoutProducer(t *testing.T) {
	worker := newOutboxWorker(DefaultConfig(), memory.NewOutboxRepository(), nil, nil, log.WithField("test", "outbox"))
	if worker != nil {
		t.Error("expected nil worker without kafka producer")
	}
}

func TestShutdownHelpers(t *testing.T) {
	logger := log.WithField("test", "shutdown")

	cancelCalled := false
	done := make(chan struct{})
	close(done)
	shutdownWorkers(func() { cancelCalled = true }, done, logger)
	if !cancelCalled {
		t.Fatal("expected workers cancel func to be called")
	}

	shutdownWorkers(nil, nil, logger)
	drainOutbox(nil, time.Second, logger)
	closeKafkaProducer(nil, logger)
}
