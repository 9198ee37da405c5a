package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	cfg := DefaultConfig()
	cfg.KafkaBrokers = " , "
	producer, err := initKafkaProducer(cfg, logger)

	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	// Несуществующие брокеры: витрина продолжает работу без событий.
	cfg := DefaultConfig()
	cfg.KafkaBrokers = "broker1.invalid:9092, broker2.invalid:9092"
	producer, err := initKafkaProducer(cfg, logger)

	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafkaProducer_Nil(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka"))
}
