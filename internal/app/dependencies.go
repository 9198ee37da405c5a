package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/region"
	"github.com/vladislavdragonenkov/storefront/internal/service/search"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Dependencies содержит сервисы витрины, собранные поверх клиента бэкенда.
type Dependencies struct {
	Backend *backend.Client
	Regions *region.Resolver
	Catalog *catalog.Service
	Search  *search.Service
	Cart    *cart.Service
	Metrics *metrics.StorefrontMetrics
	Logger  *log.Entry
}

// NewDependencies создаёт клиента бэкенда и сервисы. outbox == nil отключает
// запись событий корзины.
func NewDependencies(cfg Config, outbox domain.OutboxRepository, m *metrics.StorefrontMetrics, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.BackendURL,
		PublishableKey: cfg.BackendPublishableKey,
		UserAgent:      version.UserAgent(),
		Timeout:        cfg.BackendTimeout,
	}, backend.WithObserver(m))
	if err != nil {
		return nil, fmt.Errorf("create commerce backend client: %w", err)
	}

	resolver := region.NewResolver(client,
		region.WithStrategies(region.DefaultStrategies(cfg.FallbackRegionNames()...)...),
		region.WithRecorder(m),
	)

	catalogCfg := catalog.DefaultConfig()
	catalogCfg.CollectionConcurrency = cfg.CollectionConcurrency
	catalogSvc := catalog.NewService(client, resolver, catalogCfg, catalog.WithRecorder(m))

	cartOptions := []cart.Option{cart.WithRecorder(m)}
	if outbox != nil {
		cartOptions = append(cartOptions, cart.WithOutbox(outbox))
	}
	cartSvc := cart.NewService(client, resolver, catalogSvc, session.NewCookieStore(), cartOptions...)

	return &Dependencies{
		Backend: client,
		Regions: resolver,
		Catalog: catalogSvc,
		Search:  search.NewService(client, search.DefaultLimit),
		Cart:    cartSvc,
		Metrics: m,
		Logger:  logger,
	}, nil
}
