// Package catalog собирает данные каталога витрины: страницы товаров,
// коллекции и коллекции с приложенными товарами.
//
// Чтения каталога best-effort: сбой бэкенда логируется и превращается в пустой
// результат, чтобы страница отрисовалась в деградированном виде.
package catalog

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultPageLimit              = 12
	defaultSortFetchLimit         = 100
	defaultCollectionListLimit    = 100
	defaultCollectionProductLimit = 100
)

// Backend — методы бэкенда, которые нужны каталогу.
type Backend interface {
	domain.CatalogBackend
	domain.RegionBackend
}

// RegionResolver определяет регион по коду страны.
type RegionResolver interface {
	Resolve(ctx context.Context, countryCode string) (domain.Region, bool)
}

// Recorder получает события деградации каталога.
type Recorder interface {
	RecordCollectionFetchFailed()
}

// Config задаёт лимиты выборок каталога.
type Config struct {
	// PageLimit — размер страницы по умолчанию.
	PageLimit int
	// SortFetchLimit — сколько товаров забирается для локальной сортировки.
	SortFetchLimit int
	// CollectionListLimit — сколько коллекций запрашивается за раз.
	CollectionListLimit int
	// CollectionProductLimit — сколько товаров прикладывается к каждой коллекции.
	CollectionProductLimit int
	// CollectionConcurrency — сколько коллекций загружается одновременно (1 — последовательно).
	CollectionConcurrency int
}

// DefaultConfig возвращает лимиты по умолчанию.
func DefaultConfig() Config {
	return Config{
		PageLimit:              defaultPageLimit,
		SortFetchLimit:         defaultSortFetchLimit,
		CollectionListLimit:    defaultCollectionListLimit,
		CollectionProductLimit: defaultCollectionProductLimit,
		CollectionConcurrency:  1,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.PageLimit <= 0 {
		c.PageLimit = d.PageLimit
	}
	if c.SortFetchLimit <= 0 {
		c.SortFetchLimit = d.SortFetchLimit
	}
	if c.CollectionListLimit <= 0 {
		c.CollectionListLimit = d.CollectionListLimit
	}
	if c.CollectionProductLimit <= 0 {
		c.CollectionProductLimit = d.CollectionProductLimit
	}
	if c.CollectionConcurrency <= 0 {
		c.CollectionConcurrency = d.CollectionConcurrency
	}
	return c
}

// Service — слой выборки каталога.
type Service struct {
	backend  Backend
	resolver RegionResolver
	cfg      Config
	recorder Recorder
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(backend Backend, resolver RegionResolver, cfg Config, options ...Option) *Service {
	s := &Service{
		backend:  backend,
		resolver: resolver,
		cfg:      cfg.normalized(),
		logger:   log.WithField("component", "catalog"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// region определяет регион, а если цепочка стратегий ничего не дала —
// берёт первый регион из прямого (не кэшируемого) запроса к бэкенду.
func (s *Service) region(ctx context.Context, countryCode string) (domain.Region, bool) {
	if region, ok := s.resolver.Resolve(ctx, countryCode); ok {
		return region, true
	}

	logger := s.logger.WithField("country_code", countryCode)
	logger.Warn("no region resolved, trying first backend region")

	regions, err := s.backend.ListRegions(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to fetch fallback region")
		return domain.Region{}, false
	}
	if len(regions) == 0 {
		return domain.Region{}, false
	}

	logger.WithFields(log.Fields{
		"region_id":   regions[0].ID,
		"region_name": regions[0].Name,
	}).Info("fallback region used")
	return regions[0], true
}
