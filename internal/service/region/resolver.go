// Package region определяет регион коммерческого бэкенда по коду страны.
package region

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

// Recorder получает имя стратегии, выбравшей регион ("none" — регион не найден).
type Recorder interface {
	RecordRegionResolved(strategy string)
}

// Resolver сопоставляет код страны региону по цепочке стратегий.
//
// Карта страна → регион общая для процесса и пересобирается при каждом Resolve
// из актуального списка регионов; при дубликатах кода побеждает последний регион.
type Resolver struct {
	backend    domain.RegionBackend
	strategies []Strategy
	recorder   Recorder
	logger     *log.Entry

	mu        sync.RWMutex
	byCountry map[string]domain.Region
}

// Option настраивает Resolver.
type Option func(*Resolver)

// WithStrategies задаёт цепочку стратегий вместо DefaultStrategies().
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) {
		if len(strategies) > 0 {
			r.strategies = strategies
		}
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(r *Resolver) {
		r.recorder = recorder
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver создаёт Resolver поверх бэкенда регионов.
func NewResolver(backend domain.RegionBackend, options ...Option) *Resolver {
	r := &Resolver{
		backend:    backend,
		strategies: DefaultStrategies(),
		logger:     log.WithField("component", "region-resolver"),
		byCountry:  make(map[string]domain.Region),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// ListRegions возвращает все регионы (кэшируется в рамках запроса, тег "regions").
func (r *Resolver) ListRegions(ctx context.Context) ([]domain.Region, error) {
	regions, err := reqcache.Do(ctx, reqcache.Key("listRegions"), []string{reqcache.TagRegions},
		func(ctx context.Context) ([]domain.Region, error) {
			return r.backend.ListRegions(ctx)
		})
	if err != nil {
		return nil, backend.TranslateError(err)
	}
	return regions, nil
}

// RetrieveRegion возвращает регион по идентификатору (кэшируется, тег "regions").
func (r *Resolver) RetrieveRegion(ctx context.Context, id string) (domain.Region, error) {
	region, err := reqcache.Do(ctx, reqcache.Key("retrieveRegion", id), []string{reqcache.TagRegions},
		func(ctx context.Context) (domain.Region, error) {
			return r.backend.RetrieveRegion(ctx, id)
		})
	if err != nil {
		return domain.Region{}, backend.TranslateError(err)
	}
	return region, nil
}

// Resolve возвращает регион для кода страны. Никогда не возвращает ошибку:
// пустой список регионов или сбой бэкенда дают false.
func (r *Resolver) Resolve(ctx context.Context, countryCode string) (domain.Region, bool) {
	code := domain.NormalizeCountryCode(countryCode)
	logger := r.logger.WithField("country_code", code)

	regions, err := r.ListRegions(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to list regions")
		r.record("none")
		return domain.Region{}, false
	}
	if len(regions) == 0 {
		logger.Warn("no regions configured in commerce backend")
		r.record("none")
		return domain.Region{}, false
	}

	byCountry := r.rebuild(regions)

	for _, strategy := range r.strategies {
		if region, ok := strategy.Pick(code, regions, byCountry); ok {
			logger.WithFields(log.Fields{
				"strategy":  strategy.Name(),
				"region_id": region.ID,
			}).Debug("region resolved")
			r.record(strategy.Name())
			return region, true
		}
	}

	logger.Error("no matching region found")
	r.record("none")
	return domain.Region{}, false
}

// lookup читает общую карту страна → регион без обращения к бэкенду.
func (r *Resolver) lookup(countryCode string) (domain.Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	region, ok := r.byCountry[domain.NormalizeCountryCode(countryCode)]
	return region, ok
}

func (r *Resolver) rebuild(regions []domain.Region) map[string]domain.Region {
	byCountry := make(map[string]domain.Region)
	for _, region := range regions {
		for _, c := range region.Countries {
			code := domain.NormalizeCountryCode(c.ISO2)
			if code == "" {
				continue
			}
			byCountry[code] = region
		}
	}

	r.mu.Lock()
	r.byCountry = byCountry
	r.mu.Unlock()

	return byCountry
}

func (r *Resolver) record(strategy string) {
	if r.recorder != nil {
		r.recorder.RecordRegionResolved(strategy)
	}
}
