// Package search — поиск товаров по названию средствами самого бэкенда.
package search

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

// DefaultLimit — сколько товаров возвращает поиск.
const DefaultLimit = 20

// Service ищет товары по названию.
type Service struct {
	backend domain.CatalogBackend
	limit   int
	logger  *log.Entry
}

// NewService создаёт сервис поиска. limit <= 0 означает DefaultLimit.
func NewService(backend domain.CatalogBackend, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{
		backend: backend,
		limit:   limit,
		logger:  log.WithField("component", "search"),
	}
}

// LocalSearch возвращает товары, название которых совпадает с запросом.
// Пустой (после обрезки пробелов) запрос даёт пустой результат без обращения к бэкенду.
// countryCode передаётся для единообразия с остальными чтениями витрины и в запрос не попадает.
func (s *Service) LocalSearch(ctx context.Context, query, countryCode string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}, nil
	}

	q := domain.ProductQuery{Title: query, Limit: s.limit}
	products, err := reqcache.Do(ctx, reqcache.Key("localSearch", q), []string{reqcache.TagProducts},
		func(ctx context.Context) ([]domain.Product, error) {
			products, _, err := s.backend.ListProducts(ctx, q)
			return products, err
		})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"query":        query,
			"country_code": countryCode,
		}).Warn("search failed")
		return nil, backend.TranslateError(err)
	}
	if products == nil {
		return []domain.Product{}, nil
	}
	return products, nil
}
