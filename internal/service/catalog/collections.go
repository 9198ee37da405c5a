package catalog

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

type collectionList struct {
	collections []domain.Collection
	count       int
}

func (s *Service) fetchCollections(ctx context.Context, query domain.CollectionQuery) ([]domain.Collection, error) {
	res, err := reqcache.Do(ctx, reqcache.Key("listCollections", query), []string{reqcache.TagCollections},
		func(ctx context.Context) (collectionList, error) {
			collections, count, err := s.backend.ListCollections(ctx, query)
			return collectionList{collections: collections, count: count}, err
		})
	if err != nil {
		return nil, err
	}
	return res.collections, nil
}

// ListCollections возвращает все коллекции. При ошибке бэкенда — пустой список.
func (s *Service) ListCollections(ctx context.Context) []domain.Collection {
	collections, err := s.fetchCollections(ctx, domain.CollectionQuery{Limit: s.cfg.CollectionListLimit})
	if err != nil {
		s.logger.WithError(err).Warn("failed to list collections")
		return []domain.Collection{}
	}
	if collections == nil {
		return []domain.Collection{}
	}
	return collections
}

// CollectionByHandle возвращает коллекцию по handle. false — коллекции нет
// или бэкенд недоступен.
func (s *Service) CollectionByHandle(ctx context.Context, handle string) (domain.Collection, bool) {
	collections, err := s.fetchCollections(ctx, domain.CollectionQuery{Handle: handle, Limit: 1})
	if err != nil {
		s.logger.WithError(err).WithField("handle", handle).Warn("failed to get collection by handle")
		return domain.Collection{}, false
	}
	if len(collections) == 0 {
		return domain.Collection{}, false
	}
	return collections[0], true
}

// CollectionsWithProducts возвращает коллекции с первой страницей товаров каждой.
// Не возвращает ошибок: без региона — пустой список без запросов товаров,
// сбой загрузки товаров коллекции даёт этой коллекции пустой список товаров.
// Коллекции загружаются не более чем по CollectionConcurrency одновременно,
// порядок результата совпадает с порядком коллекций.
func (s *Service) CollectionsWithProducts(ctx context.Context, countryCode string) []domain.CollectionWithProducts {
	logger := s.logger.WithField("country_code", countryCode)

	region, ok := s.resolver.Resolve(ctx, countryCode)
	if !ok || region.ID == "" {
		logger.Warn("collections with products: missing region")
		return []domain.CollectionWithProducts{}
	}

	collections, err := s.fetchCollections(ctx, domain.CollectionQuery{Limit: s.cfg.CollectionListLimit})
	if err != nil {
		logger.WithError(err).Warn("collections with products: failed to list collections")
		return []domain.CollectionWithProducts{}
	}
	if len(collections) == 0 {
		logger.Warn("collections with products: no collections")
		return []domain.CollectionWithProducts{}
	}

	results := make([]domain.CollectionWithProducts, len(collections))

	var g errgroup.Group
	g.SetLimit(s.cfg.CollectionConcurrency)
	for i, collection := range collections {
		g.Go(func() error {
			results[i] = s.collectionWithProducts(ctx, collection, region, logger)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) collectionWithProducts(ctx context.Context, collection domain.Collection, region domain.Region, logger *log.Entry) domain.CollectionWithProducts {
	page, err := s.listPage(ctx, 1, domain.ProductQuery{
		CollectionIDs: []string{collection.ID},
		RegionID:      region.ID,
		Limit:         s.cfg.CollectionProductLimit,
	}, region)
	if err != nil {
		logger.WithError(err).WithField("collection_id", collection.ID).Warn("failed to fetch collection products")
		if s.recorder != nil {
			s.recorder.RecordCollectionFetchFailed()
		}
		return domain.CollectionWithProducts{Collection: collection, Products: []domain.Product{}}
	}
	return domain.CollectionWithProducts{Collection: collection, Products: page.Products}
}
