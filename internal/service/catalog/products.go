package catalog

import (
	"context"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

// ListProductsRequest — запрос страницы товаров.
type ListProductsRequest struct {
	// Page — номер страницы с 1; значения меньше 1 считаются 1.
	Page int
	// Query накладывается поверх базового запроса (лимит, смещение, регион, поля).
	Query       domain.ProductQuery
	CountryCode string
}

// SortedListRequest — запрос страницы товаров с локальной сортировкой.
type SortedListRequest struct {
	Page   int
	Query  domain.ProductQuery
	SortBy SortOption
	// Less, если задан, используется вместо сортировки SortBy.
	Less        LessFunc
	CountryCode string
}

// ProductsPage — страница товаров. NextPage == nil означает последнюю страницу.
type ProductsPage struct {
	Products []domain.Product    `json:"products"`
	Count    int                 `json:"count"`
	NextPage *int                `json:"next_page"`
	Query    domain.ProductQuery `json:"-"`
}

func emptyPage(query domain.ProductQuery) ProductsPage {
	return ProductsPage{Products: []domain.Product{}, Query: query}
}

// pageWindow возвращает границы [start, end) страницы. Для страниц, смещение
// которых не помещается в int, границы насыщаются до math.MaxInt.
func pageWindow(page, limit int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return 0, 0
	}
	if page-1 > (math.MaxInt-limit)/limit {
		return math.MaxInt - limit, math.MaxInt
	}
	start = (page - 1) * limit
	return start, start + limit
}

func nextPage(page int, hasMore bool) *int {
	if !hasMore {
		return nil
	}
	next := page + 1
	return &next
}

// ListProducts возвращает страницу товаров для страны. Не возвращает ошибок:
// без региона или при сбое бэкенда отдаётся пустая страница.
func (s *Service) ListProducts(ctx context.Context, req ListProductsRequest) ProductsPage {
	region, ok := s.region(ctx, req.CountryCode)
	if !ok {
		s.logger.WithField("country_code", req.CountryCode).Error("no region found, returning empty product list")
		return emptyPage(req.Query)
	}

	page, err := s.listPage(ctx, req.Page, req.Query, region)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"country_code": req.CountryCode,
			"region_id":    region.ID,
		}).Warn("failed to list products")
		return emptyPage(req.Query)
	}
	return page
}

// listPage запрашивает страницу товаров в уже известном регионе.
func (s *Service) listPage(ctx context.Context, page int, query domain.ProductQuery, region domain.Region) (ProductsPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = s.cfg.PageLimit
	}
	if page < 1 {
		page = 1
	}
	offset, end := pageWindow(page, limit)

	base := domain.ProductQuery{
		Limit:    limit,
		Offset:   offset,
		RegionID: region.ID,
		Fields:   domain.ProductPriceFields,
	}

	products, count, err := s.fetchProducts(ctx, base.Merge(query))
	if err != nil {
		return ProductsPage{}, err
	}
	if products == nil {
		products = []domain.Product{}
	}

	s.logger.WithFields(log.Fields{
		"region_id": region.ID,
		"fetched":   len(products),
		"count":     count,
	}).Debug("products fetched")

	return ProductsPage{
		Products: products,
		Count:    count,
		NextPage: nextPage(page, count > end),
		Query:    query,
	}, nil
}

// ListProductsWithSort забирает первые SortFetchLimit товаров одним запросом,
// сортирует их локально и режет нужную страницу. Товары за пределами
// SortFetchLimit в сортировку не попадают.
func (s *Service) ListProductsWithSort(ctx context.Context, req SortedListRequest) ProductsPage {
	limit := req.Query.Limit
	if limit <= 0 {
		limit = s.cfg.PageLimit
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	fetchQuery := req.Query
	fetchQuery.Limit = s.cfg.SortFetchLimit
	fetchQuery.Offset = 0

	all := s.ListProducts(ctx, ListProductsRequest{
		Page:        1,
		Query:       fetchQuery,
		CountryCode: req.CountryCode,
	})

	less := req.Less
	if less == nil {
		less = req.SortBy.Less()
	}
	sorted := make([]domain.Product, len(all.Products))
	copy(sorted, all.Products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	start, end := pageWindow(page, limit)
	products := []domain.Product{}
	if start < len(sorted) {
		products = sorted[start:min(end, len(sorted))]
	}

	return ProductsPage{
		Products: products,
		Count:    all.Count,
		NextPage: nextPage(page, end < all.Count),
		Query:    req.Query,
	}
}

// ProductsByID возвращает товары по идентификаторам с ценами региона.
func (s *Service) ProductsByID(ctx context.Context, ids []string, regionID string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	products, _, err := s.fetchProducts(ctx, domain.ProductQuery{
		IDs:      ids,
		RegionID: regionID,
		Fields:   domain.ProductPriceFields,
	})
	if err != nil {
		return nil, backend.TranslateError(err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// ProductByHandle возвращает товар по handle. false — товара нет.
func (s *Service) ProductByHandle(ctx context.Context, handle, regionID string) (domain.Product, bool, error) {
	products, _, err := s.fetchProducts(ctx, domain.ProductQuery{
		Handle:   handle,
		RegionID: regionID,
		Fields:   domain.ProductPriceFields,
	})
	if err != nil {
		return domain.Product{}, false, backend.TranslateError(err)
	}
	if len(products) == 0 {
		return domain.Product{}, false, nil
	}
	return products[0], true, nil
}

// ProductByHandleInCountry определяет регион страны и ищет в нём товар по handle.
func (s *Service) ProductByHandleInCountry(ctx context.Context, handle, countryCode string) (domain.Product, bool, error) {
	region, ok := s.region(ctx, countryCode)
	if !ok {
		return domain.Product{}, false, domain.ErrRegionNotFound
	}
	return s.ProductByHandle(ctx, handle, region.ID)
}

type productList struct {
	products []domain.Product
	count    int
}

// fetchProducts — единственная точка вызова ListProducts бэкенда; результат
// кэшируется в рамках запроса под тегом "products".
func (s *Service) fetchProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, int, error) {
	res, err := reqcache.Do(ctx, reqcache.Key("listProducts", query), []string{reqcache.TagProducts},
		func(ctx context.Context) (productList, error) {
			products, count, err := s.backend.ListProducts(ctx, query)
			return productList{products: products, count: count}, err
		})
	if err != nil {
		return nil, 0, err
	}
	return res.products, res.count, nil
}
