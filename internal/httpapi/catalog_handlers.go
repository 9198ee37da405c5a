package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

const maxPageLimit = 100

func (a *API) listRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := a.services.Regions.ListRegions(r.Context())
	if err != nil {
		a.fail(w, r, backend.TranslateError(err))
		return
	}
	if regions == nil {
		regions = []domain.Region{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func (a *API) resolveRegion(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	region, ok := a.services.Regions.Resolve(r.Context(), code)
	if !ok {
		a.fail(w, r, domain.ErrRegionNotFound)
		return
	}
	// country_served=false: регион выбран запасной стратегией.
	writeJSON(w, http.StatusOK, map[string]any{"region": region, "country_served": region.HasCountry(code)})
}

func (a *API) listCollections(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	collections := a.services.Catalog.CollectionsWithProducts(r.Context(), code)
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

// collectionPage отдаёт коллекцию и отсортированную страницу её товаров.
func (a *API) collectionPage(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := intParam(r, "page", 1, 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sortBy, err := sortParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	handle := chi.URLParam(r, "handle")
	collection, ok := a.services.Catalog.CollectionByHandle(r.Context(), handle)
	if !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	products := a.services.Catalog.ListProductsWithSort(r.Context(), catalog.SortedListRequest{
		Page:        page,
		Query:       domain.ProductQuery{CollectionIDs: []string{collection.ID}},
		SortBy:      sortBy,
		CountryCode: code,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection,
		"products":   products.Products,
		"count":      products.Count,
		"next_page":  products.NextPage,
	})
}

// listProducts без sort_by отдаёт страницу в порядке бэкенда,
// с sort_by — страницу после локальной сортировки.
func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := intParam(r, "page", 1, 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0, maxPageLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	query := domain.ProductQuery{Limit: limit}

	if strings.TrimSpace(r.URL.Query().Get("sort_by")) == "" {
		writeJSON(w, http.StatusOK, a.services.Catalog.ListProducts(r.Context(), catalog.ListProductsRequest{
			Page:        page,
			Query:       query,
			CountryCode: code,
		}))
		return
	}

	sortBy, err := sortParam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.services.Catalog.ListProductsWithSort(r.Context(), catalog.SortedListRequest{
		Page:        page,
		Query:       query,
		SortBy:      sortBy,
		CountryCode: code,
	}))
}

func (a *API) productByHandle(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	product, ok, err := a.services.Catalog.ProductByHandleInCountry(r.Context(), chi.URLParam(r, "handle"), code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	products, err := a.services.Search.LocalSearch(r.Context(), r.URL.Query().Get("q"), code)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func sortParam(r *http.Request) (catalog.SortOption, error) {
	raw := r.URL.Query().Get("sort_by")
	sortBy, ok := catalog.ParseSortOption(raw)
	if !ok {
		return "", badRequest("unsupported sort_by %q", raw)
	}
	return sortBy, nil
}
