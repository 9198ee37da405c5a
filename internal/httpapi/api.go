// Package httpapi — JSON API витрины поверх сервисов регионов, каталога,
// поиска и корзины. Страницы витрины рендерятся клиентом по этим ответам.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
	cartsvc "github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const defaultRequestTimeout = 30 * time.Second

// RegionService — чтение регионов.
type RegionService interface {
	ListRegions(ctx context.Context) ([]domain.Region, error)
	Resolve(ctx context.Context, countryCode string) (domain.Region, bool)
}

// CatalogService — коллекции и товары.
type CatalogService interface {
	CollectionsWithProducts(ctx context.Context, countryCode string) []domain.CollectionWithProducts
	CollectionByHandle(ctx context.Context, handle string) (domain.Collection, bool)
	ListProducts(ctx context.Context, req catalog.ListProductsRequest) catalog.ProductsPage
	ListProductsWithSort(ctx context.Context, req catalog.SortedListRequest) catalog.ProductsPage
	ProductByHandleInCountry(ctx context.Context, handle, countryCode string) (domain.Product, bool, error)
}

// SearchService — поиск по названию.
type SearchService interface {
	LocalSearch(ctx context.Context, query, countryCode string) ([]domain.Product, error)
}

// CartService — операции с корзиной покупателя.
type CartService interface {
	RetrieveCart(ctx context.Context) (domain.Cart, bool)
	EnrichLineItems(ctx context.Context, items []domain.LineItem, regionID string) ([]domain.LineItem, error)
	AddToCart(ctx context.Context, req cartsvc.AddToCartRequest) (cartsvc.AddToCartResult, error)
	UpdateLineItem(ctx context.Context, req cartsvc.UpdateLineItemRequest) (domain.Cart, error)
	DeleteLineItem(ctx context.Context, lineID string) error
	ApplyPromotions(ctx context.Context, codes []string) (domain.Cart, error)
	SetAddresses(ctx context.Context, req cartsvc.SetAddressesRequest) (string, error)
	SetShippingMethod(ctx context.Context, req cartsvc.SetShippingMethodRequest) (domain.Cart, error)
	InitiatePaymentSession(ctx context.Context, req cartsvc.InitiatePaymentRequest) (domain.PaymentCollection, error)
	PlaceOrder(ctx context.Context) (cartsvc.PlaceOrderResult, error)
	UpdateRegion(ctx context.Context, req cartsvc.UpdateRegionRequest) (string, error)
}

// Recorder получает длительность и статус каждого запроса.
type Recorder interface {
	ObserveHTTPRequest(route, method string, status int, duration time.Duration)
}

// Services — зависимости API.
type Services struct {
	Regions RegionService
	Catalog CatalogService
	Search  SearchService
	Cart    CartService
}

// Option настраивает API.
type Option func(*API)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRecorder задаёт получателя метрик запросов.
func WithRecorder(recorder Recorder) Option {
	return func(a *API) {
		a.recorder = recorder
	}
}

// WithCacheRecorder задаёт получателя метрик кэша запроса.
func WithCacheRecorder(recorder reqcache.Recorder) Option {
	return func(a *API) {
		a.cacheRecorder = recorder
	}
}

// WithSession задаёт параметры cookies покупателя.
func WithSession(cfg session.Config) Option {
	return func(a *API) {
		a.session = cfg
	}
}

// WithIdempotency оборачивает оформление заказа в middleware идемпотентности.
func WithIdempotency(mw func(http.Handler) http.Handler) Option {
	return func(a *API) {
		a.idempotency = mw
	}
}

// WithRequestTimeout ограничивает время обработки запроса.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(a *API) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// API обслуживает HTTP-запросы витрины.
type API struct {
	services      Services
	logger        *log.Entry
	recorder      Recorder
	cacheRecorder reqcache.Recorder
	session       session.Config
	idempotency   func(http.Handler) http.Handler
	timeout       time.Duration
}

// New создаёт API.
func New(services Services, options ...Option) *API {
	a := &API{
		services: services,
		logger:   log.WithField("component", "httpapi"),
		timeout:  defaultRequestTimeout,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Routes собирает роутер со всеми маршрутами и middleware.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger, a.recorder))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.timeout))
	r.Use(session.Middleware(a.session))
	r.Use(reqcache.Middleware(a.cacheRecorder))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/regions", a.listRegions)
		r.Post("/region", a.updateRegion)

		r.Post("/cart/line-items/{lineID}", a.updateLineItem)
		r.Delete("/cart/line-items/{lineID}", a.deleteLineItem)
		r.Post("/cart/promotions", a.applyPromotions)
		r.Post("/cart/addresses", a.setAddresses)
		r.Post("/cart/shipping-methods", a.setShippingMethod)
		r.Post("/cart/payment-sessions", a.initiatePaymentSession)
		if a.idempotency != nil {
			r.With(a.idempotency).Post("/cart/complete", a.placeOrder)
		} else {
			r.Post("/cart/complete", a.placeOrder)
		}

		r.Get("/{country}/region", a.resolveRegion)
		r.Get("/{country}/collections", a.listCollections)
		r.Get("/{country}/collections/{handle}", a.collectionPage)
		r.Get("/{country}/products", a.listProducts)
		r.Get("/{country}/products/{handle}", a.productByHandle)
		r.Get("/{country}/search", a.search)
		r.Get("/{country}/cart", a.retrieveCart)
		r.Post("/{country}/cart/line-items", a.addToCart)
	})

	return r
}
