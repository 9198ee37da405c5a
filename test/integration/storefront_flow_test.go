package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/storefront/internal/backend/backendtest"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/region"
	"github.com/vladislavdragonenkov/storefront/internal/service/search"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// StorefrontFlowTestSuite проходит путь покупателя от выбора региона до заказа
// через HTTP API, сервисы, outbox и идемпотентность.
type StorefrontFlowTestSuite struct {
	suite.Suite
	backend   *backendtest.Fake
	outbox    *memory.OutboxRepository
	publisher *recordingPublisher
	worker    *outbox.Worker
	handler   http.Handler
}

func (s *StorefrontFlowTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	europe := domain.Region{ID: "reg_eu", Name: "Europe", CurrencyCode: "eur", Countries: []domain.Country{{ISO2: "de"}, {ISO2: "fr"}}}
	s.backend = backendtest.Regions(europe)
	s.backend.CreateCartFn = func(_ context.Context, in domain.CreateCartInput) (domain.Cart, error) {
		return domain.Cart{ID: "cart_1", RegionID: in.RegionID}, nil
	}
	s.backend.CreateLineItemFn = func(_ context.Context, cartID string, in domain.LineItemInput) (domain.Cart, error) {
		return domain.Cart{
			ID:       cartID,
			RegionID: europe.ID,
			Items:    []domain.LineItem{{ID: "li_1", VariantID: in.VariantID, Quantity: in.Quantity}},
		}, nil
	}
	s.backend.CompleteCartFn = func(_ context.Context, cartID string) (domain.CompletionResult, error) {
		return domain.CompletionResult{
			Type: domain.CompletionTypeOrder,
			Order: &domain.Order{
				ID:              "order_1",
				Email:           "buyer@example.com",
				ShippingAddress: &domain.Address{CountryCode: "DE"},
			},
		}, nil
	}

	s.outbox = memory.NewOutboxRepository()
	s.publisher = &recordingPublisher{}
	s.worker = outbox.NewWorker(s.outbox, s.publisher, outbox.WithLogger(logger))

	resolver := region.NewResolver(s.backend, region.WithLogger(logger))
	catalogSvc := catalog.NewService(s.backend, resolver, catalog.DefaultConfig())
	cartSvc := cart.NewService(s.backend, resolver, catalogSvc, session.NewCookieStore(), cart.WithOutbox(s.outbox))
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository())

	s.handler = httpapi.New(httpapi.Services{
		Regions: resolver,
		Catalog: catalogSvc,
		Search:  search.NewService(s.backend, search.DefaultLimit),
		Cart:    cartSvc,
	}, httpapi.WithLogger(logger), httpapi.WithIdempotency(guard.Middleware)).Routes()
}

func (s *StorefrontFlowTestSuite) request(method, path string, body any, cookies []*http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *StorefrontFlowTestSuite) TestCheckoutPublishesEvents() {
	rec := s.request(http.MethodGet, "/api/de/region", nil, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.request(http.MethodPost, "/api/de/cart/line-items", map[string]any{"variant_id": "var_1", "quantity": 1}, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	s.Require().NotEmpty(cookies)

	header := map[string]string{idempotency.HeaderKey: "checkout-1"}
	rec = s.request(http.MethodPost, "/api/cart/complete", nil, cookies, header)
	s.Require().Equal(http.StatusOK, rec.Code)

	var placed map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &placed))
	s.Require().Equal("/de/order/confirmed/order_1", placed["redirect"])

	// Повтор с тем же ключом отдаётся из хранилища, бэкенд не вызывается.
	rec = s.request(http.MethodPost, "/api/cart/complete", nil, cookies, header)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Equal(1, s.backend.Calls("CompleteCart"))

	s.Require().Equal(2, s.worker.ProcessOnce(context.Background()))
	s.Require().Equal([]string{domain.EventTypeCartCreated, domain.EventTypeOrderPlaced}, s.publisher.types())

	stats, err := s.outbox.Stats()
	s.Require().NoError(err)
	s.Require().Zero(stats.PendingCount)
}

func (s *StorefrontFlowTestSuite) TestUnknownCountryUsesFirstRegion() {
	var regionID string
	s.backend.CreateCartFn = func(_ context.Context, in domain.CreateCartInput) (domain.Cart, error) {
		regionID = in.RegionID
		return domain.Cart{ID: "cart_2", RegionID: in.RegionID}, nil
	}

	rec := s.request(http.MethodPost, "/api/zz/cart/line-items", map[string]any{"variant_id": "var_1", "quantity": 1}, nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Equal("reg_eu", regionID)
}

func (s *StorefrontFlowTestSuite) TestNoRegionsDoesNotCreateCart() {
	s.backend.ListRegionsFn = func(context.Context) ([]domain.Region, error) {
		return nil, nil
	}

	rec := s.request(http.MethodPost, "/api/de/cart/line-items", map[string]any{"variant_id": "var_1", "quantity": 1}, nil, nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)
	s.Require().Zero(s.backend.Calls("CreateCart"))
	s.Require().Zero(s.worker.ProcessOnce(context.Background()))
}

func TestStorefrontFlowSuite(t *testing.T) {
	suite.Run(t, new(StorefrontFlowTestSuite))
}

func TestStorefrontFlow_EventPayload(t *testing.T) {
	repo := memory.NewOutboxRepository()
	fake := backendtest.Regions(domain.Region{ID: "reg_eu", Countries: []domain.Country{{ISO2: "de"}}})
	fake.CreateCartFn = func(_ context.Context, in domain.CreateCartInput) (domain.Cart, error) {
		return domain.Cart{ID: "cart_9", RegionID: in.RegionID}, nil
	}
	resolver := region.NewResolver(fake)
	svc := cart.NewService(fake, resolver, catalog.NewService(fake, resolver, catalog.DefaultConfig()), session.NewCookieStore(), cart.WithOutbox(repo))

	_, err := svc.GetOrSetCart(context.Background(), "DE")
	require.NoError(t, err)

	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.AggregateTypeCart, pending[0].AggregateType)

	var event domain.CartEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	require.Equal(t, "cart_9", event.CartID)
	require.Equal(t, "de", event.CountryCode)
}
