// Package backendtest содержит управляемую in-memory подмену коммерческого бэкенда для тестов.
package backendtest

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrNotConfigured возвращается методом, для которого не задан обработчик.
var ErrNotConfigured = errors.New("backendtest: handler not configured")

// Fake реализует domain.CommerceBackend через функции-обработчики и считает вызовы.
type Fake struct {
	ListRegionsFn            func(ctx context.Context) ([]domain.Region, error)
	RetrieveRegionFn         func(ctx context.Context, id string) (domain.Region, error)
	ListCollectionsFn        func(ctx context.Context, query domain.CollectionQuery) ([]domain.Collection, int, error)
	ListProductsFn           func(ctx context.Context, query domain.ProductQuery) ([]domain.Product, int, error)
	CreateCartFn             func(ctx context.Context, in domain.CreateCartInput) (domain.Cart, error)
	RetrieveCartFn           func(ctx context.Context, cartID string) (domain.Cart, error)
	UpdateCartFn             func(ctx context.Context, cartID string, in domain.UpdateCartInput) (domain.Cart, error)
	CreateLineItemFn         func(ctx context.Context, cartID string, in domain.LineItemInput) (domain.Cart, error)
	UpdateLineItemFn         func(ctx context.Context, cartID, lineID string, quantity int) (domain.Cart, error)
	DeleteLineItemFn         func(ctx context.Context, cartID, lineID string) error
	AddShippingMethodFn      func(ctx context.Context, cartID, optionID string) (domain.Cart, error)
	CompleteCartFn           func(ctx context.Context, cartID string) (domain.CompletionResult, error)
	InitiatePaymentSessionFn func(ctx context.Context, cart domain.Cart, in domain.PaymentSessionInput) (domain.PaymentCollection, error)

	mu             sync.Mutex
	calls          map[string]int
	productQueries []domain.ProductQuery
}

// Regions возвращает Fake, отдающий фиксированный список регионов.
func Regions(regions ...domain.Region) *Fake {
	return &Fake{
		ListRegionsFn: func(context.Context) ([]domain.Region, error) {
			return regions, nil
		},
	}
}

func (f *Fake) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls возвращает количество вызовов метода.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// ProductQueries возвращает запросы ListProducts в порядке поступления.
func (f *Fake) ProductQueries() []domain.ProductQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ProductQuery, len(f.productQueries))
	copy(out, f.productQueries)
	return out
}

// ListRegions реализует domain.RegionBackend.
func (f *Fake) ListRegions(ctx context.Context) ([]domain.Region, error) {
	f.hit("ListRegions")
	if f.ListRegionsFn == nil {
		return nil, ErrNotConfigured
	}
	return f.ListRegionsFn(ctx)
}

// RetrieveRegion реализует domain.RegionBackend.
func (f *Fake) RetrieveRegion(ctx context.Context, id string) (domain.Region, error) {
	f.hit("RetrieveRegion")
	if f.RetrieveRegionFn == nil {
		return domain.Region{}, ErrNotConfigured
	}
	return f.RetrieveRegionFn(ctx, id)
}

// ListCollections реализует domain.CatalogBackend.
func (f *Fake) ListCollections(ctx context.Context, query domain.CollectionQuery) ([]domain.Collection, int, error) {
	f.hit("ListCollections")
	if f.ListCollectionsFn == nil {
		return nil, 0, ErrNotConfigured
	}
	return f.ListCollectionsFn(ctx, query)
}

// ListProducts реализует domain.CatalogBackend.
func (f *Fake) ListProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, int, error) {
	f.hit("ListProducts")
	f.mu.Lock()
	f.productQueries = append(f.productQueries, query)
	f.mu.Unlock()
	if f.ListProductsFn == nil {
		return nil, 0, ErrNotConfigured
	}
	return f.ListProductsFn(ctx, query)
}

// CreateCart реализует domain.CartBackend.
func (f *Fake) CreateCart(ctx context.Context, in domain.CreateCartInput) (domain.Cart, error) {
	f.hit("CreateCart")
	if f.CreateCartFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.CreateCartFn(ctx, in)
}

// RetrieveCart реализует domain.CartBackend.
func (f *Fake) RetrieveCart(ctx context.Context, cartID string) (domain.Cart, error) {
	f.hit("RetrieveCart")
	if f.RetrieveCartFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.RetrieveCartFn(ctx, cartID)
}

// UpdateCart реализует domain.CartBackend.
func (f *Fake) UpdateCart(ctx context.Context, cartID string, in domain.UpdateCartInput) (domain.Cart, error) {
	f.hit("UpdateCart")
	if f.UpdateCartFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.UpdateCartFn(ctx, cartID, in)
}

// CreateLineItem реализует domain.CartBackend.
func (f *Fake) CreateLineItem(ctx context.Context, cartID string, in domain.LineItemInput) (domain.Cart, error) {
	f.hit("CreateLineItem")
	if f.CreateLineItemFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.CreateLineItemFn(ctx, cartID, in)
}

// UpdateLineItem реализует domain.CartBackend.
func (f *Fake) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (domain.Cart, error) {
	f.hit("UpdateLineItem")
	if f.UpdateLineItemFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.UpdateLineItemFn(ctx, cartID, lineID, quantity)
}

// DeleteLineItem реализует domain.CartBackend.
func (f *Fake) DeleteLineItem(ctx context.Context, cartID, lineID string) error {
	f.hit("DeleteLineItem")
	if f.DeleteLineItemFn == nil {
		return ErrNotConfigured
	}
	return f.DeleteLineItemFn(ctx, cartID, lineID)
}

// AddShippingMethod реализует domain.CartBackend.
func (f *Fake) AddShippingMethod(ctx context.Context, cartID, optionID string) (domain.Cart, error) {
	f.hit("AddShippingMethod")
	if f.AddShippingMethodFn == nil {
		return domain.Cart{}, ErrNotConfigured
	}
	return f.AddShippingMethodFn(ctx, cartID, optionID)
}

// CompleteCart реализует domain.CartBackend.
func (f *Fake) CompleteCart(ctx context.Context, cartID string) (domain.CompletionResult, error) {
	f.hit("CompleteCart")
	if f.CompleteCartFn == nil {
		return domain.CompletionResult{}, ErrNotConfigured
	}
	return f.CompleteCartFn(ctx, cartID)
}

// InitiatePaymentSession реализует domain.PaymentBackend.
func (f *Fake) InitiatePaymentSession(ctx context.Context, cart domain.Cart, in domain.PaymentSessionInput) (domain.PaymentCollection, error) {
	f.hit("InitiatePaymentSession")
	if f.InitiatePaymentSessionFn == nil {
		return domain.PaymentCollection{}, ErrNotConfigured
	}
	return f.InitiatePaymentSessionFn(ctx, cart, in)
}

var _ domain.CommerceBackend = (*Fake)(nil)
