package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ListRegions возвращает все регионы магазина.
func (c *Client) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var out struct {
		Regions []domain.Region `json:"regions"`
	}
	if err := c.do(ctx, "region.list", http.MethodGet, "/store/regions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Regions, nil
}

// RetrieveRegion возвращает регион по идентификатору.
func (c *Client) RetrieveRegion(ctx context.Context, id string) (domain.Region, error) {
	var out struct {
		Region domain.Region `json:"region"`
	}
	if err := c.do(ctx, "region.retrieve", http.MethodGet, "/store/regions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return domain.Region{}, err
	}
	return out.Region, nil
}

// ListCollections возвращает коллекции и их общее количество.
func (c *Client) ListCollections(ctx context.Context, query domain.CollectionQuery) ([]domain.Collection, int, error) {
	values := url.Values{}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Handle != "" {
		values.Set("handle", query.Handle)
	}

	var out struct {
		Collections []domain.Collection `json:"collections"`
		Count       int                 `json:"count"`
	}
	if err := c.do(ctx, "collection.list", http.MethodGet, "/store/collections", values, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Collections, out.Count, nil
}

// ListProducts возвращает страницу товаров и общее количество.
func (c *Client) ListProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, int, error) {
	var out struct {
		Products []domain.Product `json:"products"`
		Count    int              `json:"count"`
	}
	if err := c.do(ctx, "product.list", http.MethodGet, "/store/products", productValues(query), nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Products, out.Count, nil
}

func productValues(query domain.ProductQuery) url.Values {
	values := url.Values{}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.RegionID != "" {
		values.Set("region_id", query.RegionID)
	}
	if query.Fields != "" {
		values.Set("fields", query.Fields)
	}
	for _, id := range query.IDs {
		values.Add("id[]", id)
	}
	if query.Handle != "" {
		values.Set("handle", query.Handle)
	}
	if query.Title != "" {
		values.Set("title", query.Title)
	}
	for _, id := range query.CollectionIDs {
		values.Add("collection_id[]", id)
	}
	if query.Order != "" {
		values.Set("order", query.Order)
	}
	return values
}

type cartEnvelope struct {
	Cart domain.Cart `json:"cart"`
}

// CreateCart создаёт корзину в регионе.
func (c *Client) CreateCart(ctx context.Context, in domain.CreateCartInput) (domain.Cart, error) {
	var out cartEnvelope
	if err := c.do(ctx, "cart.create", http.MethodPost, "/store/carts", nil, in, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// RetrieveCart возвращает корзину по идентификатору.
func (c *Client) RetrieveCart(ctx context.Context, cartID string) (domain.Cart, error) {
	var out cartEnvelope
	if err := c.do(ctx, "cart.retrieve", http.MethodGet, cartPath(cartID), nil, nil, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// UpdateCart частично обновляет корзину.
func (c *Client) UpdateCart(ctx context.Context, cartID string, in domain.UpdateCartInput) (domain.Cart, error) {
	var out cartEnvelope
	if err := c.do(ctx, "cart.update", http.MethodPost, cartPath(cartID), nil, in, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// CreateLineItem добавляет позицию в корзину.
func (c *Client) CreateLineItem(ctx context.Context, cartID string, in domain.LineItemInput) (domain.Cart, error) {
	var out cartEnvelope
	if err := c.do(ctx, "cart.line_item.create", http.MethodPost, cartPath(cartID)+"/line-items", nil, in, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// UpdateLineItem меняет количество позиции.
func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (domain.Cart, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}

	var out cartEnvelope
	path := cartPath(cartID) + "/line-items/" + url.PathEscape(lineID)
	if err := c.do(ctx, "cart.line_item.update", http.MethodPost, path, nil, body, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// DeleteLineItem удаляет позицию из корзины.
func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineID string) error {
	var out struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	path := cartPath(cartID) + "/line-items/" + url.PathEscape(lineID)
	if err := c.do(ctx, "cart.line_item.delete", http.MethodDelete, path, nil, nil, &out); err != nil {
		return err
	}
	if !out.Deleted {
		return &domain.BackendError{Status: http.StatusConflict, Message: "line item was not deleted"}
	}
	return nil
}

// AddShippingMethod выбирает способ доставки для корзины.
func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string) (domain.Cart, error) {
	body := struct {
		OptionID string `json:"option_id"`
	}{OptionID: optionID}

	var out cartEnvelope
	if err := c.do(ctx, "cart.shipping_method.add", http.MethodPost, cartPath(cartID)+"/shipping-methods", nil, body, &out); err != nil {
		return domain.Cart{}, err
	}
	return out.Cart, nil
}

// CompleteCart завершает корзину. Ответ — либо заказ, либо корзина с ошибкой.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (domain.CompletionResult, error) {
	var out domain.CompletionResult
	if err := c.do(ctx, "cart.complete", http.MethodPost, cartPath(cartID)+"/complete", nil, nil, &out); err != nil {
		return domain.CompletionResult{}, err
	}
	switch out.Type {
	case domain.CompletionTypeOrder:
		if out.Order == nil {
			return domain.CompletionResult{}, errors.New("cart.complete: order payload is missing")
		}
	case domain.CompletionTypeCart:
		if out.Cart == nil {
			return domain.CompletionResult{}, errors.New("cart.complete: cart payload is missing")
		}
	default:
		return domain.CompletionResult{}, errors.New("cart.complete: unknown completion type " + strconv.Quote(string(out.Type)))
	}
	return out, nil
}

type paymentCollectionEnvelope struct {
	PaymentCollection domain.PaymentCollection `json:"payment_collection"`
}

// InitiatePaymentSession создаёт платёжную коллекцию корзины (если её ещё нет)
// и инициализирует в ней сессию провайдера.
func (c *Client) InitiatePaymentSession(ctx context.Context, cart domain.Cart, in domain.PaymentSessionInput) (domain.PaymentCollection, error) {
	collectionID := ""
	if cart.PaymentCollection != nil {
		collectionID = cart.PaymentCollection.ID
	}

	if collectionID == "" {
		body := struct {
			CartID string `json:"cart_id"`
		}{CartID: cart.ID}

		var created paymentCollectionEnvelope
		if err := c.do(ctx, "payment_collection.create", http.MethodPost, "/store/payment-collections", nil, body, &created); err != nil {
			return domain.PaymentCollection{}, err
		}
		collectionID = created.PaymentCollection.ID
	}

	var out paymentCollectionEnvelope
	path := "/store/payment-collections/" + url.PathEscape(collectionID) + "/payment-sessions"
	if err := c.do(ctx, "payment_session.initiate", http.MethodPost, path, nil, in, &out); err != nil {
		return domain.PaymentCollection{}, err
	}
	return out.PaymentCollection, nil
}

func cartPath(cartID string) string {
	return "/store/carts/" + url.PathEscape(cartID)
}

var _ domain.CommerceBackend = (*Client)(nil)
