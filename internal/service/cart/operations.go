package cart

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

const addToCartMessage = "Item added to cart"

// RetrieveCart возвращает текущую корзину покупателя. false — корзины нет
// или бэкенд не смог её вернуть.
func (s *Service) RetrieveCart(ctx context.Context) (domain.Cart, bool) {
	id, err := s.cartID(ctx)
	if err != nil {
		return domain.Cart{}, false
	}
	cart, err := s.fetchCart(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("cart_id", id).Warn("failed to retrieve cart")
		return domain.Cart{}, false
	}
	return cart, true
}

func (s *Service) fetchCart(ctx context.Context, id string) (domain.Cart, error) {
	return reqcache.Do(ctx, reqcache.Key("retrieveCart", id), []string{reqcache.TagCart},
		func(ctx context.Context) (domain.Cart, error) {
			return s.backend.RetrieveCart(ctx, id)
		})
}

// GetOrSetCart возвращает корзину покупателя, создавая её при первом обращении.
// Если регион корзины не совпадает с регионом страны, корзина переносится в него.
func (s *Service) GetOrSetCart(ctx context.Context, countryCode string) (cart domain.Cart, err error) {
	defer func() { err = s.finish("get_or_set_cart", err) }()

	cart, found := s.RetrieveCart(ctx)

	region, ok := s.regions.Resolve(ctx, countryCode)
	if !ok {
		return domain.Cart{}, domain.ErrRegionNotFound
	}

	if !found {
		cart, err = s.backend.CreateCart(ctx, domain.CreateCartInput{RegionID: region.ID})
		if err != nil {
			return domain.Cart{}, err
		}
		s.ids.SetCartID(ctx, cart.ID)
		reqcache.Invalidate(ctx, reqcache.TagCart)
		s.logger.WithFields(log.Fields{
			"cart_id":   cart.ID,
			"region_id": region.ID,
		}).Info("cart created")
		s.emit(domain.AggregateTypeCart, cart.ID, domain.EventTypeCartCreated, domain.CartEvent{
			CartID:      cart.ID,
			RegionID:    region.ID,
			CountryCode: domain.NormalizeCountryCode(countryCode),
		})
	}

	if cart.RegionID != region.ID {
		previous := cart.RegionID
		cart, err = s.backend.UpdateCart(ctx, cart.ID, domain.UpdateCartInput{RegionID: region.ID})
		if err != nil {
			return domain.Cart{}, err
		}
		reqcache.Invalidate(ctx, reqcache.TagCart)
		s.emit(domain.AggregateTypeCart, cart.ID, domain.EventTypeCartRegionChanged, domain.CartEvent{
			CartID:      cart.ID,
			RegionID:    region.ID,
			CountryCode: domain.NormalizeCountryCode(countryCode),
			PrevRegion:  previous,
		})
	}

	return cart, nil
}

// UpdateCart частично обновляет текущую корзину.
func (s *Service) UpdateCart(ctx context.Context, in domain.UpdateCartInput) (cart domain.Cart, err error) {
	defer func() { err = s.finish("update_cart", err) }()
	return s.updateCart(ctx, in)
}

func (s *Service) updateCart(ctx context.Context, in domain.UpdateCartInput) (domain.Cart, error) {
	if in.IsEmpty() {
		return domain.Cart{}, domain.ErrEmptyUpdate
	}
	id, err := s.cartID(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err := s.backend.UpdateCart(ctx, id, in)
	if err != nil {
		return domain.Cart{}, err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)
	return cart, nil
}

// AddToCart добавляет вариант товара в корзину страны, создавая корзину при необходимости.
func (s *Service) AddToCart(ctx context.Context, req AddToCartRequest) (res AddToCartResult, err error) {
	if err := req.Validate(); err != nil {
		return AddToCartResult{}, s.finish("add_to_cart", err)
	}

	cart, err := s.GetOrSetCart(ctx, req.CountryCode)
	if err != nil {
		return AddToCartResult{}, err
	}

	defer func() { err = s.finish("add_to_cart", err) }()

	updated, err := s.backend.CreateLineItem(ctx, cart.ID, domain.LineItemInput{
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return AddToCartResult{}, err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)

	return AddToCartResult{
		Success: true,
		Message: addToCartMessage,
		CartID:  cart.ID,
		Cart:    updated,
	}, nil
}

// UpdateLineItem меняет количество позиции текущей корзины.
func (s *Service) UpdateLineItem(ctx context.Context, req UpdateLineItemRequest) (cart domain.Cart, err error) {
	defer func() { err = s.finish("update_line_item", err) }()

	if err := req.Validate(); err != nil {
		return domain.Cart{}, err
	}
	id, err := s.cartID(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err = s.backend.UpdateLineItem(ctx, id, req.LineID, req.Quantity)
	if err != nil {
		return domain.Cart{}, err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)
	return cart, nil
}

// DeleteLineItem удаляет позицию из текущей корзины.
func (s *Service) DeleteLineItem(ctx context.Context, lineID string) (err error) {
	defer func() { err = s.finish("delete_line_item", err) }()

	if strings.TrimSpace(lineID) == "" {
		return domain.ErrLineItemIDRequired
	}
	id, err := s.cartID(ctx)
	if err != nil {
		return err
	}
	if err := s.backend.DeleteLineItem(ctx, id, lineID); err != nil {
		return err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)
	return nil
}

// SetShippingMethod выбирает способ доставки для корзины.
func (s *Service) SetShippingMethod(ctx context.Context, req SetShippingMethodRequest) (cart domain.Cart, err error) {
	defer func() { err = s.finish("set_shipping_method", err) }()

	if err := req.Validate(); err != nil {
		return domain.Cart{}, err
	}
	id := req.CartID
	if id == "" {
		if id, err = s.cartID(ctx); err != nil {
			return domain.Cart{}, err
		}
	}
	cart, err = s.backend.AddShippingMethod(ctx, id, req.ShippingOptionID)
	if err != nil {
		return domain.Cart{}, err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)
	return cart, nil
}

// InitiatePaymentSession инициализирует платёжную сессию провайдера для текущей корзины.
func (s *Service) InitiatePaymentSession(ctx context.Context, req InitiatePaymentRequest) (pc domain.PaymentCollection, err error) {
	defer func() { err = s.finish("initiate_payment_session", err) }()

	if err := req.Validate(); err != nil {
		return domain.PaymentCollection{}, err
	}
	id, err := s.cartID(ctx)
	if err != nil {
		return domain.PaymentCollection{}, err
	}
	cart, err := s.fetchCart(ctx, id)
	if err != nil {
		return domain.PaymentCollection{}, err
	}
	pc, err = s.backend.InitiatePaymentSession(ctx, cart, domain.PaymentSessionInput{
		ProviderID: req.ProviderID,
		Data:       req.Data,
	})
	if err != nil {
		return domain.PaymentCollection{}, err
	}
	reqcache.Invalidate(ctx, reqcache.TagCart)
	return pc, nil
}

// ApplyPromotions заменяет набор промокодов корзины. Пустой список снимает все промокоды.
func (s *Service) ApplyPromotions(ctx context.Context, codes []string) (cart domain.Cart, err error) {
	defer func() { err = s.finish("apply_promotions", err) }()

	cleaned := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			cleaned = append(cleaned, code)
		}
	}
	return s.updateCart(ctx, domain.UpdateCartInput{PromoCodes: cleaned})
}

// SetAddresses сохраняет email и адреса покупателя и возвращает адрес шага доставки.
// При SameAsBilling адрес оплаты копируется из адреса доставки.
func (s *Service) SetAddresses(ctx context.Context, req SetAddressesRequest) (redirect string, err error) {
	defer func() { err = s.finish("set_addresses", err) }()

	if _, err := s.cartID(ctx); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	shipping := req.ShippingAddress
	shipping.CountryCode = domain.NormalizeCountryCode(shipping.CountryCode)

	billing := shipping
	if !req.SameAsBilling {
		billing = *req.BillingAddress
		billing.CountryCode = domain.NormalizeCountryCode(billing.CountryCode)
	}

	if _, err := s.updateCart(ctx, domain.UpdateCartInput{
		Email:           strings.TrimSpace(req.Email),
		ShippingAddress: &shipping,
		BillingAddress:  &billing,
	}); err != nil {
		return "", err
	}

	return "/" + shipping.CountryCode + "/checkout?step=delivery", nil
}

// PlaceOrder завершает текущую корзину. Если бэкенд создал заказ, идентификатор
// корзины удаляется и возвращается адрес страницы подтверждения; иначе корзина
// остаётся активной и возвращается как есть. Переход корзина → заказ необратим.
func (s *Service) PlaceOrder(ctx context.Context) (res PlaceOrderResult, err error) {
	defer func() { err = s.finish("place_order", err) }()

	id, err := s.cartID(ctx)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if s.recorder != nil {
		s.recorder.RecordOrderInFlightStarted()
		defer s.recorder.RecordOrderInFlightFinished()
	}

	completion, err := s.backend.CompleteCart(ctx, id)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if completion.Type != domain.CompletionTypeOrder {
		s.logger.WithField("cart_id", id).Warn("cart completion did not produce an order")
		return PlaceOrderResult{
			Type:  domain.CompletionTypeCart,
			Cart:  completion.Cart,
			Error: completion.Error,
		}, nil
	}

	order := completion.Order
	country := order.CountryCode()

	s.ids.RemoveCartID(ctx)
	reqcache.Invalidate(ctx, reqcache.TagCart)

	s.logger.WithFields(log.Fields{
		"cart_id":  id,
		"order_id": order.ID,
	}).Info("order placed")
	s.emit(domain.AggregateTypeOrder, order.ID, domain.EventTypeOrderPlaced, domain.OrderPlacedEvent{
		OrderID:     order.ID,
		CartID:      id,
		CountryCode: country,
		Email:       order.Email,
	})
	if s.recorder != nil {
		s.recorder.RecordOrderPlaced()
	}

	return PlaceOrderResult{
		Type:     domain.CompletionTypeOrder,
		Order:    order,
		Redirect: confirmationPath(country, order.ID),
	}, nil
}

func confirmationPath(country, orderID string) string {
	if country == "" {
		return "/order/confirmed/" + orderID
	}
	return "/" + country + "/order/confirmed/" + orderID
}

// UpdateRegion переключает покупателя на страну countryCode: переносит корзину
// (если она есть) в регион страны, сбрасывает кэш корзины, регионов и товаров
// и возвращает адрес текущей страницы в новой стране.
func (s *Service) UpdateRegion(ctx context.Context, req UpdateRegionRequest) (redirect string, err error) {
	defer func() { err = s.finish("update_region", err) }()

	if err := req.Validate(); err != nil {
		return "", err
	}
	code := domain.NormalizeCountryCode(req.CountryCode)

	region, ok := s.regions.Resolve(ctx, code)
	if !ok {
		return "", domain.ErrRegionNotFound
	}

	if id, err := s.cartID(ctx); err == nil {
		cart, err := s.updateCart(ctx, domain.UpdateCartInput{RegionID: region.ID})
		if err != nil {
			return "", err
		}
		s.emit(domain.AggregateTypeCart, id, domain.EventTypeCartRegionChanged, domain.CartEvent{
			CartID:      cart.ID,
			RegionID:    region.ID,
			CountryCode: code,
		})
	}

	reqcache.Invalidate(ctx, reqcache.TagCart, reqcache.TagRegions, reqcache.TagProducts)

	path := strings.TrimSpace(req.CurrentPath)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "/" + code + path, nil
}
