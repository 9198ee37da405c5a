package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCartOperations_RequireActiveCart(t *testing.T) {
	f := newFixture("")
	ctx := context.Background()

	_, err := f.svc.UpdateCart(ctx, domain.UpdateCartInput{Email: "a@b.c"})
	require.ErrorIs(t, err, domain.ErrNoActiveCart)
	require.Equal(t, "no cart found", err.Error())

	_, err = f.svc.UpdateLineItem(ctx, UpdateLineItemRequest{LineID: "li", Quantity: 1})
	require.ErrorIs(t, err, domain.ErrNoActiveCart)

	require.ErrorIs(t, f.svc.DeleteLineItem(ctx, "li"), domain.ErrNoActiveCart)

	_, err = f.svc.SetShippingMethod(ctx, SetShippingMethodRequest{ShippingOptionID: "so"})
	require.ErrorIs(t, err, domain.ErrNoActiveCart)

	_, err = f.svc.InitiatePaymentSession(ctx, InitiatePaymentRequest{ProviderID: "pp"})
	require.ErrorIs(t, err, domain.ErrNoActiveCart)

	_, err = f.svc.ApplyPromotions(ctx, []string{"SALE"})
	require.ErrorIs(t, err, domain.ErrNoActiveCart)

	_, err = f.svc.PlaceOrder(ctx)
	require.ErrorIs(t, err, domain.ErrNoActiveCart)

	require.Zero(t, f.fake.Calls("UpdateCart"))
	require.Zero(t, f.fake.Calls("CompleteCart"))
}

func TestUpdateCart_EmptyUpdateRejected(t *testing.T) {
	f := newFixture("c1")
	_, err := f.svc.UpdateCart(context.Background(), domain.UpdateCartInput{})
	require.ErrorIs(t, err, domain.ErrEmptyUpdate)
}

func TestUpdateAndDeleteLineItem(t *testing.T) {
	f := newFixture("c1")
	f.fake.UpdateLineItemFn = func(_ context.Context, cartID, lineID string, qty int) (domain.Cart, error) {
		require.Equal(t, "c1", cartID)
		require.Equal(t, "li_1", lineID)
		require.Equal(t, 3, qty)
		return domain.Cart{ID: cartID}, nil
	}
	f.fake.DeleteLineItemFn = func(_ context.Context, cartID, lineID string) error {
		require.Equal(t, "li_1", lineID)
		return nil
	}

	cart, err := f.svc.UpdateLineItem(context.Background(), UpdateLineItemRequest{LineID: "li_1", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, "c1", cart.ID)

	require.NoError(t, f.svc.DeleteLineItem(context.Background(), "li_1"))
	require.ErrorIs(t, f.svc.DeleteLineItem(context.Background(), " "), domain.ErrLineItemIDRequired)

	_, err = f.svc.UpdateLineItem(context.Background(), UpdateLineItemRequest{LineID: "li_1"})
	require.ErrorIs(t, err, domain.ErrQuantityInvalid)
}

func TestSetShippingMethod_ExplicitCartID(t *testing.T) {
	f := newFixture("")
	f.fake.AddShippingMethodFn = func(_ context.Context, cartID, optionID string) (domain.Cart, error) {
		require.Equal(t, "c9", cartID)
		require.Equal(t, "so_1", optionID)
		return domain.Cart{ID: cartID, ShippingMethods: []domain.ShippingMethod{{ID: "sm_1", ShippingOptionID: optionID}}}, nil
	}

	cart, err := f.svc.SetShippingMethod(context.Background(), SetShippingMethodRequest{CartID: "c9", ShippingOptionID: "so_1"})
	require.NoError(t, err)
	require.Len(t, cart.ShippingMethods, 1)

	_, err = f.svc.SetShippingMethod(context.Background(), SetShippingMethodRequest{CartID: "c9"})
	require.ErrorIs(t, err, domain.ErrShippingOptionRequired)
}

func TestInitiatePaymentSession(t *testing.T) {
	f := newFixture("c1")
	f.fake.RetrieveCartFn = func(context.Context, string) (domain.Cart, error) {
		return domain.Cart{ID: "c1"}, nil
	}
	f.fake.InitiatePaymentSessionFn = func(_ context.Context, cart domain.Cart, in domain.PaymentSessionInput) (domain.PaymentCollection, error) {
		require.Equal(t, "c1", cart.ID)
		require.Equal(t, "pp_stripe", in.ProviderID)
		return domain.PaymentCollection{ID: "pc_1"}, nil
	}

	pc, err := f.svc.InitiatePaymentSession(context.Background(), InitiatePaymentRequest{ProviderID: "pp_stripe"})
	require.NoError(t, err)
	require.Equal(t, "pc_1", pc.ID)

	_, err = f.svc.InitiatePaymentSession(context.Background(), InitiatePaymentRequest{})
	require.ErrorIs(t, err, domain.ErrPaymentProviderRequired)
}

func TestApplyPromotions_EmptyListClearsCodes(t *testing.T) {
	f := newFixture("c1")
	var got domain.UpdateCartInput
	f.fake.UpdateCartFn = func(_ context.Context, id string, in domain.UpdateCartInput) (domain.Cart, error) {
		got = in
		return domain.Cart{ID: id}, nil
	}

	_, err := f.svc.ApplyPromotions(context.Background(), []string{" SALE ", ""})
	require.NoError(t, err)
	require.Equal(t, []string{"SALE"}, got.PromoCodes)

	_, err = f.svc.ApplyPromotions(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, got.PromoCodes)
	require.Empty(t, got.PromoCodes)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"promo_codes":[]}`, string(body))
}

func validAddress(country string) domain.Address {
	return domain.Address{
		FirstName:   "Tendai",
		LastName:    "Moyo",
		Address1:    "1 Samora Machel Ave",
		City:        "Harare",
		CountryCode: country,
	}
}

func TestSetAddresses_SameAsBilling(t *testing.T) {
	f := newFixture("c1")
	var got domain.UpdateCartInput
	f.fake.UpdateCartFn = func(_ context.Context, id string, in domain.UpdateCartInput) (domain.Cart, error) {
		got = in
		return domain.Cart{ID: id}, nil
	}

	redirect, err := f.svc.SetAddresses(context.Background(), SetAddressesRequest{
		Email:           "buyer@example.com",
		ShippingAddress: validAddress("ZW"),
		SameAsBilling:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "/zw/checkout?step=delivery", redirect)
	require.Equal(t, "buyer@example.com", got.Email)
	require.Equal(t, "zw", got.ShippingAddress.CountryCode)
	require.Equal(t, *got.ShippingAddress, *got.BillingAddress)
}

func TestSetAddresses_SeparateBilling(t *testing.T) {
	f := newFixture("c1")
	var got domain.UpdateCartInput
	f.fake.UpdateCartFn = func(_ context.Context, id string, in domain.UpdateCartInput) (domain.Cart, error) {
		got = in
		return domain.Cart{ID: id}, nil
	}

	billing := validAddress("gh")
	billing.City = "Accra"
	_, err := f.svc.SetAddresses(context.Background(), SetAddressesRequest{
		Email:           "buyer@example.com",
		ShippingAddress: validAddress("zw"),
		BillingAddress:  &billing,
	})
	require.NoError(t, err)
	require.Equal(t, "Accra", got.BillingAddress.City)
	require.Equal(t, "Harare", got.ShippingAddress.City)
}

func TestSetAddresses_Validation(t *testing.T) {
	f := newFixture("c1")
	ctx := context.Background()

	_, err := f.svc.SetAddresses(ctx, SetAddressesRequest{ShippingAddress: validAddress("zw"), SameAsBilling: true})
	require.ErrorIs(t, err, domain.ErrEmailRequired)

	_, err = f.svc.SetAddresses(ctx, SetAddressesRequest{Email: "a@b.c", ShippingAddress: domain.Address{CountryCode: "zw"}, SameAsBilling: true})
	require.ErrorIs(t, err, domain.ErrAddressIncomplete)

	_, err = f.svc.SetAddresses(ctx, SetAddressesRequest{Email: "a@b.c", ShippingAddress: validAddress("zw")})
	require.ErrorIs(t, err, domain.ErrAddressIncomplete)

	require.Zero(t, f.fake.Calls("UpdateCart"))
}

func TestPlaceOrder_OrderCreated(t *testing.T) {
	f := newFixture("c1")
	f.fake.CompleteCartFn = func(_ context.Context, id string) (domain.CompletionResult, error) {
		require.Equal(t, "c1", id)
		return domain.CompletionResult{
			Type: domain.CompletionTypeOrder,
			Order: &domain.Order{
				ID:              "order_1",
				Email:           "buyer@example.com",
				ShippingAddress: &domain.Address{CountryCode: "ZW"},
				Total:           decimal.NewFromInt(42),
			},
		}, nil
	}

	res, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.CompletionTypeOrder, res.Type)
	require.Equal(t, "/zw/order/confirmed/order_1", res.Redirect)
	require.Empty(t, f.ids.id)
	require.Equal(t, 1, f.recorder.placed)
	require.Zero(t, f.recorder.inFlight)
	require.Equal(t, []string{domain.EventTypeOrderPlaced}, f.outbox.eventTypes())

	var payload domain.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(f.outbox.messages[0].Payload, &payload))
	require.Equal(t, "order_1", payload.OrderID)
	require.Equal(t, "c1", payload.CartID)
	require.Equal(t, "zw", payload.CountryCode)
}

func TestPlaceOrder_CartRemains(t *testing.T) {
	f := newFixture("c1")
	f.fake.CompleteCartFn = func(context.Context, string) (domain.CompletionResult, error) {
		return domain.CompletionResult{
			Type:  domain.CompletionTypeCart,
			Cart:  &domain.Cart{ID: "c1"},
			Error: &domain.BackendError{Message: "payment authorization failed"},
		}, nil
	}

	res, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.CompletionTypeCart, res.Type)
	require.Equal(t, "c1", res.Cart.ID)
	require.Equal(t, "payment authorization failed", res.Error.Message)
	require.Empty(t, res.Redirect)
	require.Equal(t, "c1", f.ids.id)
	require.Empty(t, f.outbox.eventTypes())
}

func TestPlaceOrder_BackendFailureKeepsCart(t *testing.T) {
	f := newFixture("c1")
	f.fake.CompleteCartFn = func(context.Context, string) (domain.CompletionResult, error) {
		return domain.CompletionResult{}, errors.New("dial tcp: connection refused")
	}

	_, err := f.svc.PlaceOrder(context.Background())
	be, ok := domain.AsBackendError(err)
	require.True(t, ok)
	require.Contains(t, be.Message, "Error setting up the request")
	require.Equal(t, "c1", f.ids.id)
	require.Equal(t, 1, f.recorder.failed["place_order"])
}

func TestPlaceOrder_OutboxFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture("c1")
	f.outbox.err = errors.New("outbox full")
	f.fake.CompleteCartFn = func(context.Context, string) (domain.CompletionResult, error) {
		return domain.CompletionResult{Type: domain.CompletionTypeOrder, Order: &domain.Order{ID: "o1"}}, nil
	}

	res, err := f.svc.PlaceOrder(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/order/confirmed/o1", res.Redirect)
}

func TestUpdateRegion(t *testing.T) {
	f := newFixture("c1")
	f.fake.UpdateCartFn = func(_ context.Context, id string, in domain.UpdateCartInput) (domain.Cart, error) {
		require.Equal(t, "reg_gh", in.RegionID)
		return domain.Cart{ID: id, RegionID: in.RegionID}, nil
	}

	redirect, err := f.svc.UpdateRegion(context.Background(), UpdateRegionRequest{CountryCode: "GH", CurrentPath: "store"})
	require.NoError(t, err)
	require.Equal(t, "/gh/store", redirect)
	require.Equal(t, []string{domain.EventTypeCartRegionChanged}, f.outbox.eventTypes())

	f = newFixture("")
	redirect, err = f.svc.UpdateRegion(context.Background(), UpdateRegionRequest{CountryCode: "zw", CurrentPath: "/cart"})
	require.NoError(t, err)
	require.Equal(t, "/zw/cart", redirect)
	require.Zero(t, f.fake.Calls("UpdateCart"))

	_, err = f.svc.UpdateRegion(context.Background(), UpdateRegionRequest{CountryCode: "fr"})
	require.ErrorIs(t, err, domain.ErrRegionNotFound)

	_, err = f.svc.UpdateRegion(context.Background(), UpdateRegionRequest{})
	require.ErrorIs(t, err, domain.ErrCountryCodeRequired)
}

func TestEnrichLineItems(t *testing.T) {
	f := newFixture("c1")
	f.products.products = []domain.Product{{
		ID:     "p1",
		Title:  "Shirt",
		Handle: "shirt",
		Variants: []domain.Variant{{
			ID:              "v1",
			CalculatedPrice: &domain.CalculatedPrice{CalculatedAmount: decimal.NewFromInt(10)},
		}},
	}}

	items := []domain.LineItem{
		{ID: "li_1", ProductID: "p1", VariantID: "v1"},
		{ID: "li_2", ProductID: "p1", VariantID: "v_missing"},
		{ID: "li_3", ProductID: "p2", VariantID: "v2"},
	}
	got, err := f.svc.EnrichLineItems(context.Background(), items, "reg_zw")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"p1", "p2"}, f.products.gotIDs)

	require.NotNil(t, got[0].Variant)
	require.Equal(t, "v1", got[0].Variant.ID)
	require.Equal(t, "Shirt", got[0].Variant.Product.Title)
	require.Nil(t, got[1].Variant)
	require.Nil(t, got[2].Variant)
	require.Nil(t, items[0].Variant)

	empty, err := f.svc.EnrichLineItems(context.Background(), nil, "reg_zw")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
