package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	cartsvc "github.com/vladislavdragonenkov/storefront/internal/service/cart"
)

// retrieveCart отдаёт корзину с обогащёнными позициями; без корзины — cart: null.
func (a *API) retrieveCart(w http.ResponseWriter, r *http.Request) {
	if _, err := countryCode(r); err != nil {
		a.fail(w, r, err)
		return
	}

	cart, ok := a.services.Cart.RetrieveCart(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"cart": nil})
		return
	}

	if len(cart.Items) > 0 {
		items, err := a.services.Cart.EnrichLineItems(r.Context(), cart.Items, cart.RegionID)
		if err != nil {
			a.logger.WithError(err).WithField("cart_id", cart.ID).Warn("failed to enrich line items")
		} else {
			cart.Items = items
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) addToCart(w http.ResponseWriter, r *http.Request) {
	code, err := countryCode(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req cartsvc.AddToCartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.CountryCode = code

	res, err := a.services.Cart.AddToCart(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) updateLineItem(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.UpdateLineItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.LineID = chi.URLParam(r, "lineID")

	cart, err := a.services.Cart.UpdateLineItem(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) deleteLineItem(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	if err := a.services.Cart.DeleteLineItem(r.Context(), lineID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": lineID, "deleted": true})
}

func (a *API) applyPromotions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	cart, err := a.services.Cart.ApplyPromotions(r.Context(), req.Codes)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) setAddresses(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.SetAddressesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	redirect, err := a.services.Cart.SetAddresses(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect})
}

func (a *API) setShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.SetShippingMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	cart, err := a.services.Cart.SetShippingMethod(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (a *API) initiatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.InitiatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	collection, err := a.services.Cart.InitiatePaymentSession(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_collection": collection})
}

// placeOrder завершает корзину. Отказ бэкенда оформить заказ (type=cart)
// — штатный ответ 200: клиент показывает ошибку и оставляет корзину.
func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	res, err := a.services.Cart.PlaceOrder(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) updateRegion(w http.ResponseWriter, r *http.Request) {
	var req cartsvc.UpdateRegionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	redirect, err := a.services.Cart.UpdateRegion(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect})
}
