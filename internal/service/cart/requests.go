package cart

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// AddToCartRequest — добавление варианта товара в корзину страны.
type AddToCartRequest struct {
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	CountryCode string `json:"country_code"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r AddToCartRequest) Validate() error {
	if strings.TrimSpace(r.VariantID) == "" {
		return domain.ErrVariantIDRequired
	}
	if r.Quantity <= 0 {
		return domain.ErrQuantityInvalid
	}
	if domain.NormalizeCountryCode(r.CountryCode) == "" {
		return domain.ErrCountryCodeRequired
	}
	return nil
}

// AddToCartResult — ответ на добавление позиции.
type AddToCartResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	CartID  string      `json:"cartId"`
	Cart    domain.Cart `json:"cart"`
}

// UpdateLineItemRequest — изменение количества позиции.
type UpdateLineItemRequest struct {
	LineID   string `json:"line_id"`
	Quantity int    `json:"quantity"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r UpdateLineItemRequest) Validate() error {
	if strings.TrimSpace(r.LineID) == "" {
		return domain.ErrLineItemIDRequired
	}
	if r.Quantity <= 0 {
		return domain.ErrQuantityInvalid
	}
	return nil
}

// SetShippingMethodRequest — выбор способа доставки.
// Пустой CartID означает текущую корзину покупателя.
type SetShippingMethodRequest struct {
	CartID           string `json:"cart_id,omitempty"`
	ShippingOptionID string `json:"shipping_method_id"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r SetShippingMethodRequest) Validate() error {
	if strings.TrimSpace(r.ShippingOptionID) == "" {
		return domain.ErrShippingOptionRequired
	}
	return nil
}

// InitiatePaymentRequest — инициализация платёжной сессии для текущей корзины.
type InitiatePaymentRequest struct {
	ProviderID string         `json:"provider_id"`
	Data       map[string]any `json:"data,omitempty"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r InitiatePaymentRequest) Validate() error {
	if strings.TrimSpace(r.ProviderID) == "" {
		return domain.ErrPaymentProviderRequired
	}
	return nil
}

// SetAddressesRequest — данные формы адресов оформления заказа.
type SetAddressesRequest struct {
	Email           string          `json:"email"`
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	SameAsBilling   bool            `json:"same_as_billing"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r SetAddressesRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return domain.ErrEmailRequired
	}
	if err := r.ShippingAddress.Validate(); err != nil {
		return err
	}
	if r.SameAsBilling {
		return nil
	}
	if r.BillingAddress == nil {
		return domain.ErrAddressIncomplete
	}
	return r.BillingAddress.Validate()
}

// UpdateRegionRequest — смена страны покупателя.
type UpdateRegionRequest struct {
	CountryCode string `json:"country_code"`
	CurrentPath string `json:"current_path"`
}

// Validate проверяет запрос до обращения к бэкенду.
func (r UpdateRegionRequest) Validate() error {
	if domain.NormalizeCountryCode(r.CountryCode) == "" {
		return domain.ErrCountryCodeRequired
	}
	return nil
}

// PlaceOrderResult — итог оформления заказа. Заполнен либо Order с Redirect,
// либо Cart (корзина осталась, например, из-за отказа оплаты) с Error.
type PlaceOrderResult struct {
	Type     domain.CompletionType `json:"type"`
	Order    *domain.Order         `json:"order,omitempty"`
	Cart     *domain.Cart          `json:"cart,omitempty"`
	Error    *domain.BackendError  `json:"error,omitempty"`
	Redirect string                `json:"redirect,omitempty"`
}
