package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// CompletionType — результат завершения корзины на стороне бэкенда.
type CompletionType string

const (
	// CompletionTypeOrder — корзина превратилась в заказ.
	CompletionTypeOrder CompletionType = "order"
	// CompletionTypeCart — корзина осталась корзиной (например, не прошла оплата).
	CompletionTypeCart CompletionType = "cart"
)

// Address — адрес доставки или оплаты.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Validate проверяет минимальный набор полей адреса.
func (a Address) Validate() error {
	if strings.TrimSpace(a.FirstName) == "" ||
		strings.TrimSpace(a.LastName) == "" ||
		strings.TrimSpace(a.Address1) == "" ||
		strings.TrimSpace(a.City) == "" {
		return ErrAddressIncomplete
	}
	if NormalizeCountryCode(a.CountryCode) == "" {
		return ErrCountryCodeRequired
	}
	return nil
}

// LineItemProduct — товар без вариантов, прикладываемый к обогащённой позиции.
type LineItemProduct struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Handle    string `json:"handle,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// LineItemVariant — вариант позиции вместе с данными товара.
type LineItemVariant struct {
	Variant
	Product LineItemProduct `json:"product"`
}

// LineItem — одна позиция корзины или заказа: вариант товара и количество.
type LineItem struct {
	ID        string           `json:"id"`
	Title     string           `json:"title,omitempty"`
	Thumbnail string           `json:"thumbnail,omitempty"`
	ProductID string           `json:"product_id,omitempty"`
	VariantID string           `json:"variant_id,omitempty"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	Total     decimal.Decimal  `json:"total"`
	Variant   *LineItemVariant `json:"variant,omitempty"`
}

// ShippingMethod — выбранный способ доставки.
type ShippingMethod struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	ShippingOptionID string          `json:"shipping_option_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
}

// PaymentSession — платёжная сессия провайдера.
type PaymentSession struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Status     string         `json:"status,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// PaymentCollection — набор платёжных сессий корзины.
type PaymentCollection struct {
	ID              string           `json:"id"`
	Status          string           `json:"status,omitempty"`
	PaymentSessions []PaymentSession `json:"payment_sessions,omitempty"`
}

// Promotion — применённый к корзине промокод.
type Promotion struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code"`
}

// Cart — изменяемая корзина, которой владеет бэкенд. Суммы только отображаются:
// локально они не пересчитываются.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id"`
	Email             string             `json:"email,omitempty"`
	CurrencyCode      string             `json:"currency_code,omitempty"`
	Items             []LineItem         `json:"items,omitempty"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods,omitempty"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Promotions        []Promotion        `json:"promotions,omitempty"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	ShippingTotal     decimal.Decimal    `json:"shipping_total"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	DiscountTotal     decimal.Decimal    `json:"discount_total"`
	Total             decimal.Decimal    `json:"total"`
}

// Order — заказ, созданный бэкендом из корзины.
type Order struct {
	ID              string          `json:"id"`
	DisplayID       int64           `json:"display_id,omitempty"`
	Email           string          `json:"email,omitempty"`
	CurrencyCode    string          `json:"currency_code,omitempty"`
	Items           []LineItem      `json:"items,omitempty"`
	ShippingAddress *Address        `json:"shipping_address,omitempty"`
	Total           decimal.Decimal `json:"total"`
}

// CountryCode возвращает код страны доставки заказа в нижнем регистре.
func (o Order) CountryCode() string {
	if o.ShippingAddress == nil {
		return ""
	}
	return NormalizeCountryCode(o.ShippingAddress.CountryCode)
}

// CompletionResult — ответ бэкенда на попытку завершить корзину.
type CompletionResult struct {
	Type  CompletionType `json:"type"`
	Order *Order         `json:"order,omitempty"`
	Cart  *Cart          `json:"cart,omitempty"`
	Error *BackendError  `json:"error,omitempty"`
}

// CreateCartInput — тело запроса создания корзины.
type CreateCartInput struct {
	RegionID string `json:"region_id"`
}

// UpdateCartInput — частичное обновление корзины. Пустые поля не передаются.
type UpdateCartInput struct {
	RegionID        string   `json:"region_id,omitempty"`
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
	PromoCodes      []string `json:"promo_codes,omitempty"`
}

// IsEmpty сообщает, что обновление ничего не меняет.
func (in UpdateCartInput) IsEmpty() bool {
	return in.RegionID == "" &&
		in.Email == "" &&
		in.ShippingAddress == nil &&
		in.BillingAddress == nil &&
		in.PromoCodes == nil
}

// MarshalJSON передаёт promo_codes и для пустого, но не nil списка:
// пустой список снимает все промокоды с корзины.
func (in UpdateCartInput) MarshalJSON() ([]byte, error) {
	type plain UpdateCartInput
	body := struct {
		plain
		PromoCodes *[]string `json:"promo_codes,omitempty"`
	}{plain: plain(in)}
	if in.PromoCodes != nil {
		codes := in.PromoCodes
		body.PromoCodes = &codes
	}
	return json.Marshal(body)
}

// LineItemInput — тело запроса добавления позиции.
type LineItemInput struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// PaymentSessionInput — параметры инициализации платёжной сессии.
type PaymentSessionInput struct {
	ProviderID string         `json:"provider_id"`
	Data       map[string]any `json:"data,omitempty"`
}
