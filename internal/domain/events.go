package domain

// Типы агрегатов для событий витрины.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// Типы событий, которые витрина пишет в outbox.
const (
	EventTypeCartCreated       = "cart.created"
	EventTypeCartRegionChanged = "cart.region_changed"
	EventTypeOrderPlaced       = "order.placed"
)

// CartEvent — полезная нагрузка событий корзины.
type CartEvent struct {
	CartID      string `json:"cart_id"`
	RegionID    string `json:"region_id"`
	CountryCode string `json:"country_code,omitempty"`
	PrevRegion  string `json:"previous_region_id,omitempty"`
}

// OrderPlacedEvent — полезная нагрузка события оформления заказа.
type OrderPlacedEvent struct {
	OrderID     string `json:"order_id"`
	CartID      string `json:"cart_id"`
	CountryCode string `json:"country_code,omitempty"`
	Email       string `json:"email,omitempty"`
}
