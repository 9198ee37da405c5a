package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductPriceFields — набор полей, который запрашивается у бэкенда для витрины:
// рассчитанная для региона цена варианта и остаток на складе.
const ProductPriceFields = "*variants.calculated_price,+variants.inventory_quantity"

// CalculatedPrice — цена варианта, рассчитанная бэкендом для конкретного региона.
type CalculatedPrice struct {
	ID               string          `json:"id,omitempty"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	CurrencyCode     string          `json:"currency_code,omitempty"`
}

// Variant — вариант товара (размер, цвет и т.п.).
type Variant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title,omitempty"`
	SKU               string           `json:"sku,omitempty"`
	ProductID         string           `json:"product_id,omitempty"`
	ManageInventory   bool             `json:"manage_inventory,omitempty"`
	InventoryQuantity *int             `json:"inventory_quantity,omitempty"`
	CalculatedPrice   *CalculatedPrice `json:"calculated_price,omitempty"`
}

// Product — товар каталога. Локально только читается и кэшируется.
type Product struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Handle       string     `json:"handle,omitempty"`
	Subtitle     string     `json:"subtitle,omitempty"`
	Description  string     `json:"description,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	CollectionID string     `json:"collection_id,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Variants     []Variant  `json:"variants,omitempty"`
}

// MinPrice возвращает минимальную рассчитанную цену среди вариантов.
// Второй результат false, если ни у одного варианта нет цены.
func (p Product) MinPrice() (decimal.Decimal, bool) {
	var (
		minPrice decimal.Decimal
		found    bool
	)
	for _, v := range p.Variants {
		if v.CalculatedPrice == nil {
			continue
		}
		amount := v.CalculatedPrice.CalculatedAmount
		if !found || amount.LessThan(minPrice) {
			minPrice = amount
			found = true
		}
	}
	return minPrice, found
}

// VariantByID ищет вариант товара по идентификатору.
func (p Product) VariantByID(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Collection — именованная подборка товаров для витрины.
type Collection struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Handle   string         `json:"handle,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CollectionWithProducts — коллекция с приложенной первой страницей товаров.
// Товары прикладывает агрегатор, бэкенд их не возвращает.
type CollectionWithProducts struct {
	Collection
	Products []Product `json:"products"`
}

// ProductQuery описывает параметры выборки товаров у бэкенда.
// Нулевые значения полей означают «не передавать».
type ProductQuery struct {
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
	RegionID      string   `json:"region_id,omitempty"`
	Fields        string   `json:"fields,omitempty"`
	IDs           []string `json:"id,omitempty"`
	Handle        string   `json:"handle,omitempty"`
	Title         string   `json:"title,omitempty"`
	CollectionIDs []string `json:"collection_id,omitempty"`
	Order         string   `json:"order,omitempty"`
}

// Merge накладывает непустые поля override поверх q и возвращает результат.
func (q ProductQuery) Merge(override ProductQuery) ProductQuery {
	if override.Limit > 0 {
		q.Limit = override.Limit
	}
	if override.Offset > 0 {
		q.Offset = override.Offset
	}
	if override.RegionID != "" {
		q.RegionID = override.RegionID
	}
	if override.Fields != "" {
		q.Fields = override.Fields
	}
	if len(override.IDs) > 0 {
		q.IDs = append([]string(nil), override.IDs...)
	}
	if override.Handle != "" {
		q.Handle = override.Handle
	}
	if override.Title != "" {
		q.Title = override.Title
	}
	if len(override.CollectionIDs) > 0 {
		q.CollectionIDs = append([]string(nil), override.CollectionIDs...)
	}
	if override.Order != "" {
		q.Order = override.Order
	}
	return q
}

// CollectionQuery описывает параметры выборки коллекций.
type CollectionQuery struct {
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Handle string `json:"handle,omitempty"`
}
