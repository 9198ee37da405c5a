package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SortOption — порядок сортировки товаров на витрине.
type SortOption string

const (
	// SortCreatedAt — сначала новые.
	SortCreatedAt SortOption = "created_at"
	// SortPriceAsc — по возрастанию минимальной цены.
	SortPriceAsc SortOption = "price_asc"
	// SortPriceDesc — по убыванию минимальной цены.
	SortPriceDesc SortOption = "price_desc"
)

// LessFunc сравнивает два товара; true — a идёт раньше b.
type LessFunc func(a, b domain.Product) bool

// ParseSortOption разбирает значение параметра sort_by.
// Пустая строка означает SortCreatedAt.
func ParseSortOption(raw string) (SortOption, bool) {
	switch SortOption(strings.TrimSpace(raw)) {
	case "", SortCreatedAt:
		return SortCreatedAt, true
	case SortPriceAsc:
		return SortPriceAsc, true
	case SortPriceDesc:
		return SortPriceDesc, true
	default:
		return "", false
	}
}

// Less возвращает функцию сравнения для варианта сортировки.
// Неизвестный вариант сортирует как SortCreatedAt.
func (o SortOption) Less() LessFunc {
	switch o {
	case SortPriceAsc:
		return func(a, b domain.Product) bool {
			return minPrice(a).LessThan(minPrice(b))
		}
	case SortPriceDesc:
		return func(a, b domain.Product) bool {
			return minPrice(a).GreaterThan(minPrice(b))
		}
	default:
		return newestFirst
	}
}

// товар без цен сравнивается как бесплатный
func minPrice(p domain.Product) decimal.Decimal {
	price, _ := p.MinPrice()
	return price
}

func newestFirst(a, b domain.Product) bool {
	switch {
	case a.CreatedAt == nil:
		return false
	case b.CreatedAt == nil:
		return true
	default:
		return a.CreatedAt.After(*b.CreatedAt)
	}
}
