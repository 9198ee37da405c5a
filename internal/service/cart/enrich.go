package cart

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EnrichLineItems прикладывает к позициям вариант товара с ценами региона
// и данными самого товара (без списка вариантов). Позиции, для которых товар
// или вариант не нашлись, возвращаются без изменений.
func (s *Service) EnrichLineItems(ctx context.Context, items []domain.LineItem, regionID string) ([]domain.LineItem, error) {
	if len(items) == 0 {
		return []domain.LineItem{}, nil
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.ProductsByID(ctx, ids, regionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	enriched := make([]domain.LineItem, len(items))
	for i, item := range items {
		enriched[i] = item

		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		variant, ok := product.VariantByID(item.VariantID)
		if !ok {
			continue
		}
		enriched[i].Variant = &domain.LineItemVariant{
			Variant: variant,
			Product: domain.LineItemProduct{
				ID:        product.ID,
				Title:     product.Title,
				Handle:    product.Handle,
				Thumbnail: product.Thumbnail,
			},
		}
	}
	return enriched, nil
}
