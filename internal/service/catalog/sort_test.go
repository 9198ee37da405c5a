package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestParseSortOption(t *testing.T) {
	cases := map[string]SortOption{
		"":             SortCreatedAt,
		"created_at":   SortCreatedAt,
		"price_asc":    SortPriceAsc,
		" price_desc ": SortPriceDesc,
	}
	for raw, want := range cases {
		got, ok := ParseSortOption(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got)
	}

	_, ok := ParseSortOption("popularity")
	require.False(t, ok)
}

func TestSortOption_Less(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	cheap := pricedProduct("cheap", "5", older)
	pricey := pricedProduct("pricey", "50", newer)
	noPrice := domain.Product{ID: "free"}

	require.True(t, SortPriceAsc.Less()(cheap, pricey))
	require.False(t, SortPriceAsc.Less()(pricey, cheap))
	require.True(t, SortPriceDesc.Less()(pricey, cheap))
	require.True(t, SortCreatedAt.Less()(pricey, cheap))
	require.True(t, SortPriceAsc.Less()(noPrice, cheap))

	require.True(t, SortCreatedAt.Less()(cheap, noPrice))
	require.False(t, SortCreatedAt.Less()(noPrice, cheap))
	require.True(t, SortOption("unknown").Less()(pricey, cheap))
}
