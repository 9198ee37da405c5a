package region

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Strategy — один шаг цепочки выбора региона.
type Strategy interface {
	// Name — имя стратегии для логов и метрик.
	Name() string
	// Pick выбирает регион из списка. byCountry — свежая карта код страны → регион.
	Pick(countryCode string, regions []domain.Region, byCountry map[string]domain.Region) (domain.Region, bool)
}

// ExactCountry выбирает регион, в который входит страна.
type ExactCountry struct{}

// Name реализует Strategy.
func (ExactCountry) Name() string { return "exact_country" }

// Pick реализует Strategy.
func (ExactCountry) Pick(countryCode string, _ []domain.Region, byCountry map[string]domain.Region) (domain.Region, bool) {
	if countryCode == "" {
		return domain.Region{}, false
	}
	r, ok := byCountry[countryCode]
	return r, ok
}

// NamedRegion выбирает регион по имени (без учёта регистра).
type NamedRegion struct {
	RegionName string
}

// Name реализует Strategy.
func (s NamedRegion) Name() string { return "named_region" }

// Pick реализует Strategy.
func (s NamedRegion) Pick(_ string, regions []domain.Region, _ map[string]domain.Region) (domain.Region, bool) {
	want := strings.ToLower(strings.TrimSpace(s.RegionName))
	if want == "" {
		return domain.Region{}, false
	}
	for _, r := range regions {
		if strings.ToLower(r.Name) == want {
			return r, true
		}
	}
	return domain.Region{}, false
}

// FirstRegion выбирает первый регион списка.
type FirstRegion struct{}

// Name реализует Strategy.
func (FirstRegion) Name() string { return "first_region" }

// Pick реализует Strategy.
func (FirstRegion) Pick(_ string, regions []domain.Region, _ map[string]domain.Region) (domain.Region, bool) {
	if len(regions) == 0 {
		return domain.Region{}, false
	}
	return regions[0], true
}

// DefaultStrategies строит цепочку: точное совпадение страны, затем регионы
// с указанными именами по порядку, затем первый регион.
func DefaultStrategies(fallbackNames ...string) []Strategy {
	chain := make([]Strategy, 0, len(fallbackNames)+2)
	chain = append(chain, ExactCountry{})
	for _, name := range fallbackNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		chain = append(chain, NamedRegion{RegionName: name})
	}
	return append(chain, FirstRegion{})
}
