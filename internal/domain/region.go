package domain

import "strings"

// Country — страна, входящая в регион коммерческого бэкенда.
type Country struct {
	// ISO2 — двухбуквенный код страны в нижнем регистре (например, "zw").
	ISO2        string `json:"iso_2"`
	ISO3        string `json:"iso_3,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Region группирует страны с общей валютой, налогами и доставкой.
type Region struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CurrencyCode string    `json:"currency_code,omitempty"`
	Countries    []Country `json:"countries,omitempty"`
}

// HasCountry сообщает, входит ли страна с указанным кодом в регион.
func (r Region) HasCountry(code string) bool {
	code = NormalizeCountryCode(code)
	if code == "" {
		return false
	}
	for _, c := range r.Countries {
		if NormalizeCountryCode(c.ISO2) == code {
			return true
		}
	}
	return false
}

// NormalizeCountryCode приводит код страны к виду, в котором его хранит бэкенд.
func NormalizeCountryCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
