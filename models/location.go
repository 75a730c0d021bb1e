package models

import "strings"

// Location is a resolved place for a user's postal code
type Location struct {
	City      string  `json:"city"`
	Region    string  `json:"region,omitempty"` // State, province or other administrative area
	Country   string  `json:"country"`          // ISO 3166-1 alpha-2
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
}

// HasCoordinates reports whether latitude and longitude were resolved
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// DisplayRegion prefers the administrative region over the city so other
// users never see more than a coarse location.
func (l Location) DisplayRegion() string {
	if r := strings.TrimSpace(l.Region); r != "" {
		return r
	}
	if name, ok := countryNames[strings.ToUpper(l.Country)]; ok {
		return name
	}
	if l.Country != "" {
		return strings.ToUpper(l.Country)
	}
	return l.City
}

var countryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"CA": "Canada",
	"AU": "Australia",
	"NZ": "New Zealand",
	"IE": "Ireland",
	"DE": "Germany",
	"FR": "France",
	"NL": "Netherlands",
	"DK": "Denmark",
	"CH": "Switzerland",
	"AT": "Austria",
	"BE": "Belgium",
	"NO": "Norway",
}
