package weather

import (
	"regexp"
	"strings"
)

const maxPostalCodeLength = 10

// QueryKind selects the provider lookup shape
type QueryKind int

const (
	QueryPostal QueryKind = iota
	QueryCity
	QueryCoordinates
)

func (k QueryKind) String() string {
	switch k {
	case QueryPostal:
		return "postal"
	case QueryCity:
		return "city"
	case QueryCoordinates:
		return "coordinates"
	}
	return "unknown"
}

// PostalFormat is the detected shape of a postal code
type PostalFormat string

const (
	FormatUS        PostalFormat = "us"
	FormatUK        PostalFormat = "uk"
	FormatCanada    PostalFormat = "ca"
	FormatFourDigit PostalFormat = "four_digit"
	FormatGeneric   PostalFormat = "generic"
)

// ProviderQuery is a canonical lookup for the weather provider
type ProviderQuery struct {
	Kind       QueryKind
	PostalCode string // Normalized code sent to the provider
	Country    string // ISO 3166-1 alpha-2, empty when unknown
	City       string
	Latitude   float64
	Longitude  float64

	Format       PostalFormat
	FallbackCity string // Static fallback for UK postal areas
}

// CityQuery builds the fallback query for the postal area's town
func (q ProviderQuery) CityQuery() (ProviderQuery, bool) {
	if q.FallbackCity == "" {
		return ProviderQuery{}, false
	}
	return ProviderQuery{Kind: QueryCity, City: q.FallbackCity, Country: q.Country, Format: q.Format}, true
}

// CoordinatesQuery builds a query for a geocoded point
func CoordinatesQuery(lat, lon float64) ProviderQuery {
	return ProviderQuery{Kind: QueryCoordinates, Latitude: lat, Longitude: lon}
}

var (
	usPattern        = regexp.MustCompile(`^\d{5}(\d{4})?$`)
	ukFullPattern    = regexp.MustCompile(`^([A-Z]{1,2}\d[A-Z\d]?)(\d[A-Z]{2})$`)
	ukOutwardPattern = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?$`)
	caPattern        = regexp.MustCompile(`^([A-Z]\d[A-Z])(\d[A-Z]\d)$`)
	fourDigitPattern = regexp.MustCompile(`^\d{4}$`)
	allowedPattern   = regexp.MustCompile(`^[A-Z0-9 \-]+$`)
)

// Resolver turns free-form postal codes into provider queries
type Resolver struct {
	fourDigitCountry string
}

// NewResolver creates a resolver; bare 4-digit codes are assumed to belong
// to fourDigitCountry (AU when empty)
func NewResolver(fourDigitCountry string) *Resolver {
	if fourDigitCountry == "" {
		fourDigitCountry = "AU"
	}
	return &Resolver{fourDigitCountry: strings.ToUpper(fourDigitCountry)}
}

// Validate checks the postal code before any provider call
func (r *Resolver) Validate(postalCode string) error {
	code := strings.ToUpper(strings.TrimSpace(postalCode))
	switch {
	case code == "":
		return newLocationError(postalCode, "postal code is empty")
	case len(code) > maxPostalCodeLength:
		return newLocationError(postalCode, "postal code is too long")
	case !allowedPattern.MatchString(code):
		return newLocationError(postalCode, "postal code may only contain letters, digits, spaces and dashes")
	}
	return nil
}

// Resolve normalizes a postal code and optional country hint into a query.
// An explicit hint always decides the country.
func (r *Resolver) Resolve(postalCode, countryHint string) (ProviderQuery, error) {
	if err := r.Validate(postalCode); err != nil {
		return ProviderQuery{}, err
	}

	compact := compactPostalCode(postalCode)
	hint := strings.ToUpper(strings.TrimSpace(countryHint))
	if hint == "UK" {
		hint = "GB"
	}

	format := r.detect(compact)
	if hint != "" {
		format = formatForCountry(hint, compact, format)
	}

	query := ProviderQuery{Kind: QueryPostal, Format: format, PostalCode: compact}

	switch format {
	case FormatUS:
		query.Country = "US"
		query.PostalCode = compact[:5]
	case FormatUK:
		query.Country = "GB"
		query.PostalCode = ukOutwardCode(compact)
		if city, ok := cityForPostalArea(query.PostalCode); ok {
			query.FallbackCity = city
		}
	case FormatCanada:
		query.Country = "CA"
		query.PostalCode = compact[:3]
	case FormatFourDigit:
		query.Country = r.fourDigitCountry
	}

	if hint != "" {
		query.Country = hint
	}

	return query, nil
}

func (r *Resolver) detect(compact string) PostalFormat {
	switch {
	case usPattern.MatchString(compact):
		return FormatUS
	case ukFullPattern.MatchString(compact):
		return FormatUK
	case caPattern.MatchString(compact):
		return FormatCanada
	case ukOutwardPattern.MatchString(compact):
		// Outward-only codes are accepted when the area letters are a real UK area
		if _, ok := cityForPostalArea(compact); ok {
			return FormatUK
		}
		return FormatGeneric
	case fourDigitPattern.MatchString(compact):
		return FormatFourDigit
	}
	return FormatGeneric
}

// formatForCountry picks the query shape for a hinted country, keeping the
// detected shape only when it agrees with the hint
func formatForCountry(country, compact string, detected PostalFormat) PostalFormat {
	switch country {
	case "US":
		if usPattern.MatchString(compact) {
			return FormatUS
		}
	case "GB":
		if ukFullPattern.MatchString(compact) || ukOutwardPattern.MatchString(compact) {
			return FormatUK
		}
	case "CA":
		if caPattern.MatchString(compact) {
			return FormatCanada
		}
	default:
		if detected == FormatFourDigit {
			return FormatFourDigit
		}
	}
	return FormatGeneric
}

func compactPostalCode(postalCode string) string {
	code := strings.ToUpper(strings.TrimSpace(postalCode))
	code = strings.ReplaceAll(code, " ", "")
	return strings.ReplaceAll(code, "-", "")
}

func ukOutwardCode(compact string) string {
	if m := ukFullPattern.FindStringSubmatch(compact); m != nil {
		return m[1]
	}
	return compact
}
