package service

import (
	"context"
	"errors"
	"fmt"

	"weatherbot/clock"
	"weatherbot/models"
	"weatherbot/weather"

	log "github.com/sirupsen/logrus"
)

// FetchResult is a reading plus the location it was resolved to
type FetchResult struct {
	Reading  models.Reading
	Location models.Location
	Query    weather.ProviderQuery // Query that produced the reading
}

// WeatherFetcher performs quota-gated provider lookups with fallbacks
type WeatherFetcher struct {
	provider WeatherProvider
	resolver LocationResolver
	quota    *QuotaTracker
	clock    clock.Clock
}

// NewWeatherFetcher creates a fetcher
func NewWeatherFetcher(provider WeatherProvider, resolver LocationResolver, quota *QuotaTracker, clk clock.Clock) *WeatherFetcher {
	if clk == nil {
		clk = clock.System()
	}
	return &WeatherFetcher{
		provider: provider,
		resolver: resolver,
		quota:    quota,
		clock:    clk,
	}
}

// Fetch returns the current reading for a registered user. Stored
// coordinates are used first; the postal chain is the fallback.
func (f *WeatherFetcher) Fetch(ctx context.Context, user *models.User) (*FetchResult, error) {
	if user.HasCoordinates() {
		query := weather.CoordinatesQuery(*user.Latitude, *user.Longitude)
		reading, err := f.current(ctx, query)
		if err == nil {
			loc := reading.Location
			if loc.Region == "" {
				loc.Region = user.Region
			}
			reading.Location = loc
			return &FetchResult{Reading: *reading, Location: loc, Query: query}, nil
		}
		if !weather.IsRecoverable(err) {
			return nil, err
		}
		log.WithFields(log.Fields{
			"user_id": user.UserID,
		}).Debug("Stored coordinates not found, falling back to postal lookup")
	}

	return f.FetchForLocation(ctx, user.PostalCode, user.CountryHint)
}

// FetchForLocation resolves a postal code and fetches its current reading.
// The chain is primary query, UK postal-area city, then geocode and fetch by
// coordinates. Only location-not-found moves to the next step.
func (f *WeatherFetcher) FetchForLocation(ctx context.Context, postalCode, countryHint string) (*FetchResult, error) {
	query, err := f.resolver.Resolve(postalCode, countryHint)
	if err != nil {
		return nil, err
	}

	reading, err := f.current(ctx, query)
	if err == nil {
		return f.result(*reading, query, nil), nil
	}
	if !weather.IsRecoverable(err) {
		return nil, err
	}

	// UK outward codes the provider does not know resolve to the area's town
	if cityQuery, ok := query.CityQuery(); ok {
		reading, err := f.current(ctx, cityQuery)
		if err == nil {
			log.WithFields(log.Fields{
				"postal_area": query.PostalCode,
				"city":        cityQuery.City,
			}).Info("Resolved postal code through postal-area fallback")
			return f.result(*reading, cityQuery, f.regionFor(ctx, cityQuery)), nil
		}
		if !weather.IsRecoverable(err) {
			return nil, err
		}
	}

	geocodeQuery := query
	if cityQuery, ok := query.CityQuery(); ok {
		geocodeQuery = cityQuery
	}
	location, err := f.geocode(ctx, geocodeQuery)
	if err != nil {
		if weather.IsRecoverable(err) {
			return nil, &weather.LocationError{
				PostalCode: postalCode,
				Reason:     "the weather provider does not recognize this code",
				Examples:   weather.FormatExamples,
			}
		}
		return nil, err
	}

	coordQuery := weather.CoordinatesQuery(location.Latitude, location.Longitude)
	reading, err = f.current(ctx, coordQuery)
	if err != nil {
		if weather.IsRecoverable(err) {
			return nil, &weather.LocationError{PostalCode: postalCode, Reason: "no weather for the geocoded location", Examples: weather.FormatExamples}
		}
		return nil, err
	}
	return f.result(*reading, coordQuery, location), nil
}

func (f *WeatherFetcher) result(reading models.Reading, query weather.ProviderQuery, geocoded *models.Location) *FetchResult {
	loc := reading.Location
	if geocoded != nil {
		if geocoded.Region != "" {
			loc.Region = geocoded.Region
		}
		if loc.City == "" {
			loc.City = geocoded.City
		}
		if loc.Country == "" {
			loc.Country = geocoded.Country
		}
		if !loc.HasCoordinates() {
			loc.Latitude, loc.Longitude = geocoded.Latitude, geocoded.Longitude
		}
	}
	if loc.Country == "" {
		loc.Country = query.Country
	}
	reading.Location = loc
	return &FetchResult{Reading: reading, Location: loc, Query: query}
}

// regionFor looks up the administrative region of a city. It is best effort
// and never spends the last call of the day.
func (f *WeatherFetcher) regionFor(ctx context.Context, q weather.ProviderQuery) *models.Location {
	state, err := f.quota.Snapshot(ctx)
	if err != nil || state.Remaining <= 1 {
		return nil
	}
	loc, err := f.geocode(ctx, q)
	if err != nil {
		return nil
	}
	return loc
}

func (f *WeatherFetcher) current(ctx context.Context, q weather.ProviderQuery) (*models.Reading, error) {
	if err := f.gate(ctx); err != nil {
		return nil, err
	}
	reading, err := f.provider.CurrentWeather(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := f.quota.RecordCall(ctx, f.clock.Now()); err != nil {
		log.WithFields(log.Fields{
			"query": q.Kind.String(),
			"error": err,
		}).Error("Failed to record weather api call")
	}
	return reading, nil
}

func (f *WeatherFetcher) geocode(ctx context.Context, q weather.ProviderQuery) (*models.Location, error) {
	if err := f.gate(ctx); err != nil {
		return nil, err
	}
	loc, err := f.provider.Geocode(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := f.quota.RecordCall(ctx, f.clock.Now()); err != nil {
		log.WithFields(log.Fields{
			"query": q.Kind.String(),
			"error": err,
		}).Error("Failed to record weather api call")
	}
	return loc, nil
}

func (f *WeatherFetcher) gate(ctx context.Context) error {
	ok, err := f.quota.CanCall(ctx)
	if err != nil {
		return fmt.Errorf("failed to check quota: %w", err)
	}
	if !ok {
		return ErrQuotaExhausted
	}
	return nil
}

// IsQuotaExhausted reports whether err is the quota flow-control signal
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
