package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weatherbot/metrics"
	"weatherbot/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	DefaultTimeout = 10 * time.Second

	endpointWeather   = "weather"
	endpointGeoZip    = "geo_zip"
	endpointGeoDirect = "geo_direct"
)

// ClientConfig configures the provider client
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
	Metrics       *metrics.Metrics
	HTTPClient    *http.Client
}

// Client talks to an OpenWeatherMap-compatible API using imperial units
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewClient creates a provider client
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		burst := cfg.RatePerMinute / 12
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    limiter,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

type weatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
}

type geoZipResponse struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

type geoDirectResponse struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

// CurrentWeather fetches the current conditions for a query
func (c *Client) CurrentWeather(ctx context.Context, q ProviderQuery) (*models.Reading, error) {
	params := url.Values{}
	switch q.Kind {
	case QueryPostal:
		params.Set("zip", joinCountry(q.PostalCode, q.Country))
	case QueryCity:
		params.Set("q", joinCountry(q.City, q.Country))
	case QueryCoordinates:
		params.Set("lat", strconv.FormatFloat(q.Latitude, 'f', 4, 64))
		params.Set("lon", strconv.FormatFloat(q.Longitude, 'f', 4, 64))
	default:
		return nil, fmt.Errorf("unsupported query kind %v", q.Kind)
	}
	params.Set("units", "imperial")

	var resp weatherResponse
	if err := c.get(ctx, endpointWeather, "/data/2.5/weather", params, &resp); err != nil {
		return nil, err
	}
	if resp.Main == nil || len(resp.Weather) == 0 {
		return nil, fmt.Errorf("%w: missing main or weather fields", ErrParseFailure)
	}

	observedAt := c.now().UTC()
	if resp.Dt > 0 {
		observedAt = time.Unix(resp.Dt, 0).UTC()
	}

	condition := resp.Weather[0]
	return &models.Reading{
		TemperatureF:  resp.Main.Temp,
		Humidity:      resp.Main.Humidity,
		WindMph:       resp.Wind.Speed,
		ConditionCode: condition.ID,
		ConditionMain: condition.Main,
		Description:   condition.Description,
		Location: models.Location{
			City:      resp.Name,
			Country:   resp.Sys.Country,
			Latitude:  resp.Coord.Lat,
			Longitude: resp.Coord.Lon,
		},
		ObservedAt: observedAt,
	}, nil
}

// Geocode resolves a postal or city query to coordinates. City lookups also
// return the administrative region.
func (c *Client) Geocode(ctx context.Context, q ProviderQuery) (*models.Location, error) {
	switch q.Kind {
	case QueryPostal:
		params := url.Values{}
		params.Set("zip", joinCountry(q.PostalCode, q.Country))

		var resp geoZipResponse
		if err := c.get(ctx, endpointGeoZip, "/geo/1.0/zip", params, &resp); err != nil {
			return nil, err
		}
		return &models.Location{City: resp.Name, Country: resp.Country, Latitude: resp.Lat, Longitude: resp.Lon}, nil

	case QueryCity:
		params := url.Values{}
		params.Set("q", joinCountry(q.City, q.Country))
		params.Set("limit", "1")

		var resp []geoDirectResponse
		if err := c.get(ctx, endpointGeoDirect, "/geo/1.0/direct", params, &resp); err != nil {
			return nil, err
		}
		if len(resp) == 0 {
			return nil, ErrLocationNotFound
		}
		return &models.Location{
			City:      resp[0].Name,
			Region:    resp[0].State,
			Country:   resp[0].Country,
			Latitude:  resp[0].Lat,
			Longitude: resp[0].Lon,
		}, nil
	}
	return nil, fmt.Errorf("cannot geocode %v query", q.Kind)
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrProviderUnavailable, err)
	}

	params.Set("appid", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeUnavailable, time.Since(start))
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeUnavailable, time.Since(start))
		return fmt.Errorf("%w: reading body: %v", ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeNotFound, time.Since(start))
		return ErrLocationNotFound
	case resp.StatusCode == http.StatusBadRequest:
		// The provider answers 400 for zip codes it cannot parse
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeNotFound, time.Since(start))
		return ErrLocationNotFound
	case resp.StatusCode != http.StatusOK:
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeUnavailable, time.Since(start))
		log.WithFields(log.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("Weather provider returned an error status")
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeUnavailable, time.Since(start))
		return fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	c.metrics.ObserveProviderCall(endpoint, metrics.OutcomeSuccess, time.Since(start))
	return nil
}

func joinCountry(value, country string) string {
	if country == "" {
		return value
	}
	return value + "," + country
}

// IsRecoverable reports whether a failed lookup is worth retrying through a
// fallback path within the same fetch
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrLocationNotFound)
}
