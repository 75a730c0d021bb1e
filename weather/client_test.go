package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL, APIKey: "test-key", Timeout: 2 * time.Second})
}

func TestClient_CurrentWeather_ByPostal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "SW1A,GB", r.URL.Query().Get("zip"))
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"coord":   map[string]any{"lat": 51.5, "lon": -0.12},
			"weather": []map[string]any{{"id": 501, "main": "Rain", "description": "moderate rain"}},
			"main":    map[string]any{"temp": 48.2, "humidity": 91},
			"wind":    map[string]any{"speed": 17.5},
			"dt":      1700000000,
			"sys":     map[string]any{"country": "GB"},
			"name":    "London",
		})
	})

	reading, err := client.CurrentWeather(context.Background(), ProviderQuery{Kind: QueryPostal, PostalCode: "SW1A", Country: "GB"})
	require.NoError(t, err)

	assert.Equal(t, 48.2, reading.TemperatureF)
	assert.Equal(t, 91, reading.Humidity)
	assert.Equal(t, 17.5, reading.WindMph)
	assert.Equal(t, 501, reading.ConditionCode)
	assert.Equal(t, "Rain", reading.ConditionMain)
	assert.Equal(t, "moderate rain", reading.Description)
	assert.Equal(t, "London", reading.Location.City)
	assert.Equal(t, "GB", reading.Location.Country)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), reading.ObservedAt)
}

func TestClient_CurrentWeather_ByCoordinates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40.7128", r.URL.Query().Get("lat"))
		assert.Equal(t, "-74.0060", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"weather":[{"id":800,"main":"Clear","description":"clear sky"}],"main":{"temp":70,"humidity":40},"wind":{"speed":3},"sys":{"country":"US"},"name":"New York"}`))
	})

	reading, err := client.CurrentWeather(context.Background(), CoordinatesQuery(40.7128, -74.006))
	require.NoError(t, err)
	assert.Equal(t, "Clear", reading.ConditionMain)
	assert.False(t, reading.ObservedAt.IsZero())
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"cod":"404","message":"city not found"}`, wantErr: ErrLocationNotFound},
		{name: "bad zip", status: http.StatusBadRequest, body: `{"cod":"400"}`, wantErr: ErrLocationNotFound},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantErr: ErrProviderUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantErr: ErrProviderUnavailable},
		{name: "malformed json", status: http.StatusOK, body: `{"main":`, wantErr: ErrParseFailure},
		{name: "missing fields", status: http.StatusOK, body: `{"name":"x"}`, wantErr: ErrParseFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.CurrentWeather(context.Background(), ProviderQuery{Kind: QueryPostal, PostalCode: "00000", Country: "US"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := client.CurrentWeather(context.Background(), ProviderQuery{Kind: QueryPostal, PostalCode: "90210", Country: "US"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestClient_Geocode(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/geo/1.0/zip":
			assert.Equal(t, "K1A,CA", r.URL.Query().Get("zip"))
			_, _ = w.Write([]byte(`{"zip":"K1A","name":"Ottawa","lat":45.42,"lon":-75.69,"country":"CA"}`))
		case "/geo/1.0/direct":
			assert.Equal(t, "London,GB", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`[{"name":"London","lat":51.5,"lon":-0.12,"country":"GB","state":"England"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	loc, err := client.Geocode(context.Background(), ProviderQuery{Kind: QueryPostal, PostalCode: "K1A", Country: "CA"})
	require.NoError(t, err)
	assert.Equal(t, "Ottawa", loc.City)
	assert.True(t, loc.HasCoordinates())

	loc, err = client.Geocode(context.Background(), ProviderQuery{Kind: QueryCity, City: "London", Country: "GB"})
	require.NoError(t, err)
	assert.Equal(t, "England", loc.Region)
	assert.Equal(t, "England", loc.DisplayRegion())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GeocodeNoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.Geocode(context.Background(), ProviderQuery{Kind: QueryCity, City: "Nowhere"})
	assert.True(t, errors.Is(err, ErrLocationNotFound))
}
