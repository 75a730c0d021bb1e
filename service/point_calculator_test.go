package service

import (
	"math/rand"
	"testing"

	"weatherbot/models"

	"github.com/stretchr/testify/assert"
)

func TestPointCalculator_Scenarios(t *testing.T) {
	calc := NewPointCalculator()

	tests := []struct {
		name      string
		reading   models.Reading
		want      int
		breakdown models.Breakdown
	}{
		{
			name:    "hot and dry",
			reading: models.Reading{TemperatureF: 103, Humidity: 18, WindMph: 10, ConditionMain: "Clear"},
			want:    4,
			breakdown: models.Breakdown{
				models.ReasonExtremeHeat: 3,
				models.ReasonLowHumidity: 1,
			},
		},
		{
			name: "blizzard",
			reading: models.Reading{
				TemperatureF:  15,
				Humidity:      50,
				WindMph:       30,
				ConditionMain: "Snow",
				Description:   "heavy snow with blizzard conditions",
			},
			want: 14,
			breakdown: models.Breakdown{
				models.ReasonExtremeCold: 3,
				models.ReasonSnow:        3,
				models.ReasonHighWinds:   3,
				models.ReasonBlizzard:    5,
			},
		},
		{
			name:      "pleasant day earns nothing",
			reading:   models.Reading{TemperatureF: 72, Humidity: 45, WindMph: 5, ConditionMain: "Clear", Description: "clear sky"},
			want:      0,
			breakdown: models.Breakdown{},
		},
		{
			name:    "thunderstorm beats rain",
			reading: models.Reading{TemperatureF: 60, Humidity: 80, WindMph: 15, ConditionMain: "Thunderstorm", Description: "thunderstorm with heavy rain"},
			want:    5,
			breakdown: models.Breakdown{
				models.ReasonThunderstorm: 4,
				models.ReasonWindy:        1,
			},
		},
		{
			name:    "misty drizzle",
			reading: models.Reading{TemperatureF: 38, Humidity: 95, WindMph: 2, ConditionMain: "Drizzle", Description: "light intensity drizzle and mist"},
			want:    4,
			breakdown: models.Breakdown{
				models.ReasonCold:         1,
				models.ReasonDrizzle:      1,
				models.ReasonHighHumidity: 1,
				models.ReasonFog:          1,
			},
		},
		{
			name:    "tornado and hurricane stack",
			reading: models.Reading{TemperatureF: 88, Humidity: 60, WindMph: 26, ConditionMain: "Squall", Description: "hurricane force winds and tornado"},
			want:    22,
			breakdown: models.Breakdown{
				models.ReasonHot:       1,
				models.ReasonHighWinds: 3,
				models.ReasonHurricane: 8,
				models.ReasonTornado:   10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calc.CalculatePoints(tt.reading)
			assert.Equal(t, tt.want, result.Points)
			assert.Equal(t, tt.breakdown, result.Breakdown)
		})
	}
}

func TestPointCalculator_TemperatureBandEdges(t *testing.T) {
	calc := NewPointCalculator()

	tests := []struct {
		temp float64
		want models.ReasonCode
	}{
		{temp: 95, want: models.ReasonExtremeHeat},
		{temp: 94.9, want: models.ReasonHot},
		{temp: 85, want: models.ReasonHot},
		{temp: 84.9, want: ""},
		{temp: 40.1, want: ""},
		{temp: 40, want: models.ReasonCold},
		{temp: 32, want: models.ReasonFreezing},
		{temp: 20.1, want: models.ReasonFreezing},
		{temp: 20, want: models.ReasonExtremeCold},
		{temp: -30, want: models.ReasonExtremeCold},
	}

	for _, tt := range tests {
		result := calc.CalculatePoints(models.Reading{TemperatureF: tt.temp, Humidity: 50})
		var got models.ReasonCode
		for reason := range result.Breakdown {
			if reason.IsTemperatureBand() {
				got = reason
			}
		}
		assert.Equal(t, tt.want, got, "temperature %.1f", tt.temp)
	}
}

func TestPointCalculator_Properties(t *testing.T) {
	calc := NewPointCalculator()
	rng := rand.New(rand.NewSource(42))
	conditions := []string{"Clear", "Rain", "Snow", "Thunderstorm", "Drizzle", "Mist", "Clouds"}
	descriptions := []string{"", "fog", "blizzard", "tornado nearby", "hurricane", "light rain", "mist and fog"}

	for i := 0; i < 2000; i++ {
		reading := models.Reading{
			TemperatureF:  rng.Float64()*200 - 60,
			Humidity:      rng.Intn(101),
			WindMph:       rng.Float64() * 60,
			ConditionMain: conditions[rng.Intn(len(conditions))],
			Description:   descriptions[rng.Intn(len(descriptions))],
		}
		result := calc.CalculatePoints(reading)

		assert.Equal(t, result.Breakdown.Total(), result.Points)
		assert.GreaterOrEqual(t, result.Points, 0)

		bands := 0
		for reason := range result.Breakdown {
			if reason.IsTemperatureBand() {
				bands++
			}
		}
		assert.LessOrEqual(t, bands, 1)
	}
}

func TestPointCalculator_Summary(t *testing.T) {
	calc := NewPointCalculator()

	result := calc.CalculatePoints(models.Reading{TemperatureF: 103, Humidity: 18, ConditionMain: "Clear", Description: "clear sky"})
	assert.Equal(t, "clear sky - Extreme heat, Low humidity", result.Summary)

	result = calc.CalculatePoints(models.Reading{TemperatureF: 70, Humidity: 50, ConditionMain: "Clouds"})
	assert.Equal(t, "Clouds", result.Summary)
}
