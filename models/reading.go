package models

import (
	"strings"
	"time"
)

// Reading is one normalized weather observation from the provider.
// Units are imperial at the boundary: Fahrenheit and miles per hour.
type Reading struct {
	TemperatureF  float64   `json:"temperature_f"`
	Humidity      int       `json:"humidity"`
	WindMph       float64   `json:"wind_mph"`
	ConditionCode int       `json:"condition_code"`
	ConditionMain string    `json:"condition"`
	Description   string    `json:"description"`
	Location      Location  `json:"location"`
	ObservedAt    time.Time `json:"observed_at"`
}

// ConditionText returns the text used for condition keyword matching
func (r Reading) ConditionText() string {
	return strings.TrimSpace(r.ConditionMain + " " + r.Description)
}

// TemperatureC converts the reading temperature for display
func (r Reading) TemperatureC() float64 {
	return (r.TemperatureF - 32) * 5 / 9
}

// WindKph converts the reading wind speed for display
func (r Reading) WindKph() float64 {
	return r.WindMph * 1.609344
}
