package service

import (
	"strings"

	"weatherbot/models"
)

// Temperature band thresholds in Fahrenheit
const (
	extremeHeatF = 95.0
	hotF         = 85.0
	extremeColdF = 20.0
	freezingF    = 32.0
	coldF        = 40.0
)

// Wind thresholds in mph
const (
	highWindsMph = 25.0
	windyMph     = 15.0
)

// Humidity thresholds in percent
const (
	highHumidity = 85
	lowHumidity  = 20
)

type keywordRule struct {
	keywords []string
	reason   models.ReasonCode
	points   int
}

// Condition keywords, first match wins
var conditionRules = []keywordRule{
	{keywords: []string{"thunderstorm"}, reason: models.ReasonThunderstorm, points: 4},
	{keywords: []string{"snow"}, reason: models.ReasonSnow, points: 3},
	{keywords: []string{"rain"}, reason: models.ReasonRain, points: 2},
	{keywords: []string{"drizzle"}, reason: models.ReasonDrizzle, points: 1},
}

// Description extras, every match applies
var extraRules = []keywordRule{
	{keywords: []string{"fog", "mist"}, reason: models.ReasonFog, points: 1},
	{keywords: []string{"tornado"}, reason: models.ReasonTornado, points: 10},
	{keywords: []string{"hurricane"}, reason: models.ReasonHurricane, points: 8},
	{keywords: []string{"blizzard"}, reason: models.ReasonBlizzard, points: 5},
}

// PointCalculator scores readings. It is pure and safe for concurrent use.
type PointCalculator struct{}

func NewPointCalculator() *PointCalculator {
	return &PointCalculator{}
}

// CalculatePoints converts a reading into points with an itemized breakdown
func (c *PointCalculator) CalculatePoints(reading models.Reading) models.ScoreResult {
	breakdown := models.Breakdown{}
	var order []models.ReasonCode

	add := func(reason models.ReasonCode, points int) {
		if _, seen := breakdown[reason]; !seen {
			order = append(order, reason)
		}
		breakdown[reason] += points
	}

	switch temp := reading.TemperatureF; {
	case temp >= extremeHeatF:
		add(models.ReasonExtremeHeat, 3)
	case temp >= hotF:
		add(models.ReasonHot, 1)
	case temp <= extremeColdF:
		add(models.ReasonExtremeCold, 3)
	case temp <= freezingF:
		add(models.ReasonFreezing, 2)
	case temp <= coldF:
		add(models.ReasonCold, 1)
	}

	condition := strings.ToLower(reading.ConditionText())
	for _, rule := range conditionRules {
		if containsAny(condition, rule.keywords) {
			add(rule.reason, rule.points)
			break
		}
	}

	switch wind := reading.WindMph; {
	case wind > highWindsMph:
		add(models.ReasonHighWinds, 3)
	case wind >= windyMph:
		add(models.ReasonWindy, 1)
	}

	if reading.Humidity > highHumidity {
		add(models.ReasonHighHumidity, 1)
	}
	if reading.Humidity < lowHumidity {
		add(models.ReasonLowHumidity, 1)
	}

	description := strings.ToLower(reading.Description)
	for _, rule := range extraRules {
		if containsAny(description, rule.keywords) {
			add(rule.reason, rule.points)
		}
	}

	return models.ScoreResult{
		Points:    breakdown.Total(),
		Breakdown: breakdown,
		Summary:   summarize(reading, order),
	}
}

func summarize(reading models.Reading, order []models.ReasonCode) string {
	condition := reading.ConditionMain
	if reading.Description != "" {
		condition = reading.Description
	}
	if condition == "" {
		condition = "Unknown conditions"
	}
	if len(order) == 0 {
		return condition
	}

	labels := make([]string, len(order))
	for i, reason := range order {
		labels[i] = reason.Label()
	}
	return condition + " - " + strings.Join(labels, ", ")
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
