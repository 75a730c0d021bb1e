package testutil

import (
	"time"

	"weatherbot/models"
)

// CreateTestUser creates an active participant with a US postal code
func CreateTestUser(userID, displayName string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		UserID:      userID,
		DisplayName: displayName,
		PostalCode:  "10001",
		City:        "New York",
		Region:      "NY",
		Country:     "US",
		IsActive:    true,
		JoinedAt:    now,
	}
}

// CreateTestUserAt creates a participant with a specific postal code and join time
func CreateTestUserAt(userID, displayName, postalCode string, joinedAt time.Time) *models.User {
	user := CreateTestUser(userID, displayName)
	user.PostalCode = postalCode
	user.JoinedAt = joinedAt.UTC()
	return user
}

// CreateTestReading creates a light rain reading with the given condition code and temperature
func CreateTestReading(conditionCode int, temperatureF float64, observedAt time.Time) models.Reading {
	return models.Reading{
		TemperatureF:  temperatureF,
		Humidity:      70,
		WindMph:       5,
		ConditionCode: conditionCode,
		ConditionMain: "Rain",
		Description:   "light rain",
		ObservedAt:    observedAt.UTC(),
	}
}

// CreateTestObservation creates a scored observation worth the given points
func CreateTestObservation(userID string, points int, observedAt time.Time) *models.Observation {
	reading := CreateTestReading(500, 60, observedAt)
	result := models.ScoreResult{
		Points:    points,
		Breakdown: models.Breakdown{models.ReasonRain: points},
	}
	return models.NewObservation(userID, reading, result, observedAt.UTC())
}

// CreateLegacyObservation creates an unscored row as written before scoring existed
func CreateLegacyObservation(userID string, reading models.Reading) *models.Observation {
	return &models.Observation{
		UserID:        userID,
		ObservedAt:    reading.ObservedAt,
		TemperatureF:  reading.TemperatureF,
		Humidity:      reading.Humidity,
		WindMph:       reading.WindMph,
		ConditionCode: reading.ConditionCode,
		ConditionMain: reading.ConditionMain,
		Description:   reading.Description,
	}
}

// CreateTestAward creates an award entry for the given points and running total
func CreateTestAward(userID string, points int, totalAfter int64, awardedAt time.Time) *models.AwardRecord {
	return &models.AwardRecord{
		UserID:          userID,
		Points:          points,
		Breakdown:       models.Breakdown{models.ReasonRain: points},
		WeatherSnapshot: CreateTestReading(500, 60, awardedAt),
		TotalAfter:      totalAfter,
		AwardedAt:       awardedAt.UTC(),
	}
}
