package models

import "time"

// Observation is one immutable weather_history row. Points, Breakdown and
// CalculatedAt are nil only for legacy rows that predate scoring.
type Observation struct {
	ID            int64      `db:"id"`
	UserID        string     `db:"user_id"`
	ObservedAt    time.Time  `db:"observed_at"`
	TemperatureF  float64    `db:"temperature_f"`
	Humidity      int        `db:"humidity"`
	WindMph       float64    `db:"wind_mph"`
	ConditionCode int        `db:"condition_code"`
	ConditionMain string     `db:"condition_main"`
	Description   string     `db:"description"`
	Points        *int       `db:"points"`
	Breakdown     Breakdown  `db:"breakdown"`
	CalculatedAt  *time.Time `db:"calculated_at"`
	Backfilled    bool       `db:"backfilled"`
	CreatedAt     time.Time  `db:"created_at"`
}

// NewObservation builds a freshly scored observation
func NewObservation(userID string, reading Reading, result ScoreResult, calculatedAt time.Time) *Observation {
	points := result.Points
	return &Observation{
		UserID:        userID,
		ObservedAt:    reading.ObservedAt,
		TemperatureF:  reading.TemperatureF,
		Humidity:      reading.Humidity,
		WindMph:       reading.WindMph,
		ConditionCode: reading.ConditionCode,
		ConditionMain: reading.ConditionMain,
		Description:   reading.Description,
		Points:        &points,
		Breakdown:     result.Breakdown,
		CalculatedAt:  &calculatedAt,
	}
}

// IsScored returns false for legacy rows waiting for back-fill
func (o *Observation) IsScored() bool {
	return o.CalculatedAt != nil && o.Points != nil
}

// PointsOrZero returns the awarded points, treating legacy rows as zero
func (o *Observation) PointsOrZero() int {
	if o.Points == nil {
		return 0
	}
	return *o.Points
}

// Reading reconstructs the raw reading stored on the row
func (o *Observation) Reading() Reading {
	return Reading{
		TemperatureF:  o.TemperatureF,
		Humidity:      o.Humidity,
		WindMph:       o.WindMph,
		ConditionCode: o.ConditionCode,
		ConditionMain: o.ConditionMain,
		Description:   o.Description,
		ObservedAt:    o.ObservedAt,
	}
}
