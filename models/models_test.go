package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakdown_MergeAndSorted(t *testing.T) {
	a := Breakdown{ReasonRain: 2, ReasonWindy: 1}
	b := Breakdown{ReasonRain: 2, ReasonHighWinds: 3}

	merged := a.Merge(b)
	assert.Equal(t, Breakdown{ReasonRain: 4, ReasonWindy: 1, ReasonHighWinds: 3}, merged)
	assert.Equal(t, 8, merged.Total())
	// Inputs are left alone
	assert.Equal(t, 2, a[ReasonRain])

	sorted := merged.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, ReasonRain, sorted[0].Reason)
	assert.Equal(t, ReasonHighWinds, sorted[1].Reason)
	assert.Equal(t, ReasonWindy, sorted[2].Reason)
}

func TestBreakdown_UnmarshalRejectsUnknownCodes(t *testing.T) {
	var b Breakdown
	require.NoError(t, json.Unmarshal([]byte(`{"rain":2,"fog":1}`), &b))
	assert.Equal(t, Breakdown{ReasonRain: 2, ReasonFog: 1}, b)

	assert.Error(t, json.Unmarshal([]byte(`{"sunshine":5}`), &b))

	require.NoError(t, json.Unmarshal([]byte(`null`), &b))
	assert.Nil(t, b)
}

func TestReasonCode_Label(t *testing.T) {
	assert.Equal(t, "Fog/mist", ReasonFog.Label())
	assert.Equal(t, "custom", ReasonCode("custom").Label())
	assert.True(t, ReasonFreezing.IsTemperatureBand())
	assert.False(t, ReasonSnow.IsTemperatureBand())
}

func TestDayOf(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on June 2 is still June 1 in New York
	at := time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), DayOf(at, ny))
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), DayOf(at, nil))
}

func TestParseLeaderboardKind(t *testing.T) {
	tests := map[string]LeaderboardKind{
		"":         LeaderboardAllTime,
		"all-time": LeaderboardAllTime,
		"Daily":    LeaderboardBestDay,
		"bestday":  LeaderboardBestDay,
		" week ":   LeaderboardWeekly,
	}
	for input, want := range tests {
		got, err := ParseLeaderboardKind(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLeaderboardKind("monthly")
	assert.Error(t, err)
}

func TestUser_LifecycleKeepsJoinTime(t *testing.T) {
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &User{UserID: "u1", IsActive: true, JoinedAt: joined}
	admin := "admin-1"

	user.Deactivate(&admin, joined.Add(time.Hour))
	assert.False(t, user.IsActive)
	assert.Equal(t, &admin, user.RemovedBy)

	user.Reactivate(nil, joined.Add(2*time.Hour))
	assert.True(t, user.IsActive)
	assert.Nil(t, user.ReactivatedBy)
	assert.Equal(t, joined, user.JoinedAt)
}

func TestUser_DisplayLocation(t *testing.T) {
	user := &User{City: "London", Country: "GB"}
	assert.Equal(t, "United Kingdom", user.DisplayLocation())

	user.ApplyLocation(Location{City: "Austin", Region: "Texas", Country: "US", Latitude: 30.27, Longitude: -97.74})
	assert.Equal(t, "Texas", user.DisplayLocation())
	assert.True(t, user.HasCoordinates())

	user = &User{City: "Reykjavik", Country: "is"}
	assert.Equal(t, "IS", user.DisplayLocation())
}

func TestObservation_LegacyRows(t *testing.T) {
	legacy := &Observation{TemperatureF: 30, Description: "snow"}
	assert.False(t, legacy.IsScored())
	assert.Equal(t, 0, legacy.PointsOrZero())

	scored := NewObservation("u1", Reading{TemperatureF: 30}, ScoreResult{Points: 2, Breakdown: Breakdown{ReasonFreezing: 2}}, time.Now())
	assert.True(t, scored.IsScored())
	assert.Equal(t, 2, scored.PointsOrZero())
	assert.Equal(t, 30.0, scored.Reading().TemperatureF)
}
