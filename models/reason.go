package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ReasonCode identifies a single scoring rule. The set is closed: codes are
// never removed once written, so historical breakdowns always decode.
type ReasonCode string

const (
	// Temperature bands, at most one per reading
	ReasonExtremeHeat ReasonCode = "extreme_heat"
	ReasonHot         ReasonCode = "hot"
	ReasonExtremeCold ReasonCode = "extreme_cold"
	ReasonFreezing    ReasonCode = "freezing"
	ReasonCold        ReasonCode = "cold"

	// Condition keywords, at most one per reading
	ReasonThunderstorm ReasonCode = "thunderstorm"
	ReasonSnow         ReasonCode = "snow"
	ReasonRain         ReasonCode = "rain"
	ReasonDrizzle      ReasonCode = "drizzle"

	// Wind bands, at most one per reading
	ReasonHighWinds ReasonCode = "high_winds"
	ReasonWindy     ReasonCode = "windy"

	// Humidity, both may apply
	ReasonHighHumidity ReasonCode = "high_humidity"
	ReasonLowHumidity  ReasonCode = "low_humidity"

	// Description extras, any combination
	ReasonFog       ReasonCode = "fog"
	ReasonTornado   ReasonCode = "tornado"
	ReasonHurricane ReasonCode = "hurricane"
	ReasonBlizzard  ReasonCode = "blizzard"
)

var reasonLabels = map[ReasonCode]string{
	ReasonExtremeHeat:  "Extreme heat",
	ReasonHot:          "Hot",
	ReasonExtremeCold:  "Extreme cold",
	ReasonFreezing:     "Freezing",
	ReasonCold:         "Cold",
	ReasonThunderstorm: "Thunderstorm",
	ReasonSnow:         "Snow",
	ReasonRain:         "Rain",
	ReasonDrizzle:      "Drizzle",
	ReasonHighWinds:    "High winds",
	ReasonWindy:        "Windy",
	ReasonHighHumidity: "High humidity",
	ReasonLowHumidity:  "Low humidity",
	ReasonFog:          "Fog/mist",
	ReasonTornado:      "Tornado",
	ReasonHurricane:    "Hurricane",
	ReasonBlizzard:     "Blizzard",
}

// ParseReasonCode validates a stored reason code
func ParseReasonCode(s string) (ReasonCode, error) {
	code := ReasonCode(s)
	if _, ok := reasonLabels[code]; !ok {
		return "", fmt.Errorf("unknown reason code %q", s)
	}
	return code, nil
}

// Label returns the human readable name of the reason
func (r ReasonCode) Label() string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return string(r)
}

// IsTemperatureBand returns true for the mutually exclusive temperature reasons
func (r ReasonCode) IsTemperatureBand() bool {
	switch r {
	case ReasonExtremeHeat, ReasonHot, ReasonExtremeCold, ReasonFreezing, ReasonCold:
		return true
	}
	return false
}

// Breakdown maps each scoring reason to the points it contributed
type Breakdown map[ReasonCode]int

// Total sums every reason's points
func (b Breakdown) Total() int {
	total := 0
	for _, points := range b {
		total += points
	}
	return total
}

// Merge adds other into b key by key
func (b Breakdown) Merge(other Breakdown) Breakdown {
	merged := make(Breakdown, len(b)+len(other))
	for code, points := range b {
		merged[code] += points
	}
	for code, points := range other {
		merged[code] += points
	}
	return merged
}

// ReasonPoints is one breakdown entry
type ReasonPoints struct {
	Reason ReasonCode
	Points int
}

// Sorted returns entries by points descending, then code ascending
func (b Breakdown) Sorted() []ReasonPoints {
	entries := make([]ReasonPoints, 0, len(b))
	for code, points := range b {
		entries = append(entries, ReasonPoints{Reason: code, Points: points})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Reason < entries[j].Reason
	})
	return entries
}

// UnmarshalJSON rejects reason codes outside the closed set
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Breakdown, len(raw))
	for key, points := range raw {
		code, err := ParseReasonCode(key)
		if err != nil {
			return err
		}
		out[code] = points
	}
	*b = out
	return nil
}

// ScoreResult is the output of the point calculator for one reading
type ScoreResult struct {
	Points    int       `json:"points"`
	Breakdown Breakdown `json:"breakdown"`
	Summary   string    `json:"summary"`
}
