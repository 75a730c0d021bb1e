package models

import (
	"time"
)

// User represents a participant in the weather competition
type User struct {
	UserID        string     `db:"user_id"` // Opaque id owned by the chat platform
	DisplayName   string     `db:"display_name"`
	PostalCode    string     `db:"postal_code"` // Private, never shown to other users
	CountryHint   string     `db:"country_hint"`
	City          string     `db:"city"`
	Region        string     `db:"region"`
	Country       string     `db:"country"`
	Latitude      *float64   `db:"latitude"`
	Longitude     *float64   `db:"longitude"`
	IsActive      bool       `db:"is_active"`
	JoinedAt      time.Time  `db:"joined_at"`
	LastCheckedAt *time.Time `db:"last_checked_at"`

	// Admin provenance
	AddedBy       *string    `db:"added_by"`
	AddedAt       *time.Time `db:"added_at"`
	ReactivatedBy *string    `db:"reactivated_by"`
	ReactivatedAt *time.Time `db:"reactivated_at"`
	RemovedBy     *string    `db:"removed_by"`
	RemovedAt     *time.Time `db:"removed_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DisplayLocation returns the privacy-preserving location shown to other users
func (u *User) DisplayLocation() string {
	loc := Location{City: u.City, Region: u.Region, Country: u.Country}
	return loc.DisplayRegion()
}

// HasCoordinates reports whether the user's location was geocoded
func (u *User) HasCoordinates() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// ApplyLocation copies a resolved location onto the user
func (u *User) ApplyLocation(loc Location) {
	u.City = loc.City
	u.Region = loc.Region
	u.Country = loc.Country
	if loc.HasCoordinates() {
		lat, lon := loc.Latitude, loc.Longitude
		u.Latitude = &lat
		u.Longitude = &lon
	}
}

// Deactivate soft-deletes the user, keeping all of their data
func (u *User) Deactivate(actor *string, at time.Time) {
	u.IsActive = false
	u.RemovedBy = actor
	u.RemovedAt = &at
}

// Reactivate brings a user back without touching their original join time
func (u *User) Reactivate(actor *string, at time.Time) {
	u.IsActive = true
	u.ReactivatedBy = actor
	u.ReactivatedAt = &at
}
