package service

import (
	"errors"

	"weatherbot/weather"
)

var (
	// ErrQuotaExhausted means the provider budget refused the call. It is
	// flow control, not a failure.
	ErrQuotaExhausted = errors.New("weather api quota exhausted")

	// ErrPersistenceFailure means a fetched reading could not be stored
	ErrPersistenceFailure = errors.New("failed to persist weather data")

	// ErrUserNotFound is returned for unknown participants
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive is returned when an operation needs an active participant
	ErrUserInactive = errors.New("user is not active")

	ErrLocationNotFound    = weather.ErrLocationNotFound
	ErrProviderUnavailable = weather.ErrProviderUnavailable
	ErrParseFailure        = weather.ErrParseFailure
)
