package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"weatherbot/clock"
	"weatherbot/events"
	"weatherbot/models"

	log "github.com/sirupsen/logrus"
)

const maxDisplayNameLength = 64

// Registration is the input for creating or reactivating a participant
type Registration struct {
	UserID      string
	DisplayName string
	PostalCode  string
	CountryHint string
	Location    models.Location
	Actor       *string // Admin who added the user, nil for self-service joins
}

// RegistrationKind tells what Register did to the participant row
type RegistrationKind int

const (
	// RegistrationCreated is a first join
	RegistrationCreated RegistrationKind = iota
	// RegistrationReactivated brings back a user who had left
	RegistrationReactivated
	// RegistrationUpdated changes the details of a user who is already active
	RegistrationUpdated
)

// Enters reports whether the user entered the competition with this call
func (k RegistrationKind) Enters() bool {
	return k == RegistrationCreated || k == RegistrationReactivated
}

func (k RegistrationKind) String() string {
	switch k {
	case RegistrationCreated:
		return "created"
	case RegistrationReactivated:
		return "reactivated"
	case RegistrationUpdated:
		return "updated"
	}
	return "unknown"
}

// RegistryService owns every write to the participant table
type RegistryService struct {
	uowFactory UnitOfWorkFactory
	clock      clock.Clock
}

func NewRegistryService(uowFactory UnitOfWorkFactory, clk clock.Clock) *RegistryService {
	if clk == nil {
		clk = clock.System()
	}
	return &RegistryService{uowFactory: uowFactory, clock: clk}
}

// Register creates a user, reactivates one who left, or updates the details
// of an active one. Reactivation keeps the original join time.
func (s *RegistryService) Register(ctx context.Context, reg Registration) (*models.User, RegistrationKind, error) {
	reg.UserID = strings.TrimSpace(reg.UserID)
	if reg.UserID == "" {
		return nil, RegistrationCreated, fmt.Errorf("user id is required")
	}
	reg.DisplayName = normalizeDisplayName(reg.DisplayName, reg.UserID)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, RegistrationCreated, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now().UTC()
	user, err := uow.UserRepository().GetByID(ctx, reg.UserID)
	if err != nil {
		return nil, RegistrationCreated, fmt.Errorf("failed to get user: %w", err)
	}

	kind := RegistrationCreated
	if user == nil {
		user = &models.User{
			UserID:   reg.UserID,
			IsActive: true,
			JoinedAt: now,
		}
		if reg.Actor != nil {
			user.AddedBy = reg.Actor
			user.AddedAt = &now
		}
		applyRegistration(user, reg)
		if err := uow.UserRepository().Create(ctx, user); err != nil {
			return nil, kind, fmt.Errorf("failed to create user: %w", err)
		}
	} else {
		kind = RegistrationUpdated
		if !user.IsActive {
			kind = RegistrationReactivated
			user.Reactivate(reg.Actor, now)
		}
		applyRegistration(user, reg)
		if err := uow.UserRepository().Update(ctx, user); err != nil {
			return nil, kind, fmt.Errorf("failed to update user: %w", err)
		}
	}

	if kind.Enters() {
		uow.EventBus().Publish(events.UserJoinedEvent{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			Region:      user.DisplayLocation(),
			Rejoined:    kind == RegistrationReactivated,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, kind, fmt.Errorf("failed to commit transaction: %w", err)
	}

	fields := log.Fields{
		"user_id":      user.UserID,
		"region":       user.DisplayLocation(),
		"registration": kind.String(),
	}
	if reg.Actor != nil {
		fields["admin_id"] = *reg.Actor
	}
	log.WithFields(fields).Info("User registered for weather competition")

	return user, kind, nil
}

// Deactivate soft-deletes a user. It returns false when the user was not
// active.
func (s *RegistryService) Deactivate(ctx context.Context, userID string, actor *string) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return false, nil
	}

	user.Deactivate(actor, s.clock.Now().UTC())
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return false, fmt.Errorf("failed to deactivate user: %w", err)
	}

	uow.EventBus().Publish(events.UserLeftEvent{UserID: userID, Actor: actor})

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	fields := log.Fields{"user_id": userID}
	if actor != nil {
		fields["admin_id"] = *actor
	}
	log.WithFields(fields).Info("User left weather competition")
	return true, nil
}

// SetActive toggles the active flag directly, bypassing join validation
func (s *RegistryService) SetActive(ctx context.Context, adminID, userID string, active bool) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	now := s.clock.Now().UTC()
	admin := adminID
	switch {
	case active && !user.IsActive:
		user.Reactivate(&admin, now)
	case !active && user.IsActive:
		user.Deactivate(&admin, now)
	}

	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	uow.EventBus().Publish(events.AdminOverrideEvent{
		AdminID: adminID,
		UserID:  userID,
		Action:  "set_active",
		Value:   strconv.FormatBool(active),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"active":   active,
	}).Warn("Admin override: active flag set directly")
	return nil
}

// Get returns a user, or nil when unknown
func (s *RegistryService) Get(ctx context.Context, userID string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListActive returns the users the hourly pipeline checks
func (s *RegistryService) ListActive(ctx context.Context) ([]*models.User, error) {
	return s.List(ctx, false)
}

// List returns users, including inactive ones when requested
func (s *RegistryService) List(ctx context.Context, includeInactive bool) ([]*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	var users []*models.User
	var err error
	if includeInactive {
		users, err = uow.UserRepository().List(ctx, true)
	} else {
		users, err = uow.UserRepository().ListActive(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// MarkChecked records that a user's weather was just fetched
func (s *RegistryService) MarkChecked(ctx context.Context, userID string, at time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.UserRepository().TouchLastChecked(ctx, userID, at); err != nil {
		return fmt.Errorf("failed to mark user checked: %w", err)
	}
	return uow.Commit()
}

func applyRegistration(user *models.User, reg Registration) {
	user.DisplayName = reg.DisplayName
	user.PostalCode = strings.ToUpper(strings.TrimSpace(reg.PostalCode))
	user.CountryHint = strings.ToUpper(strings.TrimSpace(reg.CountryHint))
	user.Latitude, user.Longitude = nil, nil
	user.ApplyLocation(reg.Location)
}

func normalizeDisplayName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if runes := []rune(name); len(runes) > maxDisplayNameLength {
		name = string(runes[:maxDisplayNameLength])
	}
	return name
}
