// Package filestore keeps the whole competition state in one JSON file. It
// is the legacy single-process backend; every writer is serialized by one
// mutex held from Begin to Commit or Rollback.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"weatherbot/events"
	"weatherbot/models"
	"weatherbot/service"
)

const (
	formatVersion    = 1
	DefaultMaxAwards = 500
	dayFormat        = "2006-01-02"
)

type state struct {
	Version           int                             `json:"version"`
	Users             map[string]*models.User         `json:"users"`
	Observations      []*models.Observation           `json:"observations"`
	NextObservationID int64                           `json:"next_observation_id"`
	Daily             map[string]*models.DailyPoints  `json:"daily_points"` // Keyed by user id and day
	Scores            map[string]*models.RunningScore `json:"scores"`
	Awards            []*models.AwardRecord           `json:"awards"`
	NextAwardID       int64                           `json:"next_award_id"`
	Usage             map[string]int                  `json:"api_usage"` // Keyed by day
}

func newState() *state {
	return &state{
		Version:           formatVersion,
		Users:             map[string]*models.User{},
		Daily:             map[string]*models.DailyPoints{},
		Scores:            map[string]*models.RunningScore{},
		Usage:             map[string]int{},
		NextObservationID: 1,
		NextAwardID:       1,
	}
}

// clone deep-copies the state through its JSON form
func (s *state) clone() (*state, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := newState()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	out.ensureMaps()
	return out, nil
}

func (s *state) ensureMaps() {
	if s.Users == nil {
		s.Users = map[string]*models.User{}
	}
	if s.Daily == nil {
		s.Daily = map[string]*models.DailyPoints{}
	}
	if s.Scores == nil {
		s.Scores = map[string]*models.RunningScore{}
	}
	if s.Usage == nil {
		s.Usage = map[string]int{}
	}
	if s.NextObservationID < 1 {
		s.NextObservationID = 1
	}
	if s.NextAwardID < 1 {
		s.NextAwardID = 1
	}
}

// Store is a JSON file backed implementation of the storage port
type Store struct {
	path      string
	maxAwards int
	eventBus  *events.Bus
	now       func() time.Time

	mu    sync.Mutex
	state *state
}

// Option customizes a Store
type Option func(*Store)

// WithMaxAwards bounds the award log; the oldest entries are pruned
func WithMaxAwards(n int) Option {
	return func(s *Store) { s.maxAwards = n }
}

// WithNow overrides the time source used for row timestamps
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the store from path, starting empty when the file does not
// exist. An empty path keeps the state in memory only.
func Open(path string, eventBus *events.Bus, opts ...Option) (*Store, error) {
	s := &Store{
		path:      path,
		maxAwards: DefaultMaxAwards,
		eventBus:  eventBus,
		now:       time.Now,
		state:     newState(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	loaded := newState()
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to decode store file %s: %w", path, err)
	}
	loaded.ensureMaps()
	s.state = loaded
	return s, nil
}

// UnitOfWorkFactory returns the factory for transactional access
func (s *Store) UnitOfWorkFactory() service.UnitOfWorkFactory {
	return &unitOfWorkFactory{store: s}
}

// UsageRepository returns the provider call counter. It takes the store lock
// briefly and must not be called while a unit of work is open on the same
// goroutine.
func (s *Store) UsageRepository() service.ApiUsageRepository {
	return &usageRepository{store: s}
}

// persist writes the state atomically through a temp file and rename
func (s *Store) persist(st *state) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

type usageRepository struct {
	store *Store
}

func (r *usageRepository) Get(ctx context.Context, day time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.state.Usage[day.Format(dayFormat)], nil
}

func (r *usageRepository) Increment(ctx context.Context, day time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	st := r.store.state
	key := day.Format(dayFormat)
	st.Usage[key]++
	if err := r.store.persist(st); err != nil {
		st.Usage[key]--
		return 0, err
	}
	return st.Usage[key], nil
}

func dailyKey(userID string, day time.Time) string {
	return userID + "|" + day.Format(dayFormat)
}

func sortUsers(users []*models.User) {
	sort.Slice(users, func(i, j int) bool {
		if !users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].JoinedAt.Before(users[j].JoinedAt)
		}
		return users[i].UserID < users[j].UserID
	})
}
