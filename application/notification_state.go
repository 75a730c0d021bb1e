package application

import (
	"sync"
	"time"
)

// NotificationState remembers what was already announced so a user is not
// told about the same award twice and the quota notice fires once per day.
// It is owned by the pipeline and lost on restart.
type NotificationState struct {
	mu            sync.Mutex
	lastAward     map[string]int64
	quotaNotified time.Time
}

func NewNotificationState() *NotificationState {
	return &NotificationState{
		lastAward: make(map[string]int64),
	}
}

// ShouldAnnounceAward reports whether the award is newer than the last one
// announced for the user, and marks it announced
func (s *NotificationState) ShouldAnnounceAward(userID string, awardID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastAward[userID]; ok && awardID <= last {
		return false
	}
	s.lastAward[userID] = awardID
	return true
}

// ShouldAnnounceQuota reports whether the exhaustion notice for day is still
// pending, and marks it sent
func (s *NotificationState) ShouldAnnounceQuota(day time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quotaNotified.Equal(day) {
		return false
	}
	s.quotaNotified = day
	return true
}

// Forget drops a user's entries, used when they leave
func (s *NotificationState) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastAward, userID)
}
