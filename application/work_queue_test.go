package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"weatherbot/models"
	"weatherbot/service"

	"github.com/stretchr/testify/assert"
)

func queueUsers(n int) []*models.User {
	users := make([]*models.User, n)
	for i := range users {
		users[i] = &models.User{UserID: fmt.Sprintf("u%d", i+1)}
	}
	return users
}

func recordingQueue(pace time.Duration) (*WorkQueue, *[]time.Duration) {
	var sleeps []time.Duration
	q := NewWorkQueue(2, func(context.Context) time.Duration { return pace })
	q.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return q, &sleeps
}

func TestWorkQueue_ProcessesInOrderWithPacing(t *testing.T) {
	q, sleeps := recordingQueue(200 * time.Millisecond)

	var seen []string
	stats := q.Run(context.Background(), queueUsers(5), func(ctx context.Context, user *models.User) error {
		seen = append(seen, user.UserID)
		return nil
	})

	assert.Equal(t, []string{"u1", "u2", "u3", "u4", "u5"}, seen)
	assert.Equal(t, QueueStats{Processed: 5}, stats)
	// No delay before the first user
	assert.Len(t, *sleeps, 4)
	for _, d := range *sleeps {
		assert.Equal(t, 200*time.Millisecond, d)
	}
}

func TestWorkQueue_FailuresDoNotStopTheRun(t *testing.T) {
	q, _ := recordingQueue(0)

	stats := q.Run(context.Background(), queueUsers(4), func(ctx context.Context, user *models.User) error {
		switch user.UserID {
		case "u2":
			return errors.New("provider timeout")
		case "u3":
			panic("bad reading")
		}
		return nil
	})

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 0, stats.Remaining)
	assert.False(t, stats.QuotaExhausted)
}

func TestWorkQueue_StopsOnQuota(t *testing.T) {
	q, _ := recordingQueue(0)

	var seen []string
	stats := q.Run(context.Background(), queueUsers(6), func(ctx context.Context, user *models.User) error {
		seen = append(seen, user.UserID)
		if user.UserID == "u3" {
			return fmt.Errorf("fetch: %w", service.ErrQuotaExhausted)
		}
		return nil
	})

	assert.Equal(t, []string{"u1", "u2", "u3"}, seen)
	assert.True(t, stats.QuotaExhausted)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 4, stats.Remaining)
}

func TestWorkQueue_StopsOnCancel(t *testing.T) {
	q, _ := recordingQueue(0)
	ctx, cancel := context.WithCancel(context.Background())

	stats := q.Run(ctx, queueUsers(5), func(ctx context.Context, user *models.User) error {
		if user.UserID == "u2" {
			cancel()
		}
		return nil
	})

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 3, stats.Remaining)
}

func TestWorkQueue_EmptyList(t *testing.T) {
	q := NewWorkQueue(0, nil)
	stats := q.Run(context.Background(), nil, func(ctx context.Context, user *models.User) error {
		t.Fatal("processor should not be called")
		return nil
	})
	assert.Equal(t, QueueStats{}, stats)
}
