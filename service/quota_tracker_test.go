package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weatherbot/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsage struct {
	mu     sync.Mutex
	counts map[time.Time]int
	err    error
}

func newMemoryUsage() *memoryUsage {
	return &memoryUsage{counts: map[time.Time]int{}}
}

func (m *memoryUsage) Get(ctx context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[day], nil
}

func (m *memoryUsage) Increment(ctx context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[day]++
	return m.counts[day], nil
}

type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func TestQuotaTracker_CanCallUntilLimitThenRollover(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	tracker := NewQuotaTracker(newMemoryUsage(), 5, WithClock(fake))

	for i := 0; i < 5; i++ {
		ok, err := tracker.CanCall(ctx)
		require.NoError(t, err)
		require.True(t, ok, "call %d should be allowed", i)
		require.NoError(t, tracker.RecordCall(ctx, fake.Now()))
	}

	ok, err := tracker.CanCall(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	fake.Advance(13 * time.Hour)
	ok, err = tracker.CanCall(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "still the same day")

	fake.Advance(time.Hour)
	ok, err = tracker.CanCall(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "new day resets the budget")
}

func TestQuotaTracker_DayBoundaryFollowsLocation(t *testing.T) {
	ctx := context.Background()
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// 03:00 UTC is still the previous evening in Chicago
	fake := clock.NewFakeClock(time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC))
	usage := newMemoryUsage()
	tracker := NewQuotaTracker(usage, 10, WithClock(fake), WithLocation(chicago))

	require.NoError(t, tracker.RecordCall(ctx, fake.Now()))
	assert.Equal(t, 1, usage.counts[time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)])
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), tracker.Today())
}

func TestQuotaTracker_SnapshotError(t *testing.T) {
	usage := newMemoryUsage()
	usage.err = errors.New("db down")
	tracker := NewQuotaTracker(usage, 10)

	ok, err := tracker.CanCall(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, MaxPace, tracker.Pace(context.Background()))
}

func TestQuotaState_Pace(t *testing.T) {
	base := 30 * time.Second

	tests := []struct {
		name  string
		state QuotaState
		want  time.Duration
	}{
		{name: "ample budget clamps to minimum", state: QuotaState{Limit: 100000, Remaining: 100000, HoursLeft: 12}, want: MinPace},
		{name: "moderate budget", state: QuotaState{Limit: 1000, Remaining: 600, HoursLeft: 12}, want: 600 * time.Millisecond},
		{name: "scarce budget clamps to maximum", state: QuotaState{Limit: 1000, Remaining: 3, HoursLeft: 12}, want: MaxPace},
		{name: "nothing left", state: QuotaState{Limit: 1000, Remaining: 0, HoursLeft: 12}, want: MaxPace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Pace(base))
		})
	}
}

func TestQuotaState_Admit(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		random    float64
		wantP     float64
		want      bool
	}{
		{name: "healthy budget always admits", remaining: 500, random: 0.99, wantP: 1, want: true},
		{name: "exactly twenty percent admits", remaining: 200, random: 0.99, wantP: 1, want: true},
		{name: "below twenty percent heads", remaining: 150, random: 0.49, wantP: 0.5, want: true},
		{name: "below twenty percent tails", remaining: 150, random: 0.5, wantP: 0.5, want: false},
		{name: "below ten percent", remaining: 80, random: 0.2, wantP: 0.25, want: true},
		{name: "below ten percent skip", remaining: 80, random: 0.3, wantP: 0.25, want: false},
		{name: "below five percent", remaining: 40, random: 0.05, wantP: 0.1, want: true},
		{name: "below five percent skip", remaining: 40, random: 0.2, wantP: 0.1, want: false},
		{name: "exhausted never admits", remaining: 0, random: 0, wantP: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := QuotaState{Limit: 1000, Remaining: tt.remaining, Used: 1000 - tt.remaining}
			assert.Equal(t, tt.wantP, state.AdmitProbability())
			assert.Equal(t, tt.want, state.Admit(fixedRandom(tt.random)))
		})
	}
}

func TestQuotaTracker_AdmitUsesInjectedRandom(t *testing.T) {
	ctx := context.Background()
	usage := newMemoryUsage()
	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	usage.counts[time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)] = 90

	admitted, state, err := NewQuotaTracker(usage, 100, WithClock(fake), WithRandomSource(fixedRandom(0.0))).Admit(ctx)
	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, 10, state.Remaining)
	assert.InDelta(t, 14.0, state.HoursLeft, 0.001)

	admitted, _, err = NewQuotaTracker(usage, 100, WithClock(fake), WithRandomSource(fixedRandom(0.9))).Admit(ctx)
	require.NoError(t, err)
	assert.False(t, admitted)
}
