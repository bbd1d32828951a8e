package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_NewIsClosed(t *testing.T) {
	b := New("assessor")
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "assessor", b.Name())
	assert.True(t, b.Allow())
}

// Each case replays outcomes of assessor calls: f is a failure, s a success.
// want holds the state after every outcome.
func TestBreaker_Transitions(t *testing.T) {
	cases := []struct {
		name     string
		failures int
		probes   int
		outcomes string
		want     []State
	}{
		{
			name:     "opens on the threshold failure",
			failures: 3, probes: 1,
			outcomes: "fff",
			want:     []State{StateClosed, StateClosed, StateOpen},
		},
		{
			name:     "success clears the failure streak",
			failures: 3, probes: 1,
			outcomes: "ffsfff",
			want:     []State{StateClosed, StateClosed, StateClosed, StateClosed, StateClosed, StateOpen},
		},
		{
			name:     "closes after enough probe successes",
			failures: 1, probes: 2,
			outcomes: "fss",
			want:     []State{StateOpen, StateOpen, StateClosed},
		},
		{
			name:     "failure while open restarts the probe count",
			failures: 1, probes: 3,
			outcomes: "fssfsss",
			want:     []State{StateOpen, StateOpen, StateOpen, StateOpen, StateOpen, StateOpen, StateClosed},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Len(t, tc.want, len(tc.outcomes))
			b := New("assessor", WithFailureThreshold(tc.failures), WithSuccessThreshold(tc.probes))
			for i, o := range tc.outcomes {
				if o == 'f' {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				assert.Equal(t, tc.want[i], b.State(), "after outcome %d (%c)", i, o)
			}
		})
	}
}

func TestBreaker_ReportsStateChangesOnce(t *testing.T) {
	b := New("assessor", WithFailureThreshold(1), WithSuccessThreshold(1))

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback, "still open")
	assert.False(t, change.Opened, "already open")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed)
}

func TestBreaker_Reset(t *testing.T) {
	b := New("assessor", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_AllowHonoursCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := New("assessor", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(func() time.Time { return now }))

	b.RecordFailure()
	assert.False(t, b.Allow(), "open breaker rejects during cooldown")

	now = now.Add(61 * time.Second)
	assert.True(t, b.Allow(), "one probe after cooldown")
	assert.False(t, b.Allow(), "second probe waits for the next window")

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
}
