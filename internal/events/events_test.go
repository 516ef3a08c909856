package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	ev := NewBaseEvent(TypeBreakoutDetected, "scanner-worker")

	require.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeBreakoutDetected, ev.Type)
	assert.Equal(t, "scanner-worker", ev.Source)
	assert.Equal(t, "1.0", ev.Version)
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, 5*time.Second)
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ev := NewBaseEvent(TypeScanCompleted, "test")
		assert.False(t, seen[ev.ID], "duplicate event id %s", ev.ID)
		seen[ev.ID] = true
	}
}
