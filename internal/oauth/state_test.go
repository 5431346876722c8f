package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateIsSingleUse(t *testing.T) {
	store := NewStateStore(time.Minute)

	state := store.Issue(1)
	require.NotEmpty(t, state)

	require.True(t, store.Consume(state, 1))
	require.False(t, store.Consume(state, 1), "state must not be reusable")
}

func TestStateBoundToProvider(t *testing.T) {
	store := NewStateStore(time.Minute)

	state := store.Issue(1)
	require.False(t, store.Consume(state, 2))
	// A mismatched consume still burns the state.
	require.False(t, store.Consume(state, 1))
}

func TestUnknownStateRejected(t *testing.T) {
	store := NewStateStore(time.Minute)
	require.False(t, store.Consume("never-issued", 1))
}

func TestExpiredStateRejected(t *testing.T) {
	store := NewStateStore(time.Minute)

	state := store.Issue(1)
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	require.False(t, store.Consume(state, 1))
}

func TestEachIssueIsFresh(t *testing.T) {
	store := NewStateStore(time.Minute)
	require.NotEqual(t, store.Issue(1), store.Issue(1))
}
