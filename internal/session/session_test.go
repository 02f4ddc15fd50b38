package session

import (
	"destored/internal/model"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated() model.Session {
	return model.Session{
		AccessToken:  "A",
		RefreshToken: "R",
		User:         &model.User{ID: "u1", Role: model.RoleClient},
	}
}

func set(t *testing.T, h *Holder) uint64 {
	t.Helper()

	gen, err := h.Set(populated(), nil)
	require.NoError(t, err)
	return gen
}

func TestHolder_SetAndSnapshotCopies(t *testing.T) {
	h := NewHolder()

	gen := set(t, h)
	s, got := h.Snapshot()
	require.Equal(t, gen, got)

	s.User.ID = "mutated"
	again, _ := h.Snapshot()
	assert.Equal(t, "u1", again.User.ID)
}

func TestHolder_SetPersistFailure(t *testing.T) {
	h := NewHolder()
	boom := errors.New("disk full")

	_, err := h.Set(populated(), func() error { return boom })
	require.ErrorIs(t, err, boom)

	s, gen := h.Snapshot()
	assert.True(t, s.Empty())
	assert.Zero(t, gen)
}

func TestHolder_UpdateRespectsGeneration(t *testing.T) {
	h := NewHolder()
	gen := set(t, h)

	ok, err := h.Update(gen, func(s *model.Session) error {
		s.AccessToken = "A2"
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	s, sameGen := h.Snapshot()
	assert.Equal(t, "A2", s.AccessToken)
	assert.Equal(t, gen, sameGen)

	require.NoError(t, h.Clear("logout", nil))

	ok, err = h.Update(gen, func(s *model.Session) error {
		t.Fatal("update must not run on a superseded session")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)

	s, _ = h.Snapshot()
	assert.True(t, s.Empty())
}

func TestHolder_UpdateErrorKeepsSession(t *testing.T) {
	h := NewHolder()
	gen := set(t, h)

	ok, err := h.Update(gen, func(s *model.Session) error {
		s.AccessToken = "A2"
		return errors.New("disk full")
	})
	require.Error(t, err)
	assert.True(t, ok)

	s, _ := h.Snapshot()
	assert.Equal(t, "A", s.AccessToken)
}

func TestHolder_ClearAlwaysTearsDown(t *testing.T) {
	h := NewHolder()
	set(t, h)
	boom := errors.New("disk full")

	err := h.Clear("logout", func() error { return boom })
	require.ErrorIs(t, err, boom)

	s, _ := h.Snapshot()
	assert.True(t, s.Empty())
}

func TestHolder_ClearIf(t *testing.T) {
	h := NewHolder()
	old := set(t, h)
	set(t, h)

	persisted := 0
	cleanup := func() error {
		persisted++
		return nil
	}

	ok, err := h.ClearIf(old, "refresh failed", cleanup)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, persisted)

	s, gen := h.Snapshot()
	assert.False(t, s.Empty())

	ok, err = h.ClearIf(gen, "refresh failed", cleanup)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, persisted)

	s, _ = h.Snapshot()
	assert.True(t, s.Empty())
}

func TestHolder_Events(t *testing.T) {
	h := NewHolder()
	events, unsubscribe := h.Subscribe()

	gen := set(t, h)
	_, _ = h.Update(gen, func(s *model.Session) error { return nil })
	require.NoError(t, h.Clear("logout", nil))
	// clearing an empty session is silent
	require.NoError(t, h.Clear("logout", nil))

	assert.Equal(t, EventStarted, (<-events).Type)
	assert.Equal(t, EventRefreshed, (<-events).Type)
	ended := <-events
	assert.Equal(t, EventEnded, ended.Type)
	assert.Equal(t, "logout", ended.Reason)

	unsubscribe()
	_, open := <-events
	assert.False(t, open)

	// publishing after unsubscribe must not panic
	set(t, h)
}

func TestHolder_EventsInGenerationOrder(t *testing.T) {
	h := NewHolder()
	events, unsubscribe := h.Subscribe()

	var received []uint64
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range events {
			received = append(received, e.Generation)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = h.Set(populated(), nil)
				_ = h.Clear("logout", nil)
			}
		}()
	}
	wg.Wait()

	unsubscribe()
	<-drained

	require.NotEmpty(t, received)
	for i := 1; i < len(received); i++ {
		assert.Greater(t, received[i], received[i-1], "event %d out of order", i)
	}
}
