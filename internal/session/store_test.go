package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumeno-study/lumeno/internal/models"
)

func TestStoreSetGetClear(t *testing.T) {
	s := NewStore()

	_, ok := s.Get()
	assert.False(t, ok)
	assert.False(t, s.Checked())

	id := models.Identity{UID: "u1", Email: "u1@example.com", DisplayName: "Ada", AvatarURL: "https://img/1"}
	s.Set(id)

	got, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, id, got)

	s.Clear()
	got, ok = s.Get()
	assert.False(t, ok)
	assert.Equal(t, models.Identity{}, got)
}

func TestStoreSetReplacesWholeIdentity(t *testing.T) {
	s := NewStore()
	s.Set(models.Identity{UID: "u1", Email: "a@example.com", DisplayName: "A"})
	s.Set(models.Identity{UID: "u2"})

	got, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, models.Identity{UID: "u2"}, got)
}

func TestStoreMarkCheckedIsIdempotent(t *testing.T) {
	s := NewStore()
	s.MarkChecked()
	s.MarkChecked()

	assert.True(t, s.Checked())
	assert.False(t, s.Snapshot().Authenticated)
}

func TestStoreObserversSeeNewStateSynchronously(t *testing.T) {
	s := NewStore()

	var seen []State
	var readBack []bool
	unsubscribe := s.Subscribe(func(st State) {
		seen = append(seen, st)
		_, ok := s.Get()
		readBack = append(readBack, ok)
	})

	s.Set(models.Identity{UID: "u1"})
	require.Len(t, seen, 1, "observer must run before Set returns")
	assert.True(t, seen[0].Authenticated)

	s.MarkChecked()
	s.Clear()
	require.Len(t, seen, 3)
	assert.True(t, seen[1].Checked)
	assert.False(t, seen[2].Authenticated)
	assert.True(t, seen[2].Checked)
	assert.Equal(t, []bool{true, true, false}, readBack)

	unsubscribe()
	unsubscribe()
	s.Set(models.Identity{UID: "u2"})
	assert.Len(t, seen, 3)
}

func TestStoreObserversCalledInOrder(t *testing.T) {
	s := NewStore()

	var order []string
	s.Subscribe(func(State) { order = append(order, "first") })
	unsubscribeSecond := s.Subscribe(func(State) { order = append(order, "second") })
	s.Subscribe(func(State) { order = append(order, "third") })

	s.MarkChecked()
	assert.Equal(t, []string{"first", "second", "third"}, order)

	order = nil
	unsubscribeSecond()
	s.MarkChecked()
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(models.Identity{UID: "u1"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
			_, _ = s.Get()
		}()
	}
	wg.Wait()

	got, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "u1", got.UID)
}
