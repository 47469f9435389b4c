package idgen

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestULID(t *testing.T) {
	seen := make(map[string]bool)
	var ids []string
	for i := 0; i < 100; i++ {
		id := ULID{}.NewID()
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		ids = append(ids, id)
	}
	require.True(t, sort.StringsAreSorted(ids))
}

func TestUUID(t *testing.T) {
	id := UUID{}.NewID()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), parsed.Version())
}

func TestSequence(t *testing.T) {
	s := NewSequence(Func(func() string { return "fallback" }), "a", "b")
	require.Equal(t, "a", s.NewID())
	require.Equal(t, "b", s.NewID())
	require.Equal(t, "fallback", s.NewID())
}

func TestDefault(t *testing.T) {
	require.IsType(t, ULID{}, Default())
}
