package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/guess-game/internal/errors"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get("s1")
	assert.False(t, ok)

	require.NoError(t, store.Insert(NewSession("s2", "q")))
	require.NoError(t, store.Insert(NewSession("s1", "q")))

	err := store.Insert(NewSession("s1", "other"))
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionExists))

	s, ok := store.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "q", s.Question)
	assert.Equal(t, []string{"s1", "s2"}, store.IDs())
}
