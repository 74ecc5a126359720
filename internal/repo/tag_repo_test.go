package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagCreateAndFind(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	created, err := r.tags.Create(ctx, "classic")
	require.NoError(t, err)

	found, err := r.tags.FindByName(ctx, "classic")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = r.tags.Create(ctx, "classic")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = r.tags.FindByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTagList(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	for _, name := range []string{"Space Opera", "classic", "opera buffa"} {
		_, err := r.tags.Create(ctx, name)
		require.NoError(t, err)
	}

	all, err := r.tags.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matched, err := r.tags.List(ctx, "OPERA")
	require.NoError(t, err)
	require.Len(t, matched, 2)
}
