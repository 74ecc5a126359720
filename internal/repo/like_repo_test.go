package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeAddRemove(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	product, err := r.catalog.RegisterBook(ctx, testBook("0000000100"))
	require.NoError(t, err)

	count, err := r.likes.Count(ctx, 42, product.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Adding twice keeps a single row
	require.NoError(t, r.likes.Add(ctx, 42, product.ID))
	require.NoError(t, r.likes.Add(ctx, 42, product.ID))
	count, err = r.likes.Count(ctx, 42, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Other users are unaffected
	count, err = r.likes.Count(ctx, 7, product.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, r.likes.Remove(ctx, 42, product.ID))
	require.NoError(t, r.likes.Remove(ctx, 42, product.ID))
	count, err = r.likes.Count(ctx, 42, product.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
