package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetPageTagFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tag(t, "fiction", "classic")
	f.book(t, "Dune", withTags("fiction", "classic"))
	f.book(t, "Neuromancer", withTags("fiction"))
	f.book(t, "Emma", withTags("fiction", "classic"))
	f.book(t, "SPQR", withTags("classic"))

	page, err := f.engine.GetPage(ctx, Request{Page: 0, Size: 10, TagNames: []string{"fiction"}})
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 10, page.Size)
}

func TestGetPageTagCombinators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tag(t, "fiction", "classic", "award")
	dune := f.book(t, "Dune", withTags("fiction", "classic", "award"))
	neuromancer := f.book(t, "Neuromancer", withTags("fiction", "award"))
	emma := f.book(t, "Emma", withTags("classic"))
	f.book(t, "Untagged")

	tests := []struct {
		name       string
		tags       []string
		combinator Combinator
		want       []int64
	}{
		{"and requires every tag", []string{"fiction", "award"}, And, []int64{dune, neuromancer}},
		{"and with three tags", []string{"fiction", "classic", "award"}, And, []int64{dune}},
		{"or requires any tag", []string{"fiction", "classic"}, Or, []int64{dune, neuromancer, emma}},
		{"and with unknown tag is empty", []string{"fiction", "nonexistent-tag"}, And, []int64{}},
		{"or ignores unknown tag", []string{"classic", "nonexistent-tag"}, Or, []int64{dune, emma}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.engine.GetPage(ctx, Request{
				Size:       10,
				Sort:       byProductID(),
				TagNames:   tt.tags,
				Combinator: tt.combinator,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, productIDs(page))
			assert.Equal(t, int64(len(tt.want)), page.TotalElements)
		})
	}
}

func TestGetPageCategoryIncludesDescendants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.category(t, "Fiction", "")
	f.category(t, "SciFi", "Fiction")
	f.category(t, "History", "")
	novel := f.book(t, "Emma", withCategories("Fiction"))
	scifi := f.book(t, "Dune", withCategories("SciFi"))
	f.book(t, "SPQR", withCategories("History"))

	for _, c := range []Combinator{And, Or} {
		page, err := f.engine.GetPage(ctx, Request{
			Size:          10,
			Sort:          byProductID(),
			CategoryNames: []string{"Fiction"},
			Combinator:    c,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{novel, scifi}, productIDs(page), c.String())
	}

	// The response lists every category of the product, not only the matched one
	page, err := f.engine.GetPage(ctx, Request{Size: 10, CategoryNames: []string{"SciFi"}})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, []string{"SciFi"}, page.Content[0].Categories)
}

func TestGetPageCategoryAndTagCombined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.category(t, "Fiction", "")
	f.category(t, "SciFi", "Fiction")
	f.tag(t, "classic")
	// Two categories in the subtree must still count as one requirement
	both := f.book(t, "Dune", withCategories("Fiction", "SciFi"), withTags("classic"))
	f.book(t, "Neuromancer", withCategories("SciFi"))
	f.book(t, "Emma", withTags("classic"))

	page, err := f.engine.GetPage(ctx, Request{
		Size:          10,
		CategoryNames: []string{"Fiction"},
		TagNames:      []string{"classic"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{both}, productIDs(page))
	assert.Equal(t, int64(1), page.TotalElements)
	assert.ElementsMatch(t, []string{"Fiction", "SciFi"}, page.Content[0].Categories)
	assert.Equal(t, []string{"classic"}, page.Content[0].Tags)

	page, err = f.engine.GetPage(ctx, Request{
		Size:          10,
		CategoryNames: []string{"Fiction"},
		TagNames:      []string{"classic"},
		Combinator:    Or,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
}

func TestGetPageUnknownCategoryInFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.category(t, "Fiction", "")
	f.book(t, "Emma", withCategories("Fiction"))

	page, err := f.engine.GetPage(ctx, Request{Size: 10, CategoryNames: []string{"Fiction", "Nope"}})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(0), page.TotalElements)

	page, err = f.engine.GetPage(ctx, Request{Size: 10, CategoryNames: []string{"Fiction", "Nope"}, Combinator: Or})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)

	// Direct lookup still reports the missing category
	_, err = f.engine.DescendantNames(ctx, "Nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestGetPageCategoryCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.category(t, "A", "")
	b := f.category(t, "B", "A")
	require.NoError(t, f.db.Model(&db.Category{}).Where("id = ?", a.ID).Update("parent_id", b.ID).Error)

	_, err := f.engine.GetPage(ctx, Request{Size: 10, CategoryNames: []string{"A"}})
	assert.ErrorIs(t, err, ErrCategoryCycle)
}

func TestGetPagePagingTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tag(t, "fiction")
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		f.book(t, title, withTags("fiction"))
	}

	var seen []int64
	for p := 0; p < 3; p++ {
		page, err := f.engine.GetPage(ctx, Request{Page: p, Size: 3, Sort: byProductID(), TagNames: []string{"fiction"}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), page.TotalElements)
		assert.Equal(t, 3, page.TotalPages)
		seen = append(seen, productIDs(page)...)
	}
	assert.Len(t, seen, 7)

	// Every product appears exactly once across pages
	unique := make(map[int64]struct{})
	for _, id := range seen {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 7)

	_, err := f.engine.GetPage(ctx, Request{Page: 3, Size: 3, TagNames: []string{"fiction"}})
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestGetPageOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, "Only")

	_, err := f.engine.GetPage(ctx, Request{Page: 5, Size: 10})
	require.Error(t, err)
	var oor *PageOutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, 5, oor.Page)
	assert.Equal(t, 1, oor.TotalPages)

	_, err = f.engine.GetPage(ctx, Request{Page: -1, Size: 10})
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestGetPageHugePageNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, "Only")

	for _, page := range []int{1 << 62, math.MaxInt, math.MaxInt / 4} {
		got, err := f.engine.GetPage(ctx, Request{Page: page, Size: 4})
		var oor *PageOutOfRangeError
		require.True(t, errors.As(err, &oor), "page %d: err=%v rows=%d", page, err, len(got.Content))
		assert.Equal(t, page, oor.Page)
		assert.Equal(t, 1, oor.TotalPages)
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, size int
		offset     int
		ok         bool
	}{
		{0, 10, 0, true},
		{3, 10, 30, true},
		{math.MaxInt / 10, 10, math.MaxInt / 10 * 10, true},
		{math.MaxInt/10 + 1, 10, 0, false},
		{1 << 62, 4, 0, false},
		{-1, 10, 0, false},
	}
	for _, tt := range tests {
		offset, ok := pageOffset(tt.page, tt.size)
		assert.Equal(t, tt.ok, ok, "page %d size %d", tt.page, tt.size)
		assert.Equal(t, tt.offset, offset, "page %d size %d", tt.page, tt.size)
	}
}

func TestGetPageEmptyFirstPage(t *testing.T) {
	f := newFixture(t)

	page, err := f.engine.GetPage(context.Background(), Request{Size: 10, Title: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, 0, page.TotalPages)
}

func TestGetPageInvalidSortRunsNoQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A closed database would fail any query with a different error
	sqlDB, err := f.db.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	page, err := f.engine.GetPage(ctx, Request{Size: 10, Sort: []SortOrder{{Field: "bogusField"}}, CategoryNames: []string{"Fiction"}})
	assert.ErrorIs(t, err, ErrInvalidSort)
	assert.Nil(t, page.Content)
}

func TestGetPageSorting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cheap := f.book(t, "Zebra", withPrice(100))
	mid := f.book(t, "Apple", withPrice(500))
	dear := f.book(t, "Mango", withPrice(900))

	page, err := f.engine.GetPage(ctx, Request{Size: 10, Sort: []SortOrder{{Field: "price", Direction: "desc"}}})
	require.NoError(t, err)
	assert.Equal(t, []int64{dear, mid, cheap}, productIDs(page))

	page, err = f.engine.GetPage(ctx, Request{Size: 10, Sort: []SortOrder{{Field: "title"}}})
	require.NoError(t, err)
	assert.Equal(t, []int64{mid, dear, cheap}, productIDs(page))
}

func TestGetPageStateAndTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.book(t, "The Left Hand of Darkness")
	f.book(t, "The Dispossessed", withState(db.ProductStateHidden))
	f.book(t, "100% Pure_Fiction")

	state := db.ProductStateActive
	page, err := f.engine.GetPage(ctx, Request{Size: 10, Title: "THE", State: &state})
	require.NoError(t, err)
	assert.Equal(t, []int64{active}, productIDs(page))

	page, err = f.engine.GetPage(ctx, Request{Size: 10, Title: "the"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalElements)

	// LIKE wildcards in the title are matched literally
	page, err = f.engine.GetPage(ctx, Request{Size: 10, Title: "0%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
	page, err = f.engine.GetPage(ctx, Request{Size: 10, Title: "e_f"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
	page, err = f.engine.GetPage(ctx, Request{Size: 10, Title: "t_e"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.TotalElements)
}

func TestGetPageLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	liked := f.book(t, "Liked")
	other := f.book(t, "Other")
	f.like(t, 42, liked)
	f.like(t, anonymousUser, other)

	page, err := f.engine.GetPage(ctx, Request{Size: 10, Sort: byProductID(), UserID: userID(42)})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.True(t, page.Content[0].HasLiked)
	assert.False(t, page.Content[1].HasLiked)

	page, err = f.engine.GetPage(ctx, Request{Size: 10, UserID: userID(42), LikedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{liked}, productIDs(page))

	// The anonymous placeholder never reports likes, even if rows exist
	page, err = f.engine.GetPage(ctx, Request{Size: 10, Sort: byProductID(), UserID: userID(anonymousUser)})
	require.NoError(t, err)
	for _, s := range page.Content {
		assert.False(t, s.HasLiked)
	}

	page, err = f.engine.GetPage(ctx, Request{Size: 10, LikedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(0), page.TotalElements)
}

func TestGetPageSizeLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.engine.GetPage(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.Size)

	page, err = f.engine.GetPage(ctx, Request{Size: 1000})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Size)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.category(t, "Fiction", "")
	f.tag(t, "classic", "award")
	id := f.book(t, "Dune", withCategories("Fiction"), withTags("classic", "award"))
	f.like(t, 42, id)

	got, err := f.engine.GetProduct(ctx, id, userID(42))
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []string{"Fiction"}, got.Categories)
	assert.Equal(t, []string{"award", "classic"}, got.Tags)
	assert.True(t, got.HasLiked)
	require.NotNil(t, got.PubDate)

	// The view is counted after the read
	got, err = f.engine.GetProduct(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.False(t, got.HasLiked)

	_, err = f.engine.GetProduct(ctx, 9999, nil)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

type failingViews struct{}

func (failingViews) IncrementViewCount(context.Context, int64) error {
	return errors.New("write failed")
}

func TestFetchOneIgnoresViewFailure(t *testing.T) {
	f := newFixture(t)
	id := f.book(t, "Dune")

	executor := NewPageQueryExecutor(f.db, failingViews{}, nil, zap.NewNop())
	row, err := executor.FetchOne(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dune", row.Title)
}
