package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/db/dbtest"
	"github.com/bookstore/catalog/internal/repo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const anonymousUser int64 = 1

type fixture struct {
	db         *db.DB
	catalog    *repo.CatalogRepository
	categories *repo.CategoryRepository
	tags       *repo.TagRepository
	likes      *repo.LikeRepository
	resolver   *CategoryHierarchyResolver
	executor   *PageQueryExecutor
	engine     *Engine
	seq        int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database := dbtest.New(t)
	log := zap.NewNop()

	f := &fixture{
		db:         database,
		catalog:    repo.NewCatalogRepository(database, log),
		categories: repo.NewCategoryRepository(database, log),
		tags:       repo.NewTagRepository(database, log),
		likes:      repo.NewLikeRepository(database, log),
	}
	f.resolver = NewCategoryHierarchyResolver(f.categories, 0)
	f.executor = NewPageQueryExecutor(database, f.catalog, nil, log)

	likes := NewLikeEnricher(f.likes, anonymousUser)
	f.engine = NewEngine(Deps{
		Resolver:  f.resolver,
		Executor:  f.executor,
		Assembler: NewResponseAssembler(f.catalog, likes),
		Likes:     likes,
		Log:       log,
	}, Options{DefaultPageSize: 10, MaxPageSize: 50})
	return f
}

func (f *fixture) category(t *testing.T, name, parent string) *db.Category {
	t.Helper()
	c, err := f.categories.Create(context.Background(), name, parent)
	require.NoError(t, err)
	return c
}

func (f *fixture) tag(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := f.tags.Create(context.Background(), name)
		require.NoError(t, err)
	}
}

type bookOption func(*repo.BookProductInput)

func withCategories(names ...string) bookOption {
	return func(in *repo.BookProductInput) { in.CategoryNames = names }
}

func withTags(names ...string) bookOption {
	return func(in *repo.BookProductInput) { in.TagNames = names }
}

func withState(s db.ProductState) bookOption {
	return func(in *repo.BookProductInput) { in.State = s }
}

func withPrice(p int64) bookOption {
	return func(in *repo.BookProductInput) { in.PriceStandard = p }
}

func (f *fixture) book(t *testing.T, title string, opts ...bookOption) int64 {
	t.Helper()
	f.seq++
	pub := time.Date(2000+f.seq, time.January, 1, 0, 0, 0, 0, time.UTC)
	in := repo.BookProductInput{
		Name:          title,
		PriceStandard: int64(1000 * f.seq),
		PriceSale:     int64(900 * f.seq),
		Inventory:     10,
		Title:         title,
		Author:        fmt.Sprintf("Author %d", f.seq),
		Publisher:     "Test Press",
		ISBN:          fmt.Sprintf("%010d", f.seq),
		ISBN13:        fmt.Sprintf("978%010d", f.seq),
		PubDate:       &pub,
	}
	for _, opt := range opts {
		opt(&in)
	}
	p, err := f.catalog.RegisterBook(context.Background(), in)
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) like(t *testing.T, userID, productID int64) {
	t.Helper()
	require.NoError(t, f.likes.Add(context.Background(), userID, productID))
}

func productIDs(p Page[ProductSummary]) []int64 {
	ids := make([]int64, len(p.Content))
	for i, s := range p.Content {
		ids[i] = s.ProductID
	}
	return ids
}

func userID(id int64) *int64 {
	return &id
}

func byProductID() []SortOrder {
	return []SortOrder{{Field: "productId", Direction: "asc"}}
}
