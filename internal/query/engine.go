// Package query is the catalog query engine: it expands category filters,
// validates ordering, builds predicates, runs paged queries and assembles
// the outward product summaries.
package query

import (
	"context"
	"errors"

	"github.com/bookstore/catalog/internal/metrics"
	"github.com/bookstore/catalog/internal/repo"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Options tunes paging limits and identity handling
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Deps are the collaborators of an Engine
type Deps struct {
	Resolver  DescendantResolver
	Executor  *PageQueryExecutor
	Assembler *ResponseAssembler
	Likes     *LikeEnricher
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// Engine answers catalog page and single-product requests
type Engine struct {
	resolver  DescendantResolver
	sorts     SortSpecResolver
	builder   PredicateBuilder
	executor  *PageQueryExecutor
	assembler *ResponseAssembler
	likes     *LikeEnricher
	metrics   *metrics.Metrics
	log       *zap.Logger
	opts      Options
}

// NewEngine creates an engine. Zero option values fall back to the package defaults.
func NewEngine(deps Deps, opts Options) *Engine {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		resolver:  deps.Resolver,
		executor:  deps.Executor,
		assembler: deps.Assembler,
		likes:     deps.Likes,
		metrics:   deps.Metrics,
		log:       log,
		opts:      opts,
	}
}

// GetPage returns one page of book products matching the request
func (e *Engine) GetPage(ctx context.Context, req Request) (Page[ProductSummary], error) {
	page, err := e.getPage(ctx, req)
	e.metrics.PageRequest(outcome(err))
	return page, err
}

func (e *Engine) getPage(ctx context.Context, req Request) (Page[ProductSummary], error) {
	order, err := e.sorts.Resolve(req.Sort)
	if err != nil {
		e.log.Debug("Rejected sort order", zap.Error(err))
		return Page[ProductSummary]{}, err
	}

	size := e.pageSize(req.Size)
	if req.Page < 0 {
		return Page[ProductSummary]{}, &PageOutOfRangeError{Page: req.Page}
	}

	filter := Filter{
		Tags:       req.TagNames,
		Combinator: req.Combinator,
		State:      req.State,
		Title:      req.Title,
	}
	if req.LikedOnly {
		if e.likes.IsAnonymous(req.UserID) {
			if req.Page > 0 {
				return Page[ProductSummary]{}, &PageOutOfRangeError{Page: req.Page}
			}
			return newPage[ProductSummary](nil, req.Page, size, 0), nil
		}
		filter.LikedBy = req.UserID
	}

	groups, err := e.categoryGroups(ctx, req.CategoryNames)
	if err != nil {
		return Page[ProductSummary]{}, err
	}
	filter.Categories = groups

	pred := e.builder.Build(filter)
	raw, err := e.executor.Execute(ctx, pred, order, req.Page, size)
	if err != nil {
		return Page[ProductSummary]{}, err
	}

	content, err := e.assembler.Assemble(ctx, raw.Rows, req.UserID)
	if err != nil {
		e.log.Error("Failed to assemble page", zap.Int("page", req.Page), zap.Error(err))
		return Page[ProductSummary]{}, err
	}

	e.log.Debug("Served catalog page",
		zap.Int("page", raw.Page),
		zap.Int("size", raw.Size),
		zap.Int64("total", raw.Total),
		zap.String("sort", order.Field),
		zap.Stringer("combinator", req.Combinator),
		zap.Int("requirements", len(pred.Row.Requirements)),
	)
	return newPage(content, raw.Page, raw.Size, raw.Total), nil
}

// GetProduct returns a single book product and counts the view
func (e *Engine) GetProduct(ctx context.Context, productID int64, userID *int64) (ProductSummary, error) {
	row, err := e.executor.FetchOne(ctx, productID)
	if err != nil {
		return ProductSummary{}, err
	}
	return e.assembler.AssembleOne(ctx, row, userID)
}

// DescendantNames exposes category expansion to callers outside the page path
func (e *Engine) DescendantNames(ctx context.Context, name string) ([]string, error) {
	return e.resolver.ResolveDescendantNames(ctx, name)
}

// categoryGroups expands every requested category. A category that does not
// exist becomes a group that matches nothing rather than an error.
func (e *Engine) categoryGroups(ctx context.Context, names []string) ([]CategoryGroup, error) {
	if len(names) == 0 {
		return nil, nil
	}
	groups := make([]CategoryGroup, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}

		descendants, err := e.resolver.ResolveDescendantNames(ctx, name)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			e.log.Debug("Category filter matches no category", zap.String("category", name))
			descendants = []string{name}
		case err != nil:
			e.log.Error("Failed to resolve category", zap.String("category", name), zap.Error(err))
			return nil, err
		}
		groups = append(groups, CategoryGroup{Requested: name, Names: descendants})
	}
	return groups, nil
}

func (e *Engine) pageSize(size int) int {
	if size <= 0 {
		return e.opts.DefaultPageSize
	}
	if size > e.opts.MaxPageSize {
		return e.opts.MaxPageSize
	}
	return size
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSort):
		return "invalid_sort"
	case errors.Is(err, ErrPageOutOfRange):
		return "out_of_range"
	case errors.Is(err, repo.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCategoryCycle):
		return "cycle"
	default:
		return "error"
	}
}
