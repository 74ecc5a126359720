package query

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/metrics"
	"github.com/bookstore/catalog/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RawRow is one row of the book/product projection
type RawRow struct {
	ProductID     int64           `gorm:"column:product_id"`
	BookID        int64           `gorm:"column:book_id"`
	Title         string          `gorm:"column:title"`
	Author        string          `gorm:"column:author"`
	Publisher     string          `gorm:"column:publisher"`
	ISBN          string          `gorm:"column:isbn"`
	ISBN13        string          `gorm:"column:isbn13"`
	PubDate       *time.Time      `gorm:"column:pub_date"`
	ProductName   string          `gorm:"column:product_name"`
	Description   string          `gorm:"column:description"`
	ThumbnailURL  string          `gorm:"column:thumbnail_url"`
	PriceStandard int64           `gorm:"column:price_standard"`
	PriceSale     int64           `gorm:"column:price_sale"`
	Inventory     int64           `gorm:"column:inventory"`
	ViewCount     int64           `gorm:"column:view_count"`
	RegisteredAt  time.Time       `gorm:"column:registered_at"`
	State         db.ProductState `gorm:"column:state"`
	Packable      bool            `gorm:"column:packable"`
}

// RawPage is an executed page before enrichment
type RawPage struct {
	Rows  []RawRow
	Page  int
	Size  int
	Total int64
}

var projection = strings.Join([]string{
	"products.id AS product_id",
	"books.id AS book_id",
	"books.title AS title",
	"books.author AS author",
	"books.publisher AS publisher",
	"books.isbn AS isbn",
	"books.isbn13 AS isbn13",
	"books.pub_date AS pub_date",
	"products.name AS product_name",
	"products.description AS description",
	"products.thumbnail_url AS thumbnail_url",
	"products.price_standard AS price_standard",
	"products.price_sale AS price_sale",
	"products.inventory AS inventory",
	"products.view_count AS view_count",
	"products.registered_at AS registered_at",
	"products.state AS state",
	"products.packable AS packable",
}, ", ")

// ViewCounter records single-item views
type ViewCounter interface {
	IncrementViewCount(ctx context.Context, productID int64) error
}

// PageQueryExecutor runs the row and count queries of a page
type PageQueryExecutor struct {
	db      *db.DB
	views   ViewCounter
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewPageQueryExecutor creates an executor. views may be nil to disable view counting.
func NewPageQueryExecutor(database *db.DB, views ViewCounter, m *metrics.Metrics, log *zap.Logger) *PageQueryExecutor {
	return &PageQueryExecutor{
		db:      database,
		views:   views,
		metrics: m,
		log:     log,
	}
}

// base is the fixed join every catalog query starts from
func (e *PageQueryExecutor) base(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx).
		Table("books").
		Joins("JOIN products ON products.id = books.product_id")
}

// RowQuery builds the paged projection query without executing it
func (e *PageQueryExecutor) RowQuery(ctx context.Context, c Conditions, order Order, page, size int) *gorm.DB {
	q := c.Apply(e.base(ctx)).Select(projection)
	offset, _ := pageOffset(page, size)
	return order.Apply(q).Offset(offset).Limit(size)
}

// pageOffset reports false when page*size does not fit in an int
func pageOffset(page, size int) (int, bool) {
	if page < 0 || size <= 0 {
		return 0, page == 0
	}
	if page > math.MaxInt/size {
		return 0, false
	}
	return page * size, true
}

// pastEnd reports whether page starts at or after the last row
func pastEnd(page, size int, total int64) bool {
	if page <= 0 {
		return page < 0
	}
	return int64(page) >= int64(totalPages(total, size))
}

// CountQuery builds the total-count query without executing it
func (e *PageQueryExecutor) CountQuery(ctx context.Context, c Conditions) *gorm.DB {
	return c.Apply(e.base(ctx))
}

// Execute runs the row query and the count query concurrently. The total
// always covers every page, whatever page was requested.
func (e *PageQueryExecutor) Execute(ctx context.Context, p Predicate, order Order, page, size int) (*RawPage, error) {
	var (
		rows  []RawRow
		total int64
	)

	if _, ok := pageOffset(page, size); !ok {
		if err := e.CountQuery(ctx, p.Count).Count(&total).Error; err != nil {
			return nil, fmt.Errorf("count rows: %w", err)
		}
		return nil, &PageOutOfRangeError{Page: page, TotalPages: totalPages(total, size)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer e.metrics.ObserveQuery("rows", time.Now())
		if err := e.RowQuery(gctx, p.Row, order, page, size).Scan(&rows).Error; err != nil {
			return fmt.Errorf("query rows: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer e.metrics.ObserveQuery("count", time.Now())
		if err := e.CountQuery(gctx, p.Count).Count(&total).Error; err != nil {
			return fmt.Errorf("count rows: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.log.Error("Failed to execute page query",
			zap.Int("page", page),
			zap.Int("size", size),
			zap.Error(err),
		)
		return nil, err
	}

	if pastEnd(page, size, total) {
		return nil, &PageOutOfRangeError{Page: page, TotalPages: totalPages(total, size)}
	}

	return &RawPage{Rows: rows, Page: page, Size: size, Total: total}, nil
}

// FetchOne loads a single book product and bumps its view counter. The
// counter update is best-effort: a failure is logged, never returned.
func (e *PageQueryExecutor) FetchOne(ctx context.Context, productID int64) (*RawRow, error) {
	started := time.Now()
	var rows []RawRow
	err := e.base(ctx).
		Select(projection).
		Where("products.id = ?", productID).
		Limit(1).
		Scan(&rows).Error
	e.metrics.ObserveQuery("fetch_one", started)
	if err != nil {
		e.log.Error("Failed to fetch product", zap.Int64("product_id", productID), zap.Error(err))
		return nil, fmt.Errorf("fetch product %d: %w", productID, err)
	}
	if len(rows) == 0 {
		return nil, &repo.NotFoundError{Kind: "product", Key: fmt.Sprint(productID)}
	}

	if e.views != nil {
		if err := e.views.IncrementViewCount(ctx, productID); err != nil {
			e.metrics.ViewIncrementFailed()
			e.log.Warn("Failed to increment view count", zap.Int64("product_id", productID), zap.Error(err))
		}
	}

	return &rows[0], nil
}
