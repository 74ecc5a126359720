package query

import (
	"strings"
	"time"

	"github.com/bookstore/catalog/internal/db"
)

// Combinator decides whether a product must match all or any filter values
type Combinator int

const (
	And Combinator = iota
	Or
)

func (c Combinator) String() string {
	if c == Or {
		return "or"
	}
	return "and"
}

// SortOrder is one caller-requested sort key
type SortOrder struct {
	Field     string
	Direction string
}

// ParseSortOrder reads the "field[,direction]" form used by the HTTP layer
func ParseSortOrder(v string) SortOrder {
	field, dir, _ := strings.Cut(v, ",")
	return SortOrder{Field: strings.TrimSpace(field), Direction: strings.TrimSpace(dir)}
}

// Request is a catalog page request
type Request struct {
	Page          int
	Size          int
	Sort          []SortOrder
	Title         string
	CategoryNames []string
	TagNames      []string
	Combinator    Combinator
	UserID        *int64
	State         *db.ProductState
	LikedOnly     bool
}

// Page is one slice of an ordered result set plus the total across all slices
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

func newPage[T any](content []T, page, size int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
	}
}

func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	pages := total / int64(size)
	if total%int64(size) > 0 {
		pages++
	}
	return int(pages)
}

// ProductSummary is the outward shape of one book product
type ProductSummary struct {
	ProductID     int64           `json:"product_id"`
	BookID        int64           `json:"book_id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Publisher     string          `json:"publisher,omitempty"`
	ISBN          string          `json:"isbn"`
	ISBN13        string          `json:"isbn13"`
	PubDate       *time.Time      `json:"pub_date,omitempty"`
	ProductName   string          `json:"product_name"`
	Description   string          `json:"product_description,omitempty"`
	ThumbnailURL  string          `json:"cover,omitempty"`
	PriceStandard int64           `json:"price_standard"`
	PriceSale     int64           `json:"price_sale"`
	Inventory     int64           `json:"inventory"`
	ViewCount     int64           `json:"view_count"`
	RegisteredAt  time.Time       `json:"registered_at"`
	State         db.ProductState `json:"state"`
	Packable      bool            `json:"packable"`
	Categories    []string        `json:"categories"`
	Tags          []string        `json:"tags"`
	HasLiked      bool            `json:"has_liked"`
}
