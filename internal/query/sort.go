package query

import (
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tieBreakColumn = "products.id"

// sortColumns is the allow-list of sortable fields on the book/product projection
var sortColumns = map[string]string{
	"productId":    "products.id",
	"title":        "books.title",
	"author":       "books.author",
	"publisher":    "books.publisher",
	"pubDate":      "books.pub_date",
	"registerDate": "products.registered_at",
	"price":        "products.price_standard",
	"salePrice":    "products.price_sale",
	"viewCount":    "products.view_count",
	"inventory":    "products.inventory",
}

// DefaultSort applies when the caller asks for no ordering
var DefaultSort = SortOrder{Field: "registerDate", Direction: "desc"}

// Order is a validated ordering directive
type Order struct {
	Field  string
	Column string
	Desc   bool
}

// Apply adds the ordering to a books⋈products query. Ties are broken by
// product id so that paging is deterministic.
func (o Order) Apply(tx *gorm.DB) *gorm.DB {
	tx = tx.Order(clause.OrderByColumn{
		Column: clause.Column{Name: o.Column, Raw: true},
		Desc:   o.Desc,
	})
	if o.Column != tieBreakColumn {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: tieBreakColumn, Raw: true},
		})
	}
	return tx
}

// SortSpecResolver validates caller sort keys against the allow-list
type SortSpecResolver struct{}

// Resolve turns the first requested sort order into an Order. Later orders are ignored.
func (SortSpecResolver) Resolve(orders []SortOrder) (Order, error) {
	requested := DefaultSort
	if len(orders) > 0 && orders[0].Field != "" {
		requested = orders[0]
	}

	column, ok := sortColumns[requested.Field]
	if !ok {
		return Order{}, &InvalidSortError{Field: requested.Field}
	}

	var desc bool
	switch strings.ToLower(requested.Direction) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return Order{}, &InvalidSortError{Field: requested.Field, Direction: requested.Direction}
	}

	return Order{Field: requested.Field, Column: column, Desc: desc}, nil
}

// SortFields lists the accepted sort field names in alphabetical order
func SortFields() []string {
	fields := make([]string, 0, len(sortColumns))
	for f := range sortColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
