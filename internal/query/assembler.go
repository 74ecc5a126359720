package query

import (
	"context"
	"fmt"
)

// AssociationLookup loads the category and tag names of a product
type AssociationLookup interface {
	CategoryNames(ctx context.Context, productID int64) ([]string, error)
	TagNames(ctx context.Context, productID int64) ([]string, error)
}

// ResponseAssembler turns raw rows into ProductSummary values
type ResponseAssembler struct {
	assoc AssociationLookup
	likes *LikeEnricher
}

func NewResponseAssembler(assoc AssociationLookup, likes *LikeEnricher) *ResponseAssembler {
	return &ResponseAssembler{assoc: assoc, likes: likes}
}

// Assemble keeps the row order of the executed query
func (a *ResponseAssembler) Assemble(ctx context.Context, rows []RawRow, userID *int64) ([]ProductSummary, error) {
	out := make([]ProductSummary, 0, len(rows))
	for i := range rows {
		s, err := a.AssembleOne(ctx, &rows[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// AssembleOne maps a single row and fills in its associations and like flag
func (a *ResponseAssembler) AssembleOne(ctx context.Context, row *RawRow, userID *int64) (ProductSummary, error) {
	categories, err := a.assoc.CategoryNames(ctx, row.ProductID)
	if err != nil {
		return ProductSummary{}, fmt.Errorf("load categories of product %d: %w", row.ProductID, err)
	}
	tags, err := a.assoc.TagNames(ctx, row.ProductID)
	if err != nil {
		return ProductSummary{}, fmt.Errorf("load tags of product %d: %w", row.ProductID, err)
	}
	liked, err := a.likes.HasLiked(ctx, userID, row.ProductID)
	if err != nil {
		return ProductSummary{}, err
	}

	if categories == nil {
		categories = []string{}
	}
	if tags == nil {
		tags = []string{}
	}

	return ProductSummary{
		ProductID:     row.ProductID,
		BookID:        row.BookID,
		Title:         row.Title,
		Author:        row.Author,
		Publisher:     row.Publisher,
		ISBN:          row.ISBN,
		ISBN13:        row.ISBN13,
		PubDate:       row.PubDate,
		ProductName:   row.ProductName,
		Description:   row.Description,
		ThumbnailURL:  row.ThumbnailURL,
		PriceStandard: row.PriceStandard,
		PriceSale:     row.PriceSale,
		Inventory:     row.Inventory,
		ViewCount:     row.ViewCount,
		RegisteredAt:  row.RegisteredAt,
		State:         row.State,
		Packable:      row.Packable,
		Categories:    categories,
		Tags:          tags,
		HasLiked:      liked,
	}, nil
}
