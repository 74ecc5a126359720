package httpapi

import (
	"strings"
	"time"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/repo"
)

// BookRequest is the body of book registration and update
type BookRequest struct {
	Name          string   `json:"product_name" validate:"required,max=255"`
	Description   string   `json:"product_description"`
	ThumbnailURL  string   `json:"cover" validate:"omitempty,url,max=512"`
	PriceStandard int64    `json:"price_standard" validate:"gte=0"`
	PriceSale     int64    `json:"price_sale" validate:"gte=0,ltefield=PriceStandard"`
	Inventory     int64    `json:"inventory" validate:"gte=0"`
	State         string   `json:"state" validate:"omitempty,oneof=active hidden discontinued"`
	Packable      bool     `json:"packable"`
	Title         string   `json:"title" validate:"required,max=255"`
	Author        string   `json:"author" validate:"required,max=255"`
	Publisher     string   `json:"publisher" validate:"max=255"`
	ISBN          string   `json:"isbn" validate:"required,len=10"`
	ISBN13        string   `json:"isbn13" validate:"required,len=13,numeric"`
	PubDate       string   `json:"pub_date" validate:"omitempty,datetime=2006-01-02"`
	CategoryNames []string `json:"categories" validate:"dive,required,max=100"`
	TagNames      []string `json:"tags" validate:"dive,required,max=100"`
}

// toInput assumes the request passed validation
func (b BookRequest) toInput() repo.BookProductInput {
	in := repo.BookProductInput{
		Name:          strings.TrimSpace(b.Name),
		Description:   b.Description,
		ThumbnailURL:  b.ThumbnailURL,
		PriceStandard: b.PriceStandard,
		PriceSale:     b.PriceSale,
		Inventory:     b.Inventory,
		Packable:      b.Packable,
		Title:         strings.TrimSpace(b.Title),
		Author:        strings.TrimSpace(b.Author),
		Publisher:     strings.TrimSpace(b.Publisher),
		ISBN:          b.ISBN,
		ISBN13:        b.ISBN13,
		CategoryNames: b.CategoryNames,
		TagNames:      b.TagNames,
	}
	if b.State != "" {
		in.State, _ = db.ParseProductState(b.State)
	}
	if b.PubDate != "" {
		if d, err := time.Parse(time.DateOnly, b.PubDate); err == nil {
			in.PubDate = &d
		}
	}
	return in
}

// CategoryRequest creates a category, optionally under a parent
type CategoryRequest struct {
	Name   string `json:"category_name" validate:"required,max=100"`
	Parent string `json:"parent_name" validate:"omitempty,max=100,nefield=Name"`
}

// TagRequest creates a tag
type TagRequest struct {
	Name string `json:"tag_name" validate:"required,max=100"`
}

type categoryResponse struct {
	ID       int64  `json:"category_id"`
	Name     string `json:"category_name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func toCategoryResponse(c db.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID}
}

type tagResponse struct {
	ID   int64  `json:"tag_id"`
	Name string `json:"tag_name"`
}

func toTagResponse(t db.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name}
}

type descendantsResponse struct {
	Category    string   `json:"category_name"`
	Descendants []string `json:"descendants"`
}

type registeredResponse struct {
	ProductID int64 `json:"product_id"`
	BookID    int64 `json:"book_id"`
}

type updatedResponse struct {
	ProductID     int64    `json:"product_id"`
	FieldsChanged []string `json:"fields_changed"`
}
