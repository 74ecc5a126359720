package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ProductState is the lifecycle state of a product
type ProductState int

const (
	ProductStateActive       ProductState = 0
	ProductStateHidden       ProductState = 1
	ProductStateDiscontinued ProductState = 2
)

func (s ProductState) String() string {
	switch s {
	case ProductStateActive:
		return "active"
	case ProductStateHidden:
		return "hidden"
	case ProductStateDiscontinued:
		return "discontinued"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseProductState accepts either the state name or its numeric code
func ParseProductState(v string) (ProductState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "active", "0":
		return ProductStateActive, nil
	case "hidden", "1":
		return ProductStateHidden, nil
	case "discontinued", "2":
		return ProductStateDiscontinued, nil
	}
	return 0, fmt.Errorf("unknown product state %q", v)
}

// Product represents a sellable catalog item
type Product struct {
	ID            int64        `gorm:"primaryKey;autoIncrement" json:"product_id"`
	Name          string       `gorm:"type:varchar(255);not null" json:"product_name"`
	Description   string       `gorm:"type:text" json:"product_description,omitempty"`
	ThumbnailURL  string       `gorm:"type:varchar(512)" json:"thumbnail_url,omitempty"`
	PriceStandard int64        `gorm:"not null;default:0" json:"price_standard"`
	PriceSale     int64        `gorm:"not null;default:0" json:"price_sale"`
	Inventory     int64        `gorm:"not null;default:0" json:"inventory"`
	ViewCount     int64        `gorm:"not null;default:0" json:"view_count"`
	RegisteredAt  time.Time    `gorm:"not null;index:idx_products_registered_at" json:"registered_at"`
	State         ProductState `gorm:"not null;default:0;index:idx_products_state" json:"state"`
	Packable      bool         `gorm:"not null;default:false" json:"packable"`

	Book *Book `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"book,omitempty"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string {
	return "products"
}

// BeforeCreate hook to set the registration timestamp
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	return nil
}

// Book is the one-to-one book extension of a Product
type Book struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"book_id"`
	ProductID int64      `gorm:"not null;uniqueIndex:idx_books_product" json:"product_id"`
	Title     string     `gorm:"type:varchar(255);not null;index:idx_books_title" json:"title"`
	Author    string     `gorm:"type:varchar(255);not null;index:idx_books_author" json:"author"`
	Publisher string     `gorm:"type:varchar(255)" json:"publisher,omitempty"`
	ISBN      string     `gorm:"column:isbn;type:varchar(10);not null;uniqueIndex:idx_books_isbn" json:"isbn"`
	ISBN13    string     `gorm:"column:isbn13;type:varchar(13);not null;uniqueIndex:idx_books_isbn13" json:"isbn13"`
	PubDate   *time.Time `gorm:"type:date" json:"pub_date,omitempty"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// Category is a node of the category tree. A nil ParentID marks a root.
type Category struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"category_id"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_categories_name" json:"category_name"`
	ParentID  *int64    `gorm:"index:idx_categories_parent" json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Category model
func (Category) TableName() string {
	return "categories"
}

// Tag is a free-form product label
type Tag struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"tag_id"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_tags_name" json:"tag_name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Tag model
func (Tag) TableName() string {
	return "tags"
}

// ProductCategory associates a product with a category
type ProductCategory struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	ProductID  int64 `gorm:"not null;uniqueIndex:idx_product_categories_pair"`
	CategoryID int64 `gorm:"not null;uniqueIndex:idx_product_categories_pair;index:idx_product_categories_category"`
}

// TableName specifies the table name for ProductCategory model
func (ProductCategory) TableName() string {
	return "product_categories"
}

// ProductTag associates a product with a tag
type ProductTag struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ProductID int64 `gorm:"not null;uniqueIndex:idx_product_tags_pair"`
	TagID     int64 `gorm:"not null;uniqueIndex:idx_product_tags_pair;index:idx_product_tags_tag"`
}

// TableName specifies the table name for ProductTag model
func (ProductTag) TableName() string {
	return "product_tags"
}

// ProductLike records that a user favorited a product
type ProductLike struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_product_likes_pair"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_product_likes_pair;index:idx_product_likes_product"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for ProductLike model
func (ProductLike) TableName() string {
	return "product_likes"
}

// AllModels lists every model managed by migrations
func AllModels() []interface{} {
	return []interface{}{
		&Product{},
		&Book{},
		&Category{},
		&Tag{},
		&ProductCategory{},
		&ProductTag{},
		&ProductLike{},
	}
}
