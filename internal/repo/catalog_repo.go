package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bookstore/catalog/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookProductInput carries everything needed to register or update a book product
type BookProductInput struct {
	Name          string
	Description   string
	ThumbnailURL  string
	PriceStandard int64
	PriceSale     int64
	Inventory     int64
	State         db.ProductState
	Packable      bool

	Title     string
	Author    string
	Publisher string
	ISBN      string
	ISBN13    string
	PubDate   *time.Time

	CategoryNames []string
	TagNames      []string
}

// CatalogRepository handles book product persistence
type CatalogRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *db.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  database,
		log: logger,
	}
}

// RegisterBook creates the product, its book extension and its category/tag associations
func (r *CatalogRepository) RegisterBook(ctx context.Context, in BookProductInput) (*db.Product, error) {
	product := &db.Product{
		Name:          in.Name,
		Description:   in.Description,
		ThumbnailURL:  in.ThumbnailURL,
		PriceStandard: in.PriceStandard,
		PriceSale:     in.PriceSale,
		Inventory:     in.Inventory,
		State:         in.State,
		Packable:      in.Packable,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkISBNFree(tx, 0, in.ISBN, in.ISBN13); err != nil {
			return err
		}
		categoryIDs, err := categoryIDsByName(tx, in.CategoryNames)
		if err != nil {
			return err
		}
		tagIDs, err := tagIDsByName(tx, in.TagNames)
		if err != nil {
			return err
		}

		if err := tx.Create(product).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		book := &db.Book{
			ProductID: product.ID,
			Title:     in.Title,
			Author:    in.Author,
			Publisher: in.Publisher,
			ISBN:      in.ISBN,
			ISBN13:    in.ISBN13,
			PubDate:   in.PubDate,
		}
		if err := tx.Create(book).Error; err != nil {
			return fmt.Errorf("create book: %w", err)
		}
		product.Book = book

		return replaceAssociations(tx, product.ID, categoryIDs, tagIDs)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) {
			r.log.Error("Failed to register book", zap.String("isbn13", in.ISBN13), zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Book registered",
		zap.Int64("product_id", product.ID),
		zap.String("title", in.Title),
		zap.Int("categories", len(in.CategoryNames)),
		zap.Int("tags", len(in.TagNames)),
	)
	return product, nil
}

// UpdateBook overwrites a book product and replaces its associations wholesale.
// It returns the names of the fields that actually changed.
func (r *CatalogRepository) UpdateBook(ctx context.Context, productID int64, in BookProductInput) ([]string, error) {
	var changed []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Product
		if err := tx.Preload("Book").First(&existing, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("product", productID)
			}
			return err
		}
		if existing.Book == nil {
			return notFound("book", productID)
		}
		if err := checkISBNFree(tx, existing.Book.ID, in.ISBN, in.ISBN13); err != nil {
			return err
		}
		categoryIDs, err := categoryIDsByName(tx, in.CategoryNames)
		if err != nil {
			return err
		}
		tagIDs, err := tagIDsByName(tx, in.TagNames)
		if err != nil {
			return err
		}

		oldCategories, err := categoryNamesFor(tx, productID)
		if err != nil {
			return err
		}
		oldTags, err := tagNamesFor(tx, productID)
		if err != nil {
			return err
		}
		changed = changedFields(&existing, in, oldCategories, oldTags)

		productUpdates := map[string]interface{}{
			"name":           in.Name,
			"description":    in.Description,
			"thumbnail_url":  in.ThumbnailURL,
			"price_standard": in.PriceStandard,
			"price_sale":     in.PriceSale,
			"inventory":      in.Inventory,
			"state":          in.State,
			"packable":       in.Packable,
		}
		if err := tx.Model(&db.Product{}).Where("id = ?", productID).Updates(productUpdates).Error; err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		bookUpdates := map[string]interface{}{
			"title":     in.Title,
			"author":    in.Author,
			"publisher": in.Publisher,
			"isbn":      in.ISBN,
			"isbn13":    in.ISBN13,
			"pub_date":  in.PubDate,
		}
		if err := tx.Model(&db.Book{}).Where("product_id = ?", productID).Updates(bookUpdates).Error; err != nil {
			return fmt.Errorf("update book: %w", err)
		}

		return replaceAssociations(tx, productID, categoryIDs, tagIDs)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) {
			r.log.Error("Failed to update book", zap.Int64("product_id", productID), zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Book updated", zap.Int64("product_id", productID), zap.Strings("fields_changed", changed))
	return changed, nil
}

// IncrementViewCount bumps the view counter of a single product
func (r *CatalogRepository) IncrementViewCount(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).
		Model(&db.Product{}).
		Where("id = ?", productID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

// CategoryNames returns every category name associated with the product
func (r *CatalogRepository) CategoryNames(ctx context.Context, productID int64) ([]string, error) {
	return categoryNamesFor(r.db.WithContext(ctx), productID)
}

// TagNames returns every tag name associated with the product
func (r *CatalogRepository) TagNames(ctx context.Context, productID int64) ([]string, error) {
	return tagNamesFor(r.db.WithContext(ctx), productID)
}

// GetStats returns catalog statistics for metrics
func (r *CatalogRepository) GetStats(ctx context.Context) (total, active int64, err error) {
	if err := r.db.WithContext(ctx).Model(&db.Product{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count total products: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&db.Product{}).Where("state = ?", db.ProductStateActive).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count active products: %w", err)
	}

	return total, active, nil
}

func categoryNamesFor(tx *gorm.DB, productID int64) ([]string, error) {
	var names []string
	err := tx.Table("categories").
		Distinct("categories.name").
		Joins("JOIN product_categories ON product_categories.category_id = categories.id").
		Where("product_categories.product_id = ?", productID).
		Order("categories.name").
		Pluck("categories.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load categories of product %d: %w", productID, err)
	}
	return names, nil
}

func tagNamesFor(tx *gorm.DB, productID int64) ([]string, error) {
	var names []string
	err := tx.Table("tags").
		Distinct("tags.name").
		Joins("JOIN product_tags ON product_tags.tag_id = tags.id").
		Where("product_tags.product_id = ?", productID).
		Order("tags.name").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load tags of product %d: %w", productID, err)
	}
	return names, nil
}

// checkISBNFree fails with ErrDuplicate when another book already uses either isbn
func checkISBNFree(tx *gorm.DB, exceptBookID int64, isbn, isbn13 string) error {
	var existing db.Book
	err := tx.Where("(isbn = ? OR isbn13 = ?) AND id <> ?", isbn, isbn13, exceptBookID).
		Take(&existing).Error
	if err == nil {
		if existing.ISBN == isbn {
			return &DuplicateError{Kind: "isbn", Key: isbn}
		}
		return &DuplicateError{Kind: "isbn13", Key: isbn13}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func categoryIDsByName(tx *gorm.DB, names []string) ([]int64, error) {
	names = dedupe(names)
	if len(names) == 0 {
		return nil, nil
	}
	var found []db.Category
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(found))
	for _, c := range found {
		byName[c.Name] = c.ID
	}
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			return nil, notFound("category", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func tagIDsByName(tx *gorm.DB, names []string) ([]int64, error) {
	names = dedupe(names)
	if len(names) == 0 {
		return nil, nil
	}
	var found []db.Tag
	if err := tx.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(found))
	for _, t := range found {
		byName[t.Name] = t.ID
	}
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			return nil, notFound("tag", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// replaceAssociations drops and recreates the category and tag rows of a product
func replaceAssociations(tx *gorm.DB, productID int64, categoryIDs, tagIDs []int64) error {
	if err := tx.Where("product_id = ?", productID).Delete(&db.ProductCategory{}).Error; err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	if err := tx.Where("product_id = ?", productID).Delete(&db.ProductTag{}).Error; err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	if len(categoryIDs) > 0 {
		rows := make([]db.ProductCategory, 0, len(categoryIDs))
		for _, id := range categoryIDs {
			rows = append(rows, db.ProductCategory{ProductID: productID, CategoryID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("link categories: %w", err)
		}
	}
	if len(tagIDs) > 0 {
		rows := make([]db.ProductTag, 0, len(tagIDs))
		for _, id := range tagIDs {
			rows = append(rows, db.ProductTag{ProductID: productID, TagID: id})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
	}
	return nil
}

// changedFields compares the stored product with the update input
func changedFields(old *db.Product, in BookProductInput, oldCategories, oldTags []string) []string {
	var changed []string
	add := func(field string, differs bool) {
		if differs {
			changed = append(changed, field)
		}
	}

	add("name", old.Name != in.Name)
	add("description", old.Description != in.Description)
	add("thumbnail_url", old.ThumbnailURL != in.ThumbnailURL)
	add("price_standard", old.PriceStandard != in.PriceStandard)
	add("price_sale", old.PriceSale != in.PriceSale)
	add("inventory", old.Inventory != in.Inventory)
	add("state", old.State != in.State)
	add("packable", old.Packable != in.Packable)

	b := old.Book
	add("title", b.Title != in.Title)
	add("author", b.Author != in.Author)
	add("publisher", b.Publisher != in.Publisher)
	add("isbn", b.ISBN != in.ISBN)
	add("isbn13", b.ISBN13 != in.ISBN13)
	add("pub_date", !sameDate(b.PubDate, in.PubDate))

	add("categories", !sameSet(oldCategories, in.CategoryNames))
	add("tags", !sameSet(oldTags, in.TagNames))
	return changed
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format(time.DateOnly) == b.Format(time.DateOnly)
}

func sameSet(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
