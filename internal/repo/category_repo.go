package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookstore/catalog/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryRepository handles the category tree
type CategoryRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(database *db.DB, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:  database,
		log: logger,
	}
}

// Create adds a category under parentName, or as a root when parentName is empty
func (r *CategoryRepository) Create(ctx context.Context, name, parentName string) (*db.Category, error) {
	category := &db.Category{Name: name}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Category{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &DuplicateError{Kind: "category", Key: name}
		}

		if parentName != "" {
			var parent db.Category
			if err := tx.Where("name = ?", parentName).Take(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound("category", parentName)
				}
				return err
			}
			category.ParentID = &parent.ID
		}

		return tx.Create(category).Error
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) {
			r.log.Error("Failed to create category", zap.String("name", name), zap.Error(err))
		}
		return nil, err
	}

	r.log.Info("Category created", zap.String("name", name), zap.String("parent", parentName))
	return category, nil
}

// FindByName looks up a category by its unique name
func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*db.Category, error) {
	var category db.Category
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("category", name)
		}
		r.log.Error("Failed to get category", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return &category, nil
}

// FindChildren returns the direct children of a category ordered by name
func (r *CategoryRepository) FindChildren(ctx context.Context, parent *db.Category) ([]db.Category, error) {
	var children []db.Category
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parent.ID).
		Order("name").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("load children of category %s: %w", parent.Name, err)
	}
	return children, nil
}

// List returns every category ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]db.Category, error) {
	var categories []db.Category
	if err := r.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		r.log.Error("Failed to list categories", zap.Error(err))
		return nil, err
	}
	return categories, nil
}
