package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/bookstore/catalog/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TagRepository handles tags
type TagRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(database *db.DB, logger *zap.Logger) *TagRepository {
	return &TagRepository{
		db:  database,
		log: logger,
	}
}

// Create adds a tag with a unique name
func (r *TagRepository) Create(ctx context.Context, name string) (*db.Tag, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.Tag{}).Where("name = ?", name).Count(&count).Error; err != nil {
		r.log.Error("Failed to check tag existence", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	if count > 0 {
		return nil, &DuplicateError{Kind: "tag", Key: name}
	}

	tag := &db.Tag{Name: name}
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		r.log.Error("Failed to create tag", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	r.log.Info("Tag created", zap.String("name", name))
	return tag, nil
}

// FindByName looks up a tag by name. Unlike a tag filter, a miss here is an error.
func (r *TagRepository) FindByName(ctx context.Context, name string) (*db.Tag, error) {
	var tag db.Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).Take(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("tag", name)
		}
		r.log.Error("Failed to get tag", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return &tag, nil
}

// List returns tags ordered by name, optionally only those containing the given text
func (r *TagRepository) List(ctx context.Context, contains string) ([]db.Tag, error) {
	query := r.db.WithContext(ctx).Model(&db.Tag{})
	if contains = strings.TrimSpace(contains); contains != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(contains)+"%")
	}

	var tags []db.Tag
	if err := query.Order("name").Find(&tags).Error; err != nil {
		r.log.Error("Failed to list tags", zap.Error(err))
		return nil, err
	}
	return tags, nil
}
