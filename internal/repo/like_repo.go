package repo

import (
	"context"
	"time"

	"github.com/bookstore/catalog/internal/db"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// LikeRepository reads and maintains the user↔product like relation
type LikeRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(database *db.DB, logger *zap.Logger) *LikeRepository {
	return &LikeRepository{
		db:  database,
		log: logger,
	}
}

// Count returns how many like rows exist for the pair. It is 0 or 1 while the
// unique index holds.
func (r *LikeRepository) Count(ctx context.Context, userID, productID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ProductLike{}).
		Joins("JOIN products ON products.id = product_likes.product_id").
		Where("product_likes.user_id = ? AND product_likes.product_id = ?", userID, productID).
		Count(&count).Error
	return count, err
}

// Add records a like; adding an existing like is a no-op
func (r *LikeRepository) Add(ctx context.Context, userID, productID int64) error {
	like := &db.ProductLike{
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(like).Error
	if err != nil {
		r.log.Error("Failed to add like",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Remove deletes a like; removing a missing like is a no-op
func (r *LikeRepository) Remove(ctx context.Context, userID, productID int64) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&db.ProductLike{}).Error
	if err != nil {
		r.log.Error("Failed to remove like",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
