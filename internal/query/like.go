package query

import (
	"context"
	"fmt"
)

// LikeCounter counts (user, product) like records
type LikeCounter interface {
	Count(ctx context.Context, userID, productID int64) (int64, error)
}

// LikeEnricher answers whether a user has liked a product
type LikeEnricher struct {
	likes       LikeCounter
	anonymousID int64
}

// NewLikeEnricher creates an enricher. anonymousID is the placeholder id
// used for requests without an authenticated user.
func NewLikeEnricher(likes LikeCounter, anonymousID int64) *LikeEnricher {
	return &LikeEnricher{likes: likes, anonymousID: anonymousID}
}

// IsAnonymous reports whether userID stands for no authenticated user
func (l *LikeEnricher) IsAnonymous(userID *int64) bool {
	return userID == nil || *userID == l.anonymousID
}

// HasLiked is false for anonymous users without touching storage
func (l *LikeEnricher) HasLiked(ctx context.Context, userID *int64, productID int64) (bool, error) {
	if l.IsAnonymous(userID) {
		return false, nil
	}
	n, err := l.likes.Count(ctx, *userID, productID)
	if err != nil {
		return false, fmt.Errorf("count likes for product %d: %w", productID, err)
	}
	return n > 0, nil
}
