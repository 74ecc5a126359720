package db

import (
	"gorm.io/gorm"
)

// RunMigrations runs all database migrations
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}

	// Expression indexes below use PostgreSQL syntax
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return createIndexes(db.DB)
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Case-insensitive title containment
		`CREATE INDEX IF NOT EXISTS idx_books_title_lower ON books (LOWER(title))`,

		// Listing by state ordered by registration date
		`CREATE INDEX IF NOT EXISTS idx_products_state_registered ON products (state, registered_at DESC)`,

		// Like lookups by user for the liked-books listing
		`CREATE INDEX IF NOT EXISTS idx_product_likes_user ON product_likes (user_id)`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
