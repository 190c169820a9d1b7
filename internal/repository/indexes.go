package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

type indexEnsurer interface {
	CreateIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes every collection relies on. Called once
// at startup; CreateMany is idempotent for existing indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	repos := []interface{}{
		NewCartRepository(db),
		NewOrderRepository(db),
		NewUserRepository(db),
	}

	for _, r := range repos {
		if e, ok := r.(indexEnsurer); ok {
			if err := e.CreateIndexes(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}
