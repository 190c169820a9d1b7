package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/repository"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
	}
}

// GetCart returns the user's cart, creating an empty one on first fetch.
func (s *CartService) GetCart(ctx context.Context, userID primitive.ObjectID) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID.Hex(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID.Hex())
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("cart cache get failed, falling through to repository")
		}

		cart, err = s.repo.EnsureCart(ctx, userID)
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(ctx, userID.Hex(), cart); errSet != nil {
				log.Warn().Err(errSet).Msg("cart cache set failed")
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// ReplaceItems upserts the cart to exactly the given list (full replace,
// not patch). Duplicates are merged and sub-1 quantities dropped first.
func (s *CartService) ReplaceItems(ctx context.Context, userID primitive.ObjectID, items []domain.CartItem) (*domain.Cart, error) {
	cart, err := s.repo.ReplaceItems(ctx, userID, domain.MergeItems(items))
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("cart replace failed")
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*domain.Cart, error) {
	cart, err := s.repo.RemoveItem(ctx, userID, productID)
	if err != nil {
		if !errors.Is(err, repository.ErrCartNotFound) {
			log.Error().Err(err).Stringer("user_id", userID).Msg("cart item removal failed")
		}
		return nil, err
	}

	s.invalidateCache(userID)
	return cart, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID primitive.ObjectID) error {
	err := s.repo.ClearCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		log.Error().Err(err).Stringer("user_id", userID).Msg("cart clear failed")
		return err
	}

	// Clearing an absent cart is a no-op, not an error.
	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID.Hex()); err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("cart cache invalidate failed")
	}
}
