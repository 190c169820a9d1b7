package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type AddressService struct {
	users repository.UserRepository
}

func NewAddressService(users repository.UserRepository) *AddressService {
	return &AddressService{users: users}
}

func (s *AddressService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return user.Addresses, nil
}

func (s *AddressService) Add(ctx context.Context, userID primitive.ObjectID, addr domain.Address) (*domain.Address, error) {
	return s.users.AddAddress(ctx, userID, addr)
}

func (s *AddressService) Update(ctx context.Context, userID primitive.ObjectID, addr domain.Address) error {
	return s.users.UpdateAddress(ctx, userID, addr)
}

func (s *AddressService) Delete(ctx context.Context, userID, addressID primitive.ObjectID) error {
	return s.users.DeleteAddress(ctx, userID, addressID)
}

func (s *AddressService) SetDefault(ctx context.Context, userID, addressID primitive.ObjectID) error {
	return s.users.SetDefaultAddress(ctx, userID, addressID)
}
