package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmptyPassword      = errors.New("password cannot be empty")
)

type AccountService struct {
	users repository.UserRepository
}

func NewAccountService(users repository.UserRepository) *AccountService {
	return &AccountService{users: users}
}

func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("password hashing failed")
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *AccountService) IsAdmin(ctx context.Context, id primitive.ObjectID) (bool, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return false, err
	}

	return user.IsAdmin, nil
}
