package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imagevault/imagevault/internal/adapter/repository"
	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/domain/entity"
)

//go:generate mockgen -source=service.go -destination=../../mocks/auth_mocks.go -package=mocks

type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID) (string, time.Time, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	hasher   PasswordHasher
}

func NewService(userRepo repository.UserRepository, tokens TokenIssuer, hasher PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
	}
}

type RegisterInput struct {
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := entity.NewUser(input.Email, hash)
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*Token, *entity.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	tokenStr, expiresAt, err := s.tokens.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("generating token: %w", err)
	}

	return &Token{AccessToken: tokenStr, ExpiresAt: expiresAt}, user, nil
}
