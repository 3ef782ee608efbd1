package repository

import (
	"context"

	"github.com/imagevault/imagevault/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -destination=../../mocks/repository_mocks.go -package=mocks

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}

type ImageRepository interface {
	Create(ctx context.Context, image *entity.Image) error
	GetByPath(ctx context.Context, path string) (*entity.Image, error)
}
