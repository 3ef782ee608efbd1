package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/imagevault/imagevault/internal/domain/entity"
	"github.com/imagevault/imagevault/internal/transform"
	"github.com/imagevault/imagevault/internal/usecase/auth"
)

//go:generate mockgen -source=interfaces.go -destination=../../mocks/handler_mocks.go -package=mocks

type AuthService interface {
	Register(ctx context.Context, input auth.RegisterInput) (*entity.User, error)
	Login(ctx context.Context, input auth.LoginInput) (*auth.Token, *entity.User, error)
}

type ImageService interface {
	Upload(ctx context.Context, data []byte, mimeType string, ownerID uuid.UUID) (*entity.Image, error)
	Get(ctx context.Context, path string, requesterID uuid.UUID) (*entity.Image, []byte, error)
	Transform(ctx context.Context, path string, requesterID uuid.UUID, spec transform.Spec) (*entity.Image, error)
	URL(img *entity.Image) string
}
