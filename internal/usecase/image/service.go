// Package image holds the storage consistency saga: every upload is a blob
// write followed by a metadata write, with a compensating blob delete when
// the second step fails. Reads check ownership strictly before any blob I/O.
package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/adapter/repository"
	"github.com/imagevault/imagevault/internal/adapter/storage"
	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/domain/entity"
	"github.com/imagevault/imagevault/internal/queue"
	"github.com/imagevault/imagevault/internal/transform"
)

//go:generate mockgen -source=service.go -destination=../../mocks/transformer_mocks.go -package=mocks -mock_names=Transformer=MockTransformer

// Transformer is the queue coordinator surface the saga depends on.
type Transformer interface {
	Submit(ctx context.Context, image []byte, mimeType string, spec transform.Spec) (queue.Handle, error)
	Await(ctx context.Context, h queue.Handle, timeout time.Duration) ([]byte, string, error)
}

type Service struct {
	imageRepo    repository.ImageRepository
	blobs        storage.BlobStorage
	transformer  Transformer
	awaitTimeout time.Duration
	logger       *zap.Logger
}

func NewService(
	imageRepo repository.ImageRepository,
	blobs storage.BlobStorage,
	transformer Transformer,
	awaitTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		imageRepo:    imageRepo,
		blobs:        blobs,
		transformer:  transformer,
		awaitTimeout: awaitTimeout,
		logger:       logger,
	}
}

// Upload writes the blob first and the metadata record second, so a record
// never references a missing blob. If the record write fails the blob is
// deleted again; if that compensation also fails the orphaned key is logged
// for out-of-band reconciliation and the caller sees a storage failure.
func (s *Service) Upload(ctx context.Context, data []byte, mimeType string, ownerID uuid.UUID) (*entity.Image, error) {
	key := uuid.NewString()

	if err := s.blobs.Upload(ctx, key, data, mimeType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailure, err)
	}

	img := entity.NewImage(key, mimeType, ownerID)
	if err := s.imageRepo.Create(ctx, img); err != nil {
		s.logger.Warn("metadata write failed, compensating blob delete",
			zap.String("key", key),
			zap.Error(err),
		)
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.Error("compensating delete failed, blob orphaned",
				zap.String("key", key),
				zap.Error(derr),
			)
			return nil, fmt.Errorf("%w: compensating delete of %s failed after: %v", domain.ErrStorageWriteFailure, key, err)
		}
		s.logger.Info("compensating delete completed", zap.String("key", key))
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataWriteFailure, err)
	}

	return img, nil
}

// Get loads the metadata record, enforces ownership, and only then fetches
// the blob. The ownership check coming first keeps blob existence invisible
// to callers who do not own the record. A record whose blob is gone reads as
// not found: from the caller's view the object does not exist.
func (s *Service) Get(ctx context.Context, path string, requesterID uuid.UUID) (*entity.Image, []byte, error) {
	record, err := s.imageRepo.GetByPath(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	if record.OwnerID != requesterID {
		return nil, nil, domain.ErrForbidden
	}

	data, _, err := s.blobs.Download(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("record without blob", zap.String("path", path))
			return nil, nil, domain.ErrImageNotFound
		}
		return nil, nil, fmt.Errorf("downloading blob: %w", err)
	}

	return record, data, nil
}

// Transform fetches the source (enforcing ownership), runs the requested
// operations through the queue, and stores the result as a brand-new image
// owned by the requester. The source record and blob are never touched.
func (s *Service) Transform(ctx context.Context, path string, requesterID uuid.UUID, spec transform.Spec) (*entity.Image, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	record, data, err := s.Get(ctx, path, requesterID)
	if err != nil {
		return nil, err
	}

	// Resolve the default output format up front so the stored mime type
	// never depends on worker-side defaults.
	if spec.Format == "" {
		spec.Format = transform.FormatFromMime(record.MimeType)
	}

	h, err := s.transformer.Submit(ctx, data, record.MimeType, spec)
	if err != nil {
		return nil, fmt.Errorf("submitting transform: %w", err)
	}

	out, outMime, err := s.transformer.Await(ctx, h, s.awaitTimeout)
	if err != nil {
		return nil, err
	}

	return s.Upload(ctx, out, outMime, requesterID)
}

// URL builds the public address for a stored image.
func (s *Service) URL(img *entity.Image) string {
	return s.blobs.GetURL(img.Path)
}
