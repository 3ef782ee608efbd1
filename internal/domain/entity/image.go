package entity

import (
	"time"

	"github.com/google/uuid"
)

// Image is the metadata record for one stored blob. Records are immutable:
// transformations always produce a new record pointing at a new blob.
type Image struct {
	ID        uuid.UUID
	Path      string // object key in the blob store, no extension
	MimeType  string
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

func NewImage(path, mimeType string, ownerID uuid.UUID) *Image {
	return &Image{
		ID:        uuid.New(),
		Path:      path,
		MimeType:  mimeType,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
}
