package request

import "github.com/imagevault/imagevault/internal/transform"

type TransformImage struct {
	Transformations transform.Spec `json:"transformations" binding:"required"`
}
