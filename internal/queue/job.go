// Package queue carries transformation jobs between the request path and the
// worker runtime. Jobs and replies cross the broker as JSON, which encodes
// the image bytes as base64, so both sides of the queue boundary share one
// binary-safe wire form.
package queue

import (
	"time"

	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/transform"
)

// Job is an immutable unit of queued work. Workers must not rely on any
// state outside of it.
type Job struct {
	ID          string         `json:"id"`
	Image       []byte         `json:"image"`
	MimeType    string         `json:"mime_type"`
	Spec        transform.Spec `json:"transformations"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Result is the completion payload delivered on the job's reply channel:
// either transformed bytes plus mime type, or an error code.
type Result struct {
	JobID    string `json:"job_id"`
	Image    []byte `json:"image,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Wire error codes. Engine errors serialize to a code on the worker side and
// re-raise as the same domain error on the awaiting side.
const (
	codeInvalidParameters = "invalid_parameters"
	codeUnsupportedImage  = "unsupported_image"
	codeUnsupportedFormat = "unsupported_format"
	codeWorkerFailure     = "worker_failure"
)

var codeToErr = map[string]error{
	codeInvalidParameters: domain.ErrInvalidParameters,
	codeUnsupportedImage:  domain.ErrUnsupportedImage,
	codeUnsupportedFormat: domain.ErrUnsupportedFormat,
	codeWorkerFailure:     domain.ErrWorkerFailure,
}

var errToCode = map[error]string{
	domain.ErrInvalidParameters: codeInvalidParameters,
	domain.ErrUnsupportedImage:  codeUnsupportedImage,
	domain.ErrUnsupportedFormat: codeUnsupportedFormat,
}
