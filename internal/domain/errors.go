package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrForbidden          = errors.New("forbidden")

	ErrImageNotFound        = errors.New("image not found")
	ErrInvalidParameters    = errors.New("invalid transform parameters")
	ErrUnsupportedImage     = errors.New("unsupported or corrupt image")
	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrTransformTimeout     = errors.New("transform timed out")
	ErrWorkerFailure        = errors.New("transform worker failure")
	ErrStorageWriteFailure  = errors.New("storage write failure")
	ErrMetadataWriteFailure = errors.New("metadata write failure")
)
