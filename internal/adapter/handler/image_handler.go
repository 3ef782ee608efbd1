package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imagevault/imagevault/internal/adapter/handler/dto/request"
	"github.com/imagevault/imagevault/internal/adapter/handler/dto/response"
	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/pkg/httputil"
)

const maxUploadSize = 10 << 20 // 10MB per file

type ImageHandler struct {
	imageSvc ImageService
}

func NewImageHandler(imageSvc ImageService) *ImageHandler {
	return &ImageHandler{imageSvc: imageSvc}
}

// Upload accepts one or more files under the multipart field "images" and
// stores each as a separate image owned by the caller.
func (h *ImageHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		httputil.ErrorWithCode(c, http.StatusBadRequest, "INVALID_FILE", "multipart form with images is required")
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		httputil.ErrorWithCode(c, http.StatusBadRequest, "INVALID_FILE", "at least one image is required")
		return
	}

	userID := httputil.GetUserID(c)

	results := make([]response.ImageData, 0, len(files))
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			httputil.ErrorWithCode(c, http.StatusBadRequest, "INVALID_TYPE", "only image uploads are allowed")
			return
		}
		if fh.Size > maxUploadSize {
			httputil.ErrorWithCode(c, http.StatusBadRequest, "FILE_TOO_LARGE", "image exceeds the 10MB limit")
			return
		}

		data, err := readFile(fh)
		if err != nil {
			httputil.ErrorWithCode(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
			return
		}

		img, err := h.imageSvc.Upload(c.Request.Context(), data, contentType, userID)
		if err != nil {
			h.respondError(c, err)
			return
		}

		results = append(results, response.ImageData{
			URL:      h.imageSvc.URL(img),
			MimeType: img.MimeType,
		})
	}

	httputil.Created(c, results)
}

// Get streams the raw bytes with the record's mime type as Content-Type.
func (h *ImageHandler) Get(c *gin.Context) {
	path := c.Param("path")
	userID := httputil.GetUserID(c)

	record, data, err := h.imageSvc.Get(c.Request.Context(), path, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Data(http.StatusOK, record.MimeType, data)
}

func (h *ImageHandler) Transform(c *gin.Context) {
	path := c.Param("path")

	var req request.TransformImage
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.ValidationError(c, err)
		return
	}

	userID := httputil.GetUserID(c)

	img, err := h.imageSvc.Transform(c.Request.Context(), path, userID, req.Transformations)
	if err != nil {
		h.respondError(c, err)
		return
	}

	httputil.Created(c, response.ImageData{
		URL:      h.imageSvc.URL(img),
		MimeType: img.MimeType,
	})
}

func (h *ImageHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrImageNotFound):
		httputil.ErrorWithCode(c, http.StatusNotFound, "NOT_FOUND", "image not found")
	case errors.Is(err, domain.ErrForbidden):
		httputil.ErrorWithCode(c, http.StatusForbidden, "FORBIDDEN", "access denied")
	case errors.Is(err, domain.ErrInvalidParameters):
		httputil.ErrorWithCode(c, http.StatusBadRequest, "INVALID_PARAMETERS", err.Error())
	case errors.Is(err, domain.ErrUnsupportedImage):
		httputil.ErrorWithCode(c, http.StatusBadRequest, "UNSUPPORTED_IMAGE", "unsupported or corrupt image")
	case errors.Is(err, domain.ErrUnsupportedFormat):
		httputil.ErrorWithCode(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported image format")
	case errors.Is(err, domain.ErrTransformTimeout):
		httputil.ErrorWithCode(c, http.StatusGatewayTimeout, "TIMEOUT", "transform timed out")
	default:
		// Worker and storage failures stay opaque: the caller learns the
		// request failed, not how the storage layer is put together.
		httputil.InternalError(c)
	}
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
