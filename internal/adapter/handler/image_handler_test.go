package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/imagevault/imagevault/internal/adapter/handler"
	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/domain/entity"
	"github.com/imagevault/imagevault/internal/mocks"
)

type uploadFile struct {
	name        string
	contentType string
	content     []byte
}

func createImagesRequest(t *testing.T, url string, files ...uploadFile) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, f.name))
		h.Set("Content-Type", f.contentType)

		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func imageRoutes(h *handler.ImageHandler, userID uuid.UUID) *gin.Engine {
	router := setupRouter()
	withUser := func(fn gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set("user_id", userID)
			fn(c)
		}
	}
	router.POST("/images", withUser(h.Upload))
	router.GET("/images/:path", withUser(h.Get))
	router.POST("/images/:path/transform", withUser(h.Transform))
	return router
}

func TestImageHandler_Upload(t *testing.T) {
	jpegHeader := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	t.Run("uploads a single image", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		img := entity.NewImage("key-1", "image/jpeg", userID)
		imageSvc.EXPECT().Upload(gomock.Any(), jpegHeader, "image/jpeg", userID).Return(img, nil)
		imageSvc.EXPECT().URL(img).Return("https://cdn.example.com/key-1")

		req := createImagesRequest(t, "/images", uploadFile{name: "photo.jpg", contentType: "image/jpeg", content: jpegHeader})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp []map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		require.Len(t, resp, 1)
		assert.Equal(t, "https://cdn.example.com/key-1", resp[0]["url"])
		assert.Equal(t, "image/jpeg", resp[0]["mimeType"])
	})

	t.Run("uploads multiple images in one request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		first := entity.NewImage("key-1", "image/jpeg", userID)
		second := entity.NewImage("key-2", "image/png", userID)
		imageSvc.EXPECT().Upload(gomock.Any(), gomock.Any(), "image/jpeg", userID).Return(first, nil)
		imageSvc.EXPECT().Upload(gomock.Any(), gomock.Any(), "image/png", userID).Return(second, nil)
		imageSvc.EXPECT().URL(first).Return("https://cdn.example.com/key-1")
		imageSvc.EXPECT().URL(second).Return("https://cdn.example.com/key-2")

		req := createImagesRequest(t, "/images",
			uploadFile{name: "a.jpg", contentType: "image/jpeg", content: jpegHeader},
			uploadFile{name: "b.png", contentType: "image/png", content: []byte{0x89, 0x50, 0x4E, 0x47}},
		)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp []map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Len(t, resp, 2)
	})

	t.Run("rejects a non-image content type", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		router := imageRoutes(h, uuid.New())

		req := createImagesRequest(t, "/images", uploadFile{name: "doc.pdf", contentType: "application/pdf", content: []byte("%PDF")})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_TYPE", resp["code"])
	})

	t.Run("rejects an oversized file", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		router := imageRoutes(h, uuid.New())

		big := make([]byte, 10<<20+1)
		req := createImagesRequest(t, "/images", uploadFile{name: "big.jpg", contentType: "image/jpeg", content: big})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "FILE_TOO_LARGE", resp["code"])
	})

	t.Run("rejects a request without files", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		router := imageRoutes(h, uuid.New())

		req := createImagesRequest(t, "/images")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_FILE", resp["code"])
	})
}

func TestImageHandler_Get(t *testing.T) {
	t.Run("streams the blob with its mime type", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		record := entity.NewImage("key-1", "image/png", userID)
		data := []byte("png bytes")
		imageSvc.EXPECT().Get(gomock.Any(), "key-1", userID).Return(record, data, nil)

		req := httptest.NewRequest(http.MethodGet, "/images/key-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, data, w.Body.Bytes())
	})

	t.Run("returns not found for a missing image", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Get(gomock.Any(), "missing", userID).Return(nil, nil, domain.ErrImageNotFound)

		req := httptest.NewRequest(http.MethodGet, "/images/missing", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns forbidden for another user's image", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Get(gomock.Any(), "key-1", userID).Return(nil, nil, domain.ErrForbidden)

		req := httptest.NewRequest(http.MethodGet, "/images/key-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestImageHandler_Transform(t *testing.T) {
	t.Run("returns the new image on success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		result := entity.NewImage("key-2", "image/png", userID)
		imageSvc.EXPECT().Transform(gomock.Any(), "key-1", userID, gomock.Any()).Return(result, nil)
		imageSvc.EXPECT().URL(result).Return("https://cdn.example.com/key-2")

		body := `{"transformations":{"resize":{"width":50,"height":50}}}`
		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/key-2", resp["url"])
		assert.Equal(t, "image/png", resp["mimeType"])
	})

	t.Run("rejects a body without transformations", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		router := imageRoutes(h, uuid.New())

		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp["code"])
	})

	t.Run("maps invalid parameters to bad request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Transform(gomock.Any(), "key-1", userID, gomock.Any()).Return(nil, domain.ErrInvalidParameters)

		body := `{"transformations":{"crop":{"x":0,"y":0,"width":10}}}`
		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_PARAMETERS", resp["code"])
	})

	t.Run("maps an unsupported format to bad request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Transform(gomock.Any(), "key-1", userID, gomock.Any()).Return(nil, domain.ErrUnsupportedFormat)

		body := `{"transformations":{"format":"webp"}}`
		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "UNSUPPORTED_FORMAT", resp["code"])
	})

	t.Run("maps a timeout to gateway timeout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Transform(gomock.Any(), "key-1", userID, gomock.Any()).Return(nil, domain.ErrTransformTimeout)

		body := `{"transformations":{"resize":{"width":50}}}`
		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)

		var resp map[string]any
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "TIMEOUT", resp["code"])
	})

	t.Run("hides worker failures behind an internal error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		imageSvc := mocks.NewMockImageService(ctrl)
		h := handler.NewImageHandler(imageSvc)

		userID := uuid.New()
		router := imageRoutes(h, userID)

		imageSvc.EXPECT().Transform(gomock.Any(), "key-1", userID, gomock.Any()).Return(nil, domain.ErrWorkerFailure)

		body := `{"transformations":{"resize":{"width":50}}}`
		req := httptest.NewRequest(http.MethodPost, "/images/key-1/transform", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
