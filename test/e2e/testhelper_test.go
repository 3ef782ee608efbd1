package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/adapter/handler"
	pgRepo "github.com/imagevault/imagevault/internal/adapter/repository/postgres"
	"github.com/imagevault/imagevault/internal/adapter/storage"
	"github.com/imagevault/imagevault/internal/infrastructure/auth"
	"github.com/imagevault/imagevault/internal/infrastructure/database"
	"github.com/imagevault/imagevault/internal/infrastructure/middleware"
	"github.com/imagevault/imagevault/internal/infrastructure/server"
	"github.com/imagevault/imagevault/internal/queue"
	authUC "github.com/imagevault/imagevault/internal/usecase/auth"
	imageUC "github.com/imagevault/imagevault/internal/usecase/image"
)

const (
	testDBUser     = "testuser"
	testDBPassword = "testpass"
	testDBName     = "testdb"
	testJWTSecret  = "test-secret-key-for-e2e-tests"
	apiBasePath    = "/api/v1"
	stubURLPrefix  = "https://stub-storage.example.com/"
)

type TestApp struct {
	Server     *httptest.Server
	Pool       *pgxpool.Pool
	Container  testcontainers.Container
	BaseURL    string
	Blobs      *memBlobStorage
	httpClient *http.Client
	stopWorker context.CancelFunc
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	migrationsPath := getMigrationsPath()
	err = database.RunMigrations(ctx, pool, migrationsPath)
	require.NoError(t, err)

	userRepo := pgRepo.NewUserRepo(pool)
	imageRepo := pgRepo.NewImageRepo(pool)

	jwtSvc := auth.NewJWTService(testJWTSecret, 15*time.Minute)
	passwordHasher := auth.NewPasswordHasher(4) // Lower cost for faster tests

	// In-memory blob storage and broker: the full transform pipeline runs
	// in-process through a real worker, without S3 or Redis.
	blobs := newMemBlobStorage()
	broker := newMemBroker()

	logger := zap.NewNop()
	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker := queue.NewWorker(broker, 3, logger)
	go func() { _ = worker.Run(workerCtx) }()

	coordinator := queue.NewCoordinator(broker, logger)

	authSvc := authUC.NewService(userRepo, jwtSvc, passwordHasher)
	imageSvc := imageUC.NewService(imageRepo, blobs, coordinator, 10*time.Second, logger)

	authHandler := handler.NewAuthHandler(authSvc)
	imageHandler := handler.NewImageHandler(imageSvc)

	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		ImageHandler:   imageHandler,
		AuthMiddleware: authMiddleware,
		Logger:         logger,
		Environment:    "test",
	})

	ts := httptest.NewServer(router.Engine())

	return &TestApp{
		Server:     ts,
		Pool:       pool,
		Container:  pgContainer,
		BaseURL:    ts.URL,
		Blobs:      blobs,
		stopWorker: stopWorker,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (app *TestApp) cleanup(t *testing.T) {
	t.Helper()

	app.stopWorker()
	app.Server.Close()
	app.Pool.Close()

	ctx := context.Background()
	if err := app.Container.Terminate(ctx); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

func (app *TestApp) request(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullPath := apiBasePath + path
	req, err := http.NewRequest(method, app.BaseURL+fullPath, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.httpClient.Do(req)
}

func (app *TestApp) get(path string, headers map[string]string) (*http.Response, error) {
	return app.request(http.MethodGet, path, nil, headers)
}

func (app *TestApp) post(path string, body any, headers map[string]string) (*http.Response, error) {
	return app.request(http.MethodPost, path, body, headers)
}

func (app *TestApp) uploadImages(t *testing.T, token string, files map[string][]byte) (*http.Response, error) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for name, content := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, name))
		h.Set("Content-Type", contentTypeFor(name))

		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, app.BaseURL+apiBasePath+"/images", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	return app.httpClient.Do(req)
}

func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func parseResponse(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if dest != nil {
		err = json.Unmarshal(body, dest)
		require.NoError(t, err, "response body: %s", string(body))
	}
}

func authHeader(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
	}
}

// keyFromURL strips the stub storage prefix off a public URL.
func keyFromURL(t *testing.T, url string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(url, stubURLPrefix), "unexpected url: %s", url)
	return strings.TrimPrefix(url, stubURLPrefix)
}

// memBlobStorage keeps blobs in a map, with the same not-found semantics as
// the real object store.
type memBlobStorage struct {
	mu    sync.Mutex
	blobs map[string]memBlob
}

type memBlob struct {
	data        []byte
	contentType string
}

func newMemBlobStorage() *memBlobStorage {
	return &memBlobStorage{blobs: make(map[string]memBlob)}
}

func (s *memBlobStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *memBlobStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[key] = memBlob{data: buf, contentType: contentType}
	return nil
}

func (s *memBlobStorage) Download(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return b.data, b.contentType, nil
}

func (s *memBlobStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *memBlobStorage) GetURL(key string) string {
	return stubURLPrefix + key
}

// memBroker delivers jobs over a channel and replies over per-job channels,
// matching the queue contract without Redis.
type memBroker struct {
	jobs    chan queue.Message
	mu      sync.Mutex
	replies map[string]chan []byte
}

func newMemBroker() *memBroker {
	return &memBroker{
		jobs:    make(chan queue.Message, 16),
		replies: make(map[string]chan []byte),
	}
}

func (b *memBroker) Enqueue(ctx context.Context, payload []byte) error {
	b.jobs <- queue.Message{Payload: payload}
	return nil
}

func (b *memBroker) Consume(ctx context.Context, handle func(ctx context.Context, msg queue.Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.jobs:
			if err := handle(ctx, msg); err != nil {
				msg.Attempt++
				b.jobs <- msg
			}
		}
	}
}

func (b *memBroker) Reply(ctx context.Context, jobID string, payload []byte) error {
	b.replyChan(jobID) <- payload
	return nil
}

func (b *memBroker) AwaitReply(ctx context.Context, jobID string, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, queue.ErrReplyTimeout
	case p := <-b.replyChan(jobID):
		return p, nil
	}
}

func (b *memBroker) replyChan(jobID string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.replies[jobID]
	if !ok {
		ch = make(chan []byte, 1)
		b.replies[jobID] = ch
	}
	return ch
}

// getMigrationsPath returns the absolute path to the migrations directory
func getMigrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	testDir := filepath.Dir(filename)
	return filepath.Join(testDir, "..", "..", "migrations")
}
