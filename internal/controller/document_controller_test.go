package controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"docflash-be/internal/controller"
	"docflash-be/internal/dto"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/pkg/serverutils"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/internal/service"
	"docflash-be/internal/testutil"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentApp(t *testing.T, maxUpload int64) *fiber.App {
	t.Helper()
	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := queue.NewRedisQueue(rdb, queue.RedisOptions{KeyPrefix: "test"})
	svc := service.NewDocumentService(unitofwork.NewRepositoryFactory(db), store, q, service.NewNopPublisherService(), 1, logger.NewNopLogger())

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	controller.NewDocumentController(svc, maxUpload).RegisterRoutes(app.Group("/api"))
	return app
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("priority", "true"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/document/v1", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do[T any](t *testing.T, app *fiber.App, req *http.Request) (int, serverutils.Response[T]) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out serverutils.Response[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestDocumentController_UploadAndStatus(t *testing.T) {
	app := newDocumentApp(t, 1024)

	code, uploaded := do[dto.UploadDocumentResponse](t, app, uploadRequest(t, "notes.md", "# Notes\n\nSome text that is long enough to keep."))
	require.Equal(t, fiber.StatusAccepted, code)
	assert.True(t, uploaded.Success)
	assert.Equal(t, "PENDING", uploaded.Data.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/document/v1/"+uploaded.Data.Id.String()+"/status", nil)
	code, status := do[dto.DocumentStatusResponse](t, app, req)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, uploaded.Data.Id, status.Data.Id)
	require.NotNil(t, status.Data.Job)
	assert.True(t, status.Data.Job.Priority)
}

func TestDocumentController_Errors(t *testing.T) {
	app := newDocumentApp(t, 16)

	code, _ := do[any](t, app, uploadRequest(t, "slides.pptx", "x"))
	assert.Equal(t, fiber.StatusUnsupportedMediaType, code)

	code, _ = do[any](t, app, uploadRequest(t, "big.txt", "this body is longer than sixteen bytes"))
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, code)

	code, _ = do[any](t, app, httptest.NewRequest(http.MethodGet, "/api/document/v1/not-a-uuid", nil))
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body := do[any](t, app, httptest.NewRequest(http.MethodGet, "/api/document/v1/"+uuid.NewString(), nil))
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.False(t, body.Success)

	code, _ = do[any](t, app, httptest.NewRequest(http.MethodGet, "/api/document/v1?status=DONE", nil))
	assert.Equal(t, fiber.StatusBadRequest, code)
}
