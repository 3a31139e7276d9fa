package images

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"

	carsvc "webcarros-backend/internal/application/cars"
	imgsvc "webcarros-backend/internal/application/images"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/infrastructure/blobstore"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00")
)

type imagesEnv struct {
	app  *fiber.App
	mem  *blobstore.MemoryStore
	cars *carsvc.Service
}

func setupImages(t *testing.T, maxBytes int64) *imagesEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Car{}))

	mem := blobstore.NewMemoryStore("http://blobs.test")
	manager := &imgsvc.Manager{Blobs: mem, MaxBytes: maxBytes}
	cs := &carsvc.Service{Store: &carsvc.GormStore{DB: db}, Images: manager}
	h := &Handlers{Manager: manager, Drafts: cs}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("user", map[string]interface{}{"uid": uid, "name": "Ana"})
		}
		return c.Next()
	})
	app.Post("/images", h.Upload)
	app.Delete("/images/:uid", h.Delete)
	return &imagesEnv{app: app, mem: mem, cars: cs}
}

func setupImagesApp(t *testing.T, maxBytes int64) (*fiber.App, *blobstore.MemoryStore) {
	e := setupImages(t, maxBytes)
	return e.app, e.mem
}

func deleteImage(t *testing.T, app *fiber.App, uid, imageUID string) (int, map[string]interface{}) {
	req := httptest.NewRequest("DELETE", "/images/"+imageUID, nil)
	req.Header.Set("X-Test-User", uid)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func multipartBody(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="car.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, app *fiber.App, uid, contentType string, data []byte) (int, map[string]interface{}) {
	body, ct := multipartBody(t, contentType, data)
	req := httptest.NewRequest("POST", "/images", body)
	req.Header.Set("Content-Type", ct)
	if uid != "" {
		req.Header.Set("X-Test-User", uid)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestUpload(t *testing.T) {
	app, mem := setupImagesApp(t, 1<<20)

	code, out := upload(t, app, "u1", "image/png", pngBytes)
	require.Equal(t, fiber.StatusCreated, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "u1", data["name"])
	assert.Contains(t, data["url"], "/blobs/images/u1/")
	assert.Len(t, mem.Keys("images/u1/"), 1)
}

func TestUpload_Rejections(t *testing.T) {
	app, mem := setupImagesApp(t, 16)

	code, _ := upload(t, app, "", "image/png", pngBytes)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = upload(t, app, "u1", "image/gif", gifBytes)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, code)

	code, _ = upload(t, app, "u1", "image/png", gifBytes)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, code)

	code, _ = upload(t, app, "u1", "image/png", append(pngBytes, make([]byte, 32)...))
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, code)

	assert.Empty(t, mem.Keys(""))
}

func TestDelete_ScopedToCaller(t *testing.T) {
	app, mem := setupImagesApp(t, 1<<20)
	_, out := upload(t, app, "u1", "image/png", pngBytes)
	uid := out["data"].(map[string]interface{})["uid"].(string)

	code, _ := deleteImage(t, app, "u2", uid)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Len(t, mem.Keys("images/u1/"), 1)

	code, _ = deleteImage(t, app, "u1", uid)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, mem.Keys("images/u1/"))

	code, _ = deleteImage(t, app, "u1", "not-a-uuid")
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestDelete_RefusesImageAttachedToCar(t *testing.T) {
	e := setupImages(t, 1<<20)
	_, out := upload(t, e.app, "u1", "image/png", pngBytes)
	data := out["data"].(map[string]interface{})
	img := domain.CarImage{UID: data["uid"].(string), Name: data["name"].(string), URL: data["url"].(string)}

	car, err := e.cars.Create(context.Background(), carsvc.Input{
		Name:        "civic",
		Model:       "EXL",
		Year:        "2019",
		Km:          "45000",
		Price:       "85000",
		City:        "Campinas",
		WhatsApp:    "19999998888",
		Description: "Único dono",
		Images:      domain.CarImages{img},
	}, carsvc.Actor{UID: "u1", Name: "Ana"})
	require.NoError(t, err)

	code, body := deleteImage(t, e.app, "u1", img.UID)
	assert.Equal(t, fiber.StatusConflict, code)
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, car.ID, details["carId"])
	assert.Equal(t, "DELETE /api/v1/dashboard/cars/"+car.ID+"/images/"+img.UID, details["remove"])

	_, err = e.mem.Get(context.Background(), img.ObjectKey())
	assert.NoError(t, err, "blob of a saved car must survive")
	stored, err := e.cars.Get(context.Background(), car.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CarImages{img}, stored.Images)
}
