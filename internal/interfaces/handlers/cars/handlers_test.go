package cars

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/images"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/infrastructure/blobstore"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type flakyBlobs struct {
	*blobstore.MemoryStore
	failDeletes bool
}

func (f *flakyBlobs) Delete(ctx context.Context, key string) error {
	if f.failDeletes {
		return errors.New("storage unavailable")
	}
	return f.MemoryStore.Delete(ctx, key)
}

type testEnv struct {
	app   *fiber.App
	blobs *flakyBlobs
	imgs  *images.Manager
}

func setupCarsApp(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Car{}))

	blobs := &flakyBlobs{MemoryStore: blobstore.NewMemoryStore("http://blobs.test")}
	mgr := &images.Manager{Blobs: blobs}
	svc := &carsvc.Service{Store: &carsvc.GormStore{DB: db}, Images: mgr}
	h := &Handlers{Service: svc, Views: &views.Service{Cars: svc}}

	app := fiber.New()
	// session user comes from the X-Test-User header
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("user", map[string]interface{}{"uid": uid, "name": "Name " + uid, "email": uid + "@test"})
		}
		return c.Next()
	})
	app.Get("/cars", h.List)
	app.Post("/cars", h.Create)
	app.Get("/cars/:id", h.Get)
	app.Put("/cars/:id", h.Update)
	app.Delete("/cars/:id", h.Delete)
	app.Delete("/cars/:id/images/:uid", h.RemoveImage)
	return &testEnv{app: app, blobs: blobs, imgs: mgr}
}

func (e *testEnv) upload(t *testing.T, uid string) domain.CarImage {
	img, err := e.imgs.Upload(context.Background(), uid, "image/png", pngBytes)
	require.NoError(t, err)
	return img
}

func (e *testEnv) do(t *testing.T, method, path, uid string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-Test-User", uid)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func carBody(imgs ...domain.CarImage) map[string]interface{} {
	return map[string]interface{}{
		"name":        "civic",
		"model":       "EXL 2.0",
		"year":        "2019/2020",
		"km":          "45000",
		"price":       85000,
		"city":        "Campinas",
		"whatsapp":    "19999998888",
		"description": "Único dono",
		"images":      imgs,
	}
}

func dataOf(out map[string]interface{}) map[string]interface{} {
	d, _ := out["data"].(map[string]interface{})
	return d
}

func TestCreate_RequiresSession(t *testing.T) {
	e := setupCarsApp(t)
	code, _ := e.do(t, "POST", "/cars", "", carBody())
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestCreate_NoImages(t *testing.T) {
	e := setupCarsApp(t)
	code, out := e.do(t, "POST", "/cars", "u1", carBody())
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, carsvc.ErrNoImages.Error(), out["error"].(map[string]interface{})["message"])
}

func TestCreate_ValidationErrors(t *testing.T) {
	e := setupCarsApp(t)
	body := carBody(e.upload(t, "u1"))
	body["whatsapp"] = "123"
	body["city"] = ""
	code, out := e.do(t, "POST", "/cars", "u1", body)
	assert.Equal(t, fiber.StatusBadRequest, code)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "whatsapp")
	assert.Contains(t, details, "city")
}

func TestCreate_ForeignImage(t *testing.T) {
	e := setupCarsApp(t)
	code, _ := e.do(t, "POST", "/cars", "u1", carBody(e.upload(t, "u2")))
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestCreateListGetUpdate(t *testing.T) {
	e := setupCarsApp(t)
	img := e.upload(t, "u1")

	code, out := e.do(t, "POST", "/cars", "u1", carBody(img))
	require.Equal(t, fiber.StatusCreated, code)
	created := dataOf(out)
	id := created["id"].(string)
	assert.Equal(t, "CIVIC", created["name"])
	assert.Equal(t, "85000", created["price"])
	assert.Equal(t, "R$ 85.000,00", created["priceLabel"])
	assert.Equal(t, "Name u1", created["owner"])
	assert.Equal(t, img.URL, created["cover"])

	code, out = e.do(t, "GET", "/cars", "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["data"], 1)

	code, out = e.do(t, "GET", "/cars", "u2", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["data"], 0)

	code, _ = e.do(t, "GET", "/cars/"+id, "u2", nil)
	assert.Equal(t, fiber.StatusForbidden, code)
	code, _ = e.do(t, "GET", "/cars/missing", "u1", nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	body := carBody(img, e.upload(t, "u1"))
	body["name"] = "civic si"
	code, _ = e.do(t, "PUT", "/cars/"+id, "u2", body)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, out = e.do(t, "PUT", "/cars/"+id, "u1", body)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "CIVIC SI", dataOf(out)["name"])
	assert.Len(t, dataOf(out)["images"], 2)
}

func TestRemoveImage(t *testing.T) {
	e := setupCarsApp(t)
	a, b := e.upload(t, "u1"), e.upload(t, "u1")
	_, out := e.do(t, "POST", "/cars", "u1", carBody(a, b))
	id := dataOf(out)["id"].(string)

	e.blobs.failDeletes = true
	code, _ := e.do(t, "DELETE", "/cars/"+id+"/images/"+a.UID, "u1", nil)
	assert.Equal(t, fiber.StatusBadGateway, code)
	_, out = e.do(t, "GET", "/cars/"+id, "u1", nil)
	assert.Len(t, dataOf(out)["images"], 2)

	e.blobs.failDeletes = false
	code, out = e.do(t, "DELETE", "/cars/"+id+"/images/"+a.UID, "u1", nil)
	require.Equal(t, fiber.StatusOK, code)
	imgs := dataOf(out)["images"].([]interface{})
	require.Len(t, imgs, 1)
	assert.Equal(t, b.UID, imgs[0].(map[string]interface{})["uid"])

	code, _ = e.do(t, "DELETE", "/cars/"+id+"/images/"+a.UID, "u1", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestDelete(t *testing.T) {
	e := setupCarsApp(t)
	img := e.upload(t, "u1")
	_, out := e.do(t, "POST", "/cars", "u1", carBody(img))
	id := dataOf(out)["id"].(string)

	code, _ := e.do(t, "DELETE", "/cars/"+id, "u2", nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	e.blobs.failDeletes = true
	code, _ = e.do(t, "DELETE", "/cars/"+id, "u1", nil)
	assert.Equal(t, fiber.StatusBadGateway, code)
	code, _ = e.do(t, "GET", "/cars/"+id, "u1", nil)
	assert.Equal(t, fiber.StatusOK, code)

	e.blobs.failDeletes = false
	code, _ = e.do(t, "DELETE", "/cars/"+id, "u1", nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = e.do(t, "GET", "/cars/"+id, "u1", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Empty(t, e.blobs.Keys("images/u1/"))
}
