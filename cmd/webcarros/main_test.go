package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/client"
	"webcarros-backend/internal/config"
	"webcarros-backend/internal/editor"
	"webcarros-backend/internal/infrastructure/blobstore"
	"webcarros-backend/internal/infrastructure/database"
	"webcarros-backend/internal/interfaces/router"
	"webcarros-backend/internal/pkg/validation"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type harness struct {
	apiURL      string
	sessionFile string
	dir         string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db, true))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{Env: "test", MaxUploadBytes: 1 << 20, PublicBaseURL: "http://blobs.test"}
	app := router.New(router.Deps{
		Config: cfg,
		DB:     db,
		Rdb:    rdb,
		Cars:   &carsvc.GormStore{DB: db},
		Blobs:  blobstore.NewMemoryStore(cfg.PublicBaseURL),
	})
	srv := httptest.NewServer(router.Handler(app))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return &harness{apiURL: srv.URL, sessionFile: filepath.Join(dir, "session"), dir: dir}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"--api", h.apiURL, "--session-file", h.sessionFile}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) photo(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, pngBytes, 0o600))
	return p
}

var listedRe = regexp.MustCompile(`Listed CIVIC \(([^)]+)\)`)

func TestCLI_SellerFlow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "register", "--name", "Ana", "--email", "ana@webcarros.com.br", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Ana")

	out, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana <ana@webcarros.com.br>")

	out, err = h.run(t, "new",
		"--name", "civic", "--model", "EXL 2.0", "--year", "2019/2020", "--km", "45000",
		"--price", "85000", "--city", "Campinas", "--whatsapp", "19999998888",
		"--description", "Único dono",
		"--image", h.photo(t, "front.png"), "--image", h.photo(t, "back.png"))
	require.NoError(t, err)
	m := listedRe.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = h.run(t, "browse", "--search", "ci")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "R$ 85.000,00")

	out, err = h.run(t, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "api.whatsapp.com/send?phone=19999998888")

	out, err = h.run(t, "edit", id, "--price", "80000", "--image", h.photo(t, "side.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "3 photos")

	out, err = h.run(t, "mine")
	require.NoError(t, err)
	assert.Contains(t, out, "R$ 80.000,00")

	out, err = h.run(t, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted.")

	out, err = h.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATED")
	assert.Contains(t, out, "UPDATED")
	assert.Contains(t, out, "DELETED")

	_, err = h.run(t, "logout")
	require.NoError(t, err)
	_, err = h.run(t, "mine")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestCLI_NewRejectsMissingPhotosAndBadFields(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "register", "--name", "Ana", "--email", "ana@webcarros.com.br", "--password", "secret123")
	require.NoError(t, err)

	_, err = h.run(t, "new",
		"--name", "civic", "--model", "EXL", "--year", "2019", "--km", "1",
		"--price", "1", "--city", "Campinas", "--whatsapp", "19999998888", "--description", "x")
	assert.ErrorIs(t, err, editor.ErrNoImages)

	_, err = h.run(t, "new", "--name", "civic", "--image", h.photo(t, "a.png"))
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, describe(err), "whatsapp: This field is required")

	out, err := h.run(t, "mine")
	require.NoError(t, err)
	assert.Contains(t, out, "No cars found.")
}

func TestCLI_OwnerCommandsNeedSignIn(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{{"mine"}, {"delete", "x"}, {"history"}} {
		_, err := h.run(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "not signed in")
	}

	out, err := h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in.")
}

func TestDescribe(t *testing.T) {
	err := &client.APIError{StatusCode: 400, Message: "Validation failed", Fields: map[string]string{"name": "This field is required"}}
	assert.Equal(t, "Validation failed\n  name: This field is required", describe(err))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
