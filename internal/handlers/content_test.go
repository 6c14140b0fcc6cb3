package handlers

import (
	"archive/zip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ato_controller/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestContentServer_ServesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.zip")
	cs := NewContentServer(path, nil)
	t.Cleanup(func() { _ = cs.Close() })

	w := get(t, cs, "/app.js")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	writeZip(t, path, map[string]string{"app.js": "v1"})
	w = get(t, cs, "/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Body.String())

	writeZip(t, path, map[string]string{"app.js": "v2"})
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	w = get(t, cs, "/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v2", w.Body.String())

	w = get(t, cs, "/missing.css")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MountsContentUnderUI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.zip")
	writeZip(t, path, map[string]string{"index.html": "<html>ato</html>", "css/site.css": "body{}"})
	cs := NewContentServer(path, nil)
	t.Cleanup(func() { _ = cs.Close() })

	gin.SetMode(gin.TestMode)
	r := NewHandler(&service.Service{}, nil, WithContent(cs)).InitRoutes()

	w := get(t, r, "/ui/css/site.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())

	w = get(t, r, "/ui/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ato")

	w = get(t, r, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/ui/", w.Header().Get("Location"))
}
