package server

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":      `<!DOCTYPE html><html><head></head><body><p>app</p></body></html>`,
		"app.js":          "export default async function init() {}",
		"app_bg.wasm":     "\x00asm",
		"img/logo.svg":    "<svg/>",
		"docs/index.html": "<html><body>docs</body></html>",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStaticHandlerServesFiles(t *testing.T) {
	h := StaticHandler(newSite(t), "", "")

	rec := get(t, h, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "export default async function init() {}", rec.Body.String())

	rec = get(t, h, "/app_bg.wasm")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/wasm", rec.Header().Get("Content-Type"))

	rec = get(t, h, "/docs/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docs")
}

func TestStaticHandlerFallsBackToIndex(t *testing.T) {
	h := StaticHandler(newSite(t), "index.html", "")

	for _, p := range []string{"/", "/settings/profile", "/img"} {
		rec := get(t, h, p)
		require.Equal(t, http.StatusOK, rec.Code, p)
		assert.Contains(t, rec.Body.String(), "<p>app</p>", p)
	}
}

func TestStaticHandlerWithoutIndex(t *testing.T) {
	h := StaticHandler(t.TempDir(), "", "")
	assert.Equal(t, http.StatusNotFound, get(t, h, "/anything").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticHandlerInjectsLiveReload(t *testing.T) {
	h := StaticHandler(newSite(t), "", LiveReloadScript)

	rec := get(t, h, "/any/route")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<p>app</p>")
	assert.Contains(t, body, LiveReloadPath)
	assert.Less(t, strings.Index(body, "<p>app</p>"), strings.Index(body, "<script>"))

	rec = get(t, h, "/app.js")
	assert.NotContains(t, rec.Body.String(), LiveReloadPath)
}

func TestInjectScriptRequiresBody(t *testing.T) {
	out, err := InjectScript([]byte("<p>fragment</p>"), "x()")
	require.NoError(t, err, "the parser synthesizes a body")
	assert.Contains(t, string(out), "<script>x()</script></body>")
}

func TestLiveReloadHubBroadcast(t *testing.T) {
	hub := NewLiveReloadHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Shutdown()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast("build-1")
	hub.Broadcast("build-1") // duplicate is suppressed

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	assert.Equal(t, "data: build-1\n", line)
}

func TestLiveReloadHubKeepsBaselineAcrossFailures(t *testing.T) {
	hub := NewLiveReloadHub()
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Shutdown()

	hub.Broadcast("build-1")
	hub.Broadcast(ErrorPrefix + "build-2")

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	reader := bufio.NewReader(resp.Body)
	var line string
	for !strings.HasPrefix(line, "data:") {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
	}
	assert.Equal(t, "data: build-1\n", line, "a failed rebuild is not a baseline")
}

func TestLiveReloadHubShutdownRejects(t *testing.T) {
	hub := NewLiveReloadHub()
	hub.Shutdown()
	hub.Shutdown()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LiveReloadPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	ln, err := Listen(t.Context(), "127.0.0.1", 0)
	require.NoError(t, err)

	srv := New(ln, StaticHandler(newSite(t), "", ""), false)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr().String() + "/app.js")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "export default async function init() {}", string(body))

	require.NoError(t, srv.Shutdown())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestListenReportsAddressInUse(t *testing.T) {
	ln, err := Listen(t.Context(), "127.0.0.1", 0)
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	_, err = Listen(t.Context(), "127.0.0.1", port)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}
