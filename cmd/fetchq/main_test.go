package main_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	main "github.com/fwojciec/fetchq/cmd/fetchq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGalleryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
<img src="/media/cat.jpg">
<a href="/media/dog.png">dog</a>
</body></html>`))
	})
	mux.HandleFunc("/media/cat.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cat-bytes"))
	})
	mux.HandleFunc("/media/dog.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dog-bytes"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMain_Run_Download(t *testing.T) {
	t.Parallel()

	srv := newGalleryServer(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")
	out := t.TempDir()
	args := []string{"download", srv.URL + "/gallery", "--output", out, "--progress=0s", "--delay=0s", "--rate-limit=0"}

	m := main.NewMain()
	m.DBPath = dbPath
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := m.Run(context.Background(), args, stdout, stderr)

	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "Downloads: 2 completed")

	data, err := os.ReadFile(filepath.Join(out, "127.0.0.1", "cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "cat-bytes", string(data))
	data, err = os.ReadFile(filepath.Join(out, "127.0.0.1", "dog.png"))
	require.NoError(t, err)
	assert.Equal(t, "dog-bytes", string(data))

	// A second run finds both downloads in history.
	m = main.NewMain()
	m.DBPath = dbPath
	stdout.Reset()

	err = m.Run(context.Background(), args, stdout, stderr)

	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "0 completed, 2 previously completed")

	// The history commands see the same database.
	m = main.NewMain()
	m.DBPath = dbPath
	stdout.Reset()

	require.NoError(t, m.Run(context.Background(), []string{"history", "count"}, stdout, stderr))
	assert.Equal(t, "2\n", stdout.String())
}

func TestMain_Run_HistoryForgetUnknown(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "history.db")
	stderr := &bytes.Buffer{}

	err := m.Run(context.Background(), []string{"history", "forget", "https://example.com/a.jpg"}, &bytes.Buffer{}, stderr)

	require.Error(t, err)
	assert.Contains(t, stderr.String(), "no history for https://example.com/a.jpg")
}
