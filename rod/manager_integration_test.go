//go:build integration

package rod_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserManager_OpenPage(t *testing.T) {
	t.Parallel()

	t.Run("restarts the browser after the render limit", func(t *testing.T) {
		t.Parallel()

		manager, err := rod.NewBrowserManager(rod.WithRecycleAfter(2))
		require.NoError(t, err)
		defer manager.Close()

		firstPID := manager.LauncherPID()
		for range 2 {
			_, release, err := manager.OpenPage()
			require.NoError(t, err)
			release()
		}
		assert.Equal(t, int64(2), manager.Renders())
		assert.Equal(t, firstPID, manager.LauncherPID())

		_, release, err := manager.OpenPage()
		require.NoError(t, err)
		release()

		assert.NotEqual(t, firstPID, manager.LauncherPID())
		assert.Equal(t, int64(1), manager.Renders())
	})

	t.Run("fails once closed", func(t *testing.T) {
		t.Parallel()

		manager, err := rod.NewBrowserManager()
		require.NoError(t, err)
		require.NoError(t, manager.Close())

		_, _, err = manager.OpenPage()

		assert.Equal(t, fetchq.EINVALID, fetchq.ErrorCode(err))
		assert.Zero(t, manager.LauncherPID())
	})
}

func TestFetcher_Fetch_SelfSignedCertificate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><img src="/cat.jpg"></body></html>`)
	}))
	t.Cleanup(srv.Close)

	t.Run("insecure browser renders the page", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher(rod.WithBrowserOptions(rod.WithInsecure(true)))
		require.NoError(t, err)
		defer fetcher.Close()

		page, err := fetcher.Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Contains(t, string(page.Body), "cat.jpg")
	})

	t.Run("default browser rejects the certificate", func(t *testing.T) {
		t.Parallel()

		fetcher, err := rod.NewFetcher()
		require.NoError(t, err)
		defer fetcher.Close()

		_, err = fetcher.Fetch(context.Background(), srv.URL)

		assert.True(t, fetchq.IsTransient(err))
	})
}
