package rod_test

import (
	"testing"

	"github.com/fwojciec/fetchq/rod"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
)

func TestNewLauncher(t *testing.T) {
	t.Parallel()

	t.Run("starts headless without proxy or insecure TLS by default", func(t *testing.T) {
		t.Parallel()

		l := rod.NewLauncher()

		assert.True(t, l.Has(flags.Headless))
		assert.True(t, l.Has("disable-background-timer-throttling"))
		assert.False(t, l.Has(flags.ProxyServer))
		assert.False(t, l.Has("ignore-certificate-errors"))
	})

	t.Run("routes traffic through the proxy", func(t *testing.T) {
		t.Parallel()

		l := rod.NewLauncher(rod.WithProxy("127.0.0.1:8080"))

		assert.Equal(t, "127.0.0.1:8080", l.Get(flags.ProxyServer))
	})

	t.Run("accepts invalid certificates when insecure", func(t *testing.T) {
		t.Parallel()

		assert.True(t, rod.NewLauncher(rod.WithInsecure(true)).Has("ignore-certificate-errors"))
		assert.False(t, rod.NewLauncher(rod.WithInsecure(false)).Has("ignore-certificate-errors"))
	})
}
