package main_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/fetchq"
	main "github.com/fwojciec/fetchq/cmd/fetchq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_HelpShowsAllCommands(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	parser, err := kong.New(cli,
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	require.NoError(t, err)

	_, _ = parser.Parse([]string{"--help"})

	helpOutput := stdout.String()
	for _, cmd := range []string{"download", "history"} {
		assert.Contains(t, helpOutput, cmd, "Help should mention %s command", cmd)
	}
}

func TestCLI_DownloadDefaultsMatchConfigDefaults(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli, kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"download", "https://example.com/"})
	require.NoError(t, err)

	got := cli.Download.Config()
	want := fetchq.DefaultConfig()
	assert.Equal(t, want.MaxSimultaneousDownloads, got.MaxSimultaneousDownloads)
	assert.Equal(t, want.MaxSimultaneousDownloadsPerDomain, got.MaxSimultaneousDownloadsPerDomain)
	assert.Equal(t, want.MaxSimultaneousScrapes, got.MaxSimultaneousScrapes)
	assert.Equal(t, want.MaxSimultaneousScrapesPerDomain, got.MaxSimultaneousScrapesPerDomain)
	assert.Equal(t, want.DownloadAttempts, got.DownloadAttempts)
	assert.Equal(t, want.DownloadDelay, got.DownloadDelay)
	assert.InDelta(t, want.RateLimit, got.RateLimit, 0)
	assert.Equal(t, want.VisibleTasksLimit, got.VisibleTasksLimit)
	assert.Equal(t, want.MaxDepth, got.MaxDepth)
	assert.NoError(t, got.Validate())
}

func TestDownloadCmd_Config(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli, kong.Exit(func(int) {}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{
		"download", "https://example.com/",
		"--max-downloads=3",
		"--max-downloads-per-domain=1",
		"--no-attempt-limit",
		"--delay=2s",
		"--ignore-history",
		"--exclude-videos",
		"--skip-host=ads.example.com",
		"--min-image-size=1024",
	})
	require.NoError(t, err)

	cfg := cli.Download.Config()
	assert.Equal(t, 3, cfg.MaxSimultaneousDownloads)
	assert.Equal(t, 1, cfg.MaxSimultaneousDownloadsPerDomain)
	assert.Zero(t, cfg.AttemptLimit())
	assert.Equal(t, 2*time.Second, cfg.DownloadDelay)
	assert.True(t, cfg.IgnoreHistory)
	assert.True(t, cfg.Skip.ExcludeVideos)
	assert.Equal(t, []string{"ads.example.com"}, cfg.Skip.SkipHosts)
	assert.Equal(t, int64(1024), cfg.Skip.ImageSize.Min)
}

func TestParseSiteSelector(t *testing.T) {
	t.Parallel()

	t.Run("parses domain, selector and attribute", func(t *testing.T) {
		t.Parallel()

		domain, sel, err := main.ParseSiteSelector("www.example.com=div.gallery img@data-full")

		require.NoError(t, err)
		assert.Equal(t, fetchq.DomainKey("example.com"), domain)
		assert.Equal(t, "div.gallery img", sel.Selector)
		assert.Equal(t, "data-full", sel.Attr)
		assert.Equal(t, fetchq.LinkAsset, sel.Kind)
	})

	t.Run("defaults attribute to src", func(t *testing.T) {
		t.Parallel()

		_, sel, err := main.ParseSiteSelector("example.com=.post img")

		require.NoError(t, err)
		assert.Equal(t, ".post img", sel.Selector)
		assert.Equal(t, "src", sel.Attr)
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		t.Parallel()

		for _, s := range []string{"", "example.com", "=img@src", "example.com=", "example.com=img@"} {
			_, _, err := main.ParseSiteSelector(s)
			assert.Equal(t, fetchq.EINVALID, fetchq.ErrorCode(err), "input %q", s)
		}
	})
}

func TestMain_Run_HelpShowsKongOutput(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "test.db")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	err := m.Run(context.Background(), []string{"--help"}, stdout, stderr)
	require.NoError(t, err)

	helpOutput := stdout.String()
	assert.Contains(t, helpOutput, "download")
	assert.Contains(t, helpOutput, "history")
	assert.Contains(t, helpOutput, "Usage:")
	assert.Contains(t, helpOutput, "Flags:")
}

func TestMain_Run_NoArgs(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "test.db")

	err := m.Run(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")
}
