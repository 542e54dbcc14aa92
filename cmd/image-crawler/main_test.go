package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"image-crawler/pkg/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newGallery(t *testing.T) *httptest.Server {
	t.Helper()
	sizes := map[string]int{"/a.jpg": 3000, "/b.png": 200, "/c.gif": 20}
	mux := http.NewServeMux()
	mux.HandleFunc("/gallery", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<img src="/c.gif"><img src="/a.jpg"><img src="/b.png">`)
	})
	mux.HandleFunc("/blank", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>nothing here</p>`)
	})
	for path, size := range sizes {
		size := size
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", strconv.Itoa(size))
			if r.Method == http.MethodHead {
				return
			}
			_, _ = w.Write(bytes.Repeat([]byte("x"), size))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestLoadConfig_ValidFile(t *testing.T) {
	content := `
download_concurrency: 3
probe_timeout: 5s
request_headers:
  User-Agent: "test-agent"
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DownloadConcurrency)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "test-agent", cfg.RequestHeaders["User-Agent"])
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.DownloadConcurrency)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0644))

	_, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDoValidate(t *testing.T) {
	t.Run("valid with warnings", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("max_requests: -1\n"), 0644))

		var stdout, stderr bytes.Buffer
		exitCode := doValidate(cfgPath, &stdout, &stderr)

		assert.Equal(t, 0, exitCode)
		assert.Contains(t, stdout.String(), "WARN:")
		assert.Contains(t, stdout.String(), "Configuration valid")
	})

	t.Run("empty header name", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("request_headers:\n  \"\": x\n"), 0644))

		var stdout, stderr bytes.Buffer
		exitCode := doValidate(cfgPath, &stdout, &stderr)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stderr.String(), "ERROR")
	})

	t.Run("config not found", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		exitCode := doValidate("/nonexistent.yaml", &stdout, &stderr)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stderr.String(), "Error")
	})
}

func TestDoDiscover(t *testing.T) {
	gallery := newGallery(t)

	var stdout, stderr bytes.Buffer
	exitCode := doDiscover(context.Background(), "", gallery.URL+"/gallery", "text", quietLogger(), &stdout, &stderr)

	require.Equal(t, 0, exitCode, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], gallery.URL+"/a.jpg")
	assert.Contains(t, lines[0], "2.93 KB")
	assert.Contains(t, lines[1], gallery.URL+"/b.png")
	assert.Contains(t, lines[2], gallery.URL+"/c.gif")
	assert.Contains(t, stdout.String(), "Found 3 images.")
}

func TestDoDiscover_YAML(t *testing.T) {
	gallery := newGallery(t)

	var stdout, stderr bytes.Buffer
	exitCode := doDiscover(context.Background(), "", gallery.URL+"/gallery", "yaml", quietLogger(), &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	var out struct {
		TotalFound int                   `yaml:"total_found"`
		Images     []models.ResourceItem `yaml:"images"`
	}
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, 3, out.TotalFound)
	assert.Equal(t, int64(3000), out.Images[0].SizeBytes)
}

func TestDoDiscover_Failures(t *testing.T) {
	gallery := newGallery(t)

	tests := []struct {
		name    string
		url     string
		format  string
		wantErr string
	}{
		{"empty url", "", "text", "Validation"},
		{"page missing", gallery.URL + "/nope", "text", "HTTP_404"},
		{"bad format", gallery.URL + "/gallery", "json", "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			exitCode := doDiscover(context.Background(), "", tt.url, tt.format, quietLogger(), &stdout, &stderr)
			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestDoCrawl(t *testing.T) {
	gallery := newGallery(t)
	dest := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := doCrawl(context.Background(), crawlOptions{
		pageURL:  gallery.URL + "/gallery",
		destDir:  dest,
		top:      2,
		format:   "text",
		progress: true,
	}, quietLogger(), &stdout, &stderr)

	require.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "Downloaded 2 of 2 images (0 failed)")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.jpg", "b.png"}, names)
	assert.Contains(t, stderr.String(), "Downloading", "progress bar drawn on stderr")
}

func TestDoCrawl_Rejections(t *testing.T) {
	gallery := newGallery(t)

	tests := []struct {
		name    string
		opts    crawlOptions
		wantErr string
	}{
		{"destination not chosen", crawlOptions{pageURL: gallery.URL + "/gallery"}, "Validation"},
		{"destination missing", crawlOptions{pageURL: gallery.URL + "/gallery", destDir: filepath.Join(t.TempDir(), "missing")}, "Filesystem_NotExist"},
		{"no images found", crawlOptions{pageURL: gallery.URL + "/blank", destDir: t.TempDir()}, "no images found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.format = "text"
			var stdout, stderr bytes.Buffer
			exitCode := doCrawl(context.Background(), tt.opts, quietLogger(), &stdout, &stderr)
			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestDoDownload_ReportsItemFailures(t *testing.T) {
	gallery := newGallery(t)
	dest := t.TempDir()

	var stdout, stderr bytes.Buffer
	exitCode := doDownload(context.Background(), "", []string{gallery.URL + "/a.jpg", gallery.URL + "/gone.jpg"},
		dest, 2, "text", false, quietLogger(), &stdout, &stderr)

	assert.Equal(t, 0, exitCode, "item failures are reported, not fatal")
	out := stdout.String()
	assert.Contains(t, out, "Downloaded 1 of 2 images (1 failed)")
	assert.Contains(t, out, gallery.URL+"/gone.jpg")
	assert.Contains(t, out, "[HTTP_404]")
	_, err := os.Stat(filepath.Join(dest, "a.jpg"))
	assert.NoError(t, err)
}

func TestDoDownload_YAMLReport(t *testing.T) {
	gallery := newGallery(t)

	var stdout, stderr bytes.Buffer
	exitCode := doDownload(context.Background(), "", []string{gallery.URL + "/b.png"},
		t.TempDir(), 0, "yaml", false, quietLogger(), &stdout, &stderr)
	require.Equal(t, 0, exitCode, stderr.String())

	var result models.BatchResult
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].Success)
}

func TestDoDownload_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		urls    []string
		dest    string
		wantErr string
	}{
		{"no items selected", nil, t.TempDir(), "no items selected"},
		{"invalid url", []string{"not a url"}, t.TempDir(), "Validation"},
		{"destination not chosen", []string{"https://example.com/a.png"}, "", "destination directory not chosen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			exitCode := doDownload(context.Background(), "", tt.urls, tt.dest, 0, "text", false, quietLogger(), &stdout, &stderr)
			assert.Equal(t, 1, exitCode)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestWriteBatchReport_NoFailures(t *testing.T) {
	var buf bytes.Buffer
	result := models.BatchResult{
		SuccessCount: 2,
		Outcomes: []models.DownloadOutcome{
			{Item: models.ResourceItem{URL: "https://x.com/a.png"}, Success: true},
			{Item: models.ResourceItem{URL: "https://x.com/b.png"}, Success: true},
		},
	}
	require.NoError(t, writeBatchReport(&buf, result, "text"))
	assert.Contains(t, buf.String(), "Downloaded 2 of 2 images (0 failed)")
	assert.NotContains(t, buf.String(), "Failures:")
}

func TestWriteRankedList_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRankedList(&buf, nil, "text"))
	assert.Equal(t, "No images found.\n", buf.String())
}

func TestLazyProgress(t *testing.T) {
	assert.Nil(t, newLazyProgress(io.Discard, false))

	var buf bytes.Buffer
	observer := newLazyProgress(&buf, true)
	require.NotNil(t, observer)
	for i := 1; i <= 3; i++ {
		observer.OnProgress(models.ProgressEvent{Completed: i, Total: 3})
	}
	assert.Contains(t, buf.String(), "Downloading")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	log := setupLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = setupLogger("bogus", &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestDoMcpServer_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, doMcpServer("", "carrier-pigeon", 0, "info", &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown transport")

	// an invalid level only warns, like every other subcommand
	stderr.Reset()
	assert.Equal(t, 1, doMcpServer("", "carrier-pigeon", 0, "loud", &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Invalid log level 'loud', using default 'info'")
	assert.Contains(t, stderr.String(), "Unknown transport")

	stderr.Reset()
	assert.Equal(t, 1, doMcpServer("/nonexistent.yaml", "stdio", 0, "info", &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Error loading config")
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"discover", "crawl", "download", "validate", "mcp-server", "version"} {
		assert.Contains(t, out, cmd)
	}
}
