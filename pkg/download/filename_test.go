package download

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var fallbackPattern = regexp.MustCompile(`^image_[0-9a-f]{8}\.jpg$`)

func TestGenerateFilename(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string // empty means the fallback pattern is expected
	}{
		{"LastSegment", "https://x.com/a/b/photo.png", "photo.png"},
		{"QueryKeptVerbatim", "https://x.com/a/b/photo.png?w=100", "photo.png?w=100"},
		{"MultipleDots", "https://x.com/archive.tar.gz", "archive.tar.gz"},
		{"RootPath", "https://x.com/", ""},
		{"NoExtension", "https://x.com/images/12345", ""},
		{"DotDot", "https://x.com/a/..", ""},
		{"SingleDot", "https://x.com/a/.", ""},
		{"Backslash", `https://x.com/a/..\..\etc.conf`, ""},
		{"TooLong", "https://x.com/" + strings.Repeat("a", 300) + ".png", ""},
		{"NoSlashAtAll", "photo.png", "photo.png"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateFilename(tt.url)
			if tt.expected == "" {
				assert.Regexp(t, fallbackPattern, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestGenerateFilename_FallbackIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[GenerateFilename("https://x.com/")] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestGenerateFilename_NeverEscapesDirectory(t *testing.T) {
	inputs := []string{
		"https://x.com/../../etc/passwd.txt",
		"https://x.com/%2e%2e",
		"https://x.com/a/..",
		"..",
	}
	for _, in := range inputs {
		name := GenerateFilename(in)
		assert.NotContains(t, name, "/")
		assert.NotEqual(t, "..", name)
		assert.NotEqual(t, ".", name)
	}
}
