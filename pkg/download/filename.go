package download

import (
	"strings"

	"github.com/google/uuid"
)

const maxFilenameLength = 255 // Typical filesystem limit for a single path component

// GenerateFilename derives the on-disk name for a resource URL: the text after the
// last '/' when it contains a '.', otherwise image_<8 hex>.jpg.
// Names are not deduplicated; two items mapping to the same name overwrite each other.
func GenerateFilename(rawURL string) string {
	name := rawURL
	if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		name = rawURL[i+1:]
	}
	if !usableFilename(name) {
		return fallbackFilename()
	}
	return name
}

func usableFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if !strings.Contains(name, ".") {
		return false
	}
	if len(name) > maxFilenameLength {
		return false
	}
	return !strings.ContainsAny(name, "\\\x00")
}

func fallbackFilename() string {
	return "image_" + uuid.New().String()[:8] + ".jpg"
}
