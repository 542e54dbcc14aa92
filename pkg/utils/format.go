package utils

import (
	"fmt"

	"image-crawler/pkg/models"
)

const (
	kib = 1024
	mib = 1024 * 1024
)

// FormatSize renders a byte count as B, KB or MB with two decimals; SizeUnknown renders as "unknown"
func FormatSize(bytes int64) string {
	switch {
	case bytes < 0:
		return "unknown"
	case bytes < kib:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mib:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mib)
	}
}

// FormatItemSize is FormatSize for a ResourceItem
func FormatItemSize(item models.ResourceItem) string {
	if !item.Known() {
		return FormatSize(models.SizeUnknown)
	}
	return FormatSize(item.SizeBytes)
}
