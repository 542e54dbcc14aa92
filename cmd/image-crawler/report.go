package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"image-crawler/pkg/models"
	"image-crawler/pkg/utils"
)

// writeRankedList prints a discovery result largest-first
func writeRankedList(w io.Writer, list models.RankedList, format string) error {
	if format == "yaml" {
		return encodeYAML(w, map[string]interface{}{
			"total_found": len(list),
			"images":      []models.ResourceItem(list),
		})
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No images found.")
		return err
	}
	for i, item := range list {
		if _, err := fmt.Fprintf(w, "%3d. %12s  %s\n", i+1, utils.FormatItemSize(item), item.URL); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nFound %d images.\n", len(list))
	return err
}

// writeBatchReport prints the terminal summary of a batch: the counts, then URL and
// reason for every failure
func writeBatchReport(w io.Writer, result models.BatchResult, format string) error {
	if format == "yaml" {
		return encodeYAML(w, result)
	}

	if _, err := fmt.Fprintf(w, "Downloaded %d of %d images (%d failed) in %v\n",
		result.SuccessCount, result.Total(), result.FailureCount, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)); err != nil {
		return err
	}
	failures := result.Failures()
	if len(failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nFailures:"); err != nil {
		return err
	}
	for _, f := range failures {
		if _, err := fmt.Fprintf(w, "  - %s\n    [%s] %s\n", f.Item.URL, f.ErrorType, f.ErrorMessage); err != nil {
			return err
		}
	}
	return nil
}

func encodeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
