package models

import "time"

// SizeUnknown marks a ResourceItem whose byte length could not be learned from a probe
const SizeUnknown int64 = -1

// ResourceItem is one discovered image reference. Items are never mutated after discovery
type ResourceItem struct {
	URL       string `json:"url" yaml:"url"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"` // SizeUnknown when the probe yielded nothing usable
}

// Known reports whether the item carries a real byte length
func (r ResourceItem) Known() bool {
	return r.SizeBytes >= 0
}

// RankedList holds items largest-first; unknown sizes trail in first-seen order
type RankedList []ResourceItem

// URLs returns the item URLs in list order
func (l RankedList) URLs() []string {
	urls := make([]string, len(l))
	for i, item := range l {
		urls[i] = item.URL
	}
	return urls
}

// DownloadJob is the caller-chosen subset of a RankedList plus where and how wide to fetch it
type DownloadJob struct {
	Items       []ResourceItem
	DestDir     string
	Concurrency int // 0 selects the configured default
}

// DownloadOutcome is the terminal result of one item's fetch attempt
type DownloadOutcome struct {
	Item         ResourceItem `json:"item" yaml:"item"`
	Success      bool         `json:"success" yaml:"success"`
	ErrorMessage string       `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ErrorType    string       `json:"error_type,omitempty" yaml:"error_type,omitempty"` // utils.CategorizeError category
	SavedPath    string       `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
}

// BatchResult aggregates every outcome of a DownloadJob
type BatchResult struct {
	SuccessCount int               `json:"success_count" yaml:"success_count"`
	FailureCount int               `json:"failure_count" yaml:"failure_count"`
	Outcomes     []DownloadOutcome `json:"outcomes" yaml:"outcomes"` // completion order
	StartedAt    time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time         `json:"finished_at" yaml:"finished_at"`
}

// Total is the number of outcomes recorded
func (r BatchResult) Total() int {
	return len(r.Outcomes)
}

// Failures returns the failed outcomes in recorded order
func (r BatchResult) Failures() []DownloadOutcome {
	var failed []DownloadOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}

// ProgressEvent is published once per terminal outcome
type ProgressEvent struct {
	Completed   int
	Total       int
	LastOutcome DownloadOutcome
}

// SizeCacheEntry is the stored form of a successful size probe
type SizeCacheEntry struct {
	SizeBytes int64     `json:"size_bytes"`
	ProbedAt  time.Time `json:"probed_at"`
}
