package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"image-crawler/pkg/crawler"
	"image-crawler/pkg/models"
	"image-crawler/pkg/utils"
)

// handleDiscoverImages handles the discover_images tool
func (s *Server) handleDiscoverImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL := request.GetString("url", "")
	if pageURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	limit := request.GetInt("limit", 0)

	startTime := time.Now()
	list, err := s.service.Discover(ctx, pageURL)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discovery failed (%s): %v", utils.CategorizeError(err), err)), nil
	}

	shown := list
	if limit > 0 && limit < len(list) {
		shown = list[:limit]
	}

	result := map[string]interface{}{
		"page_url":     pageURL,
		"images":       rankedImages(shown),
		"total_found":  len(list),
		"discovery_ms": time.Since(startTime).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDownloadImages handles the download_images tool
func (s *Server) handleDownloadImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destination := request.GetString("destination", "")
	if destination == "" {
		return mcp.NewToolResultError("destination parameter is required"), nil
	}
	pageURL := request.GetString("page_url", "")
	rawURLs := splitURLs(request.GetString("urls", ""))
	if len(rawURLs) == 0 && pageURL == "" {
		return mcp.NewToolResultError("either urls or page_url is required"), nil
	}
	concurrency := request.GetInt("concurrency", 0)
	if concurrency < 0 {
		return mcp.NewToolResultError("concurrency must be positive"), nil
	}

	var items []models.ResourceItem
	if len(rawURLs) > 0 {
		var err error
		items, err = crawler.ItemsFromURLs(rawURLs)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid urls: %v", err)), nil
		}
	}

	jobID, jobCtx := s.jobManager.CreateJob(pageURL, destination)
	plan := downloadPlan{
		items:       items,
		pageURL:     pageURL,
		top:         request.GetInt("top", 0),
		all:         request.GetBool("all", false),
		destination: destination,
		concurrency: concurrency,
	}
	go s.runDownloadJob(jobCtx, jobID, plan)

	result := map[string]interface{}{
		"status":      "started",
		"message":     "Download started",
		"job_id":      jobID,
		"destination": destination,
		"concurrency": s.effectiveConcurrency(concurrency),
	}
	if pageURL != "" && len(items) == 0 {
		result["page_url"] = pageURL
	} else {
		result["total"] = len(items)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := jobSummary(job)
	if len(job.Failures) > 0 {
		failures := make([]map[string]interface{}, 0, len(job.Failures))
		for _, f := range job.Failures {
			failures = append(failures, map[string]interface{}{
				"url":        f.Item.URL,
				"error":      f.ErrorMessage,
				"error_type": f.ErrorType,
			})
		}
		result["failures"] = failures
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	summaries := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary(job))
	}

	result := map[string]interface{}{
		"jobs":       summaries,
		"total_jobs": len(summaries),
		"config":     s.configSource(),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// effectiveConcurrency is the worker count a batch will use for the requested value
func (s *Server) effectiveConcurrency(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.service.Config().DownloadConcurrency
}

type downloadPlan struct {
	items       []models.ResourceItem
	pageURL     string
	top         int
	all         bool
	destination string
	concurrency int
}

// runDownloadJob resolves the item list and hands it to the batch engine.
// Any rejection before the batch starts marks the job failed.
func (s *Server) runDownloadJob(ctx context.Context, jobID string, plan downloadPlan) {
	jobLog := s.log.WithField("job_id", jobID)
	defer func() {
		if r := recover(); r != nil {
			jobLog.WithField("panic_info", r).Error("PANIC Recovered in runDownloadJob")
			s.jobManager.Fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	items := plan.items
	if len(items) == 0 {
		list, err := s.service.Discover(ctx, plan.pageURL)
		if err != nil {
			jobLog.Warnf("Discovery failed: %v", err)
			s.jobManager.Fail(jobID, err.Error())
			return
		}
		if len(list) == 0 {
			s.jobManager.Fail(jobID, fmt.Sprintf("%v: no images found on '%s'", utils.ErrValidation, plan.pageURL))
			return
		}
		items = s.service.Select(list, plan.top, plan.all)
	}

	batch, err := s.service.StartDownload(ctx, items, plan.destination, plan.concurrency, nil)
	if err != nil {
		jobLog.Warnf("Download rejected: %v", err)
		s.jobManager.Fail(jobID, err.Error())
		return
	}
	s.jobManager.Attach(jobID, batch)
	jobLog.WithFields(logrus.Fields{"batch_id": batch.ID(), "items": len(items)}).Info("Download job running")
}

func jobSummary(job Job) map[string]interface{} {
	summary := map[string]interface{}{
		"job_id":      job.ID,
		"status":      job.Status,
		"destination": job.Destination,
		"started_at":  job.StartedAt.Format(time.RFC3339),
		"completed":   job.Completed,
		"total":       job.Total,
		"succeeded":   job.Succeeded,
		"failed":      job.Failed,
	}
	if job.PageURL != "" {
		summary["page_url"] = job.PageURL
	}
	if !job.CompletedAt.IsZero() {
		summary["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		summary["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		summary["error_message"] = job.ErrorMessage
	}
	return summary
}

func rankedImages(list models.RankedList) []map[string]interface{} {
	images := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		images = append(images, map[string]interface{}{
			"rank":       i + 1,
			"url":        item.URL,
			"size_bytes": item.SizeBytes,
			"size":       utils.FormatItemSize(item),
		})
	}
	return images
}

// splitURLs accepts commas, spaces and newlines as separators
func splitURLs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
