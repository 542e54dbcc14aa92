package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"image-crawler/pkg/config"
	"image-crawler/pkg/discover"
	"image-crawler/pkg/download"
	"image-crawler/pkg/fetch"
	"image-crawler/pkg/models"
	"image-crawler/pkg/parse"
	"image-crawler/pkg/storage"
	"image-crawler/pkg/utils"
)

// Service wires discovery and batch downloading from one AppConfig.
// It is safe for concurrent use; every batch shares the HTTP client, the probe cache
// and the optional transport cap.
type Service struct {
	cfg        *config.AppConfig
	log        *logrus.Entry
	cache      storage.SizeStore // nil when the probe cache is disabled
	discoverer *discover.Discoverer
	downloader *download.BatchDownloader
}

// ServiceOptions contains optional parameters for NewService
type ServiceOptions struct {
	// HTTPClient replaces the client built from cfg.HTTPClientSettings
	HTTPClient *http.Client
}

// CrawlRequest describes a discover-then-download run
type CrawlRequest struct {
	PageURL     string
	DestDir     string
	Top         int  // 0 selects the configured default selection
	All         bool // download the whole ranked list
	Concurrency int  // 0 selects the configured default
}

// NewService creates a Service. cfg must already be validated.
func NewService(cfg *config.AppConfig, logger *logrus.Logger) (*Service, error) {
	return NewServiceWithOptions(cfg, logger, nil)
}

// NewServiceWithOptions creates a Service with optional overrides
func NewServiceWithOptions(cfg *config.AppConfig, logger *logrus.Logger, opts *ServiceOptions) (*Service, error) {
	baseLog := logrus.NewEntry(logger)

	var httpClient *http.Client
	if opts != nil && opts.HTTPClient != nil {
		httpClient = opts.HTTPClient
	} else {
		httpClient = fetch.NewClient(cfg.HTTPClientSettings, logger)
	}
	fetcher := fetch.NewFetcher(httpClient, cfg.Headers(), baseLog)

	var cache storage.SizeStore
	if !cfg.DisableProbeCache && cfg.ProbeCacheTTL > 0 {
		store, err := storage.NewBadgerStore(cfg.ProbeCacheTTL, baseLog)
		if err != nil {
			return nil, fmt.Errorf("initializing probe cache: %w", err)
		}
		cache = store
	}

	probe := fetch.NewSizeProbe(fetcher, cfg.ProbeTimeout, baseLog)
	pages := fetch.NewPageFetcher(fetcher, cfg.PageTimeout, cfg.MaxPageSizeBytes, baseLog)
	bodies := fetch.NewBodyFetcher(fetcher, cfg.DownloadTimeout)

	s := &Service{
		cfg:        cfg,
		log:        baseLog.WithField("component", "service"),
		cache:      cache,
		discoverer: discover.NewDiscoverer(pages, probe, cache, cfg.ProbeConcurrency, baseLog),
		downloader: download.NewBatchDownloader(bodies, baseLog,
			download.WithDefaultConcurrency(cfg.DownloadConcurrency),
			download.WithTransportLimit(int64(cfg.MaxRequests)),
		),
	}
	s.log.WithFields(logrus.Fields{
		"probe_concurrency":    cfg.ProbeConcurrency,
		"download_concurrency": cfg.DownloadConcurrency,
		"max_requests":         cfg.MaxRequests,
		"probe_cache":          cache != nil,
	}).Debug("Service initialized")
	return s, nil
}

// Config returns the configuration the service was built from
func (s *Service) Config() *config.AppConfig { return s.cfg }

// Discover fetches pageURL and returns its images ranked largest-first.
// An empty page URL is rejected before any request is made.
func (s *Service) Discover(ctx context.Context, pageURL string) (models.RankedList, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, fmt.Errorf("%w: page URL is empty", utils.ErrValidation)
	}
	return s.discoverer.DiscoverURL(ctx, strings.TrimSpace(pageURL))
}

// DefaultSelection returns the leading items picked when the caller makes no choice
func (s *Service) DefaultSelection(list models.RankedList) []models.ResourceItem {
	return discover.DefaultSelection(list, s.cfg.DefaultSelectionCount)
}

// Select picks the whole list, its top n items, or the default selection when n is 0
func (s *Service) Select(list models.RankedList, top int, all bool) []models.ResourceItem {
	switch {
	case all:
		return discover.DefaultSelection(list, len(list))
	case top > 0:
		return discover.DefaultSelection(list, top)
	default:
		return s.DefaultSelection(list)
	}
}

// ItemsFromURLs turns explicit resource URLs into download items of unknown size
func ItemsFromURLs(urls []string) ([]models.ResourceItem, error) {
	items := make([]models.ResourceItem, 0, len(urls))
	for _, raw := range urls {
		u, err := parse.ParsePageURL(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		items = append(items, models.ResourceItem{URL: u.String(), SizeBytes: models.SizeUnknown})
	}
	return items, nil
}

// StartDownload validates the selection and launches a batch without waiting for it
func (s *Service) StartDownload(ctx context.Context, items []models.ResourceItem, destDir string, concurrency int, observer download.ProgressObserver) (*download.Batch, error) {
	if err := checkSelection(items, destDir); err != nil {
		return nil, err
	}
	return s.downloader.Start(ctx, models.DownloadJob{Items: items, DestDir: destDir, Concurrency: concurrency}, observer)
}

// Download runs a batch to completion
func (s *Service) Download(ctx context.Context, items []models.ResourceItem, destDir string, concurrency int, observer download.ProgressObserver) (models.BatchResult, error) {
	batch, err := s.StartDownload(ctx, items, destDir, concurrency, observer)
	if err != nil {
		return models.BatchResult{}, err
	}
	return batch.Wait(), nil
}

// Crawl discovers req.PageURL and downloads the selected items.
// The ranked list is returned alongside the result so callers can report it.
func (s *Service) Crawl(ctx context.Context, req CrawlRequest, observer download.ProgressObserver) (models.RankedList, models.BatchResult, error) {
	if strings.TrimSpace(req.PageURL) == "" {
		return nil, models.BatchResult{}, fmt.Errorf("%w: page URL is empty", utils.ErrValidation)
	}
	if req.DestDir == "" {
		return nil, models.BatchResult{}, fmt.Errorf("%w: destination directory not chosen", utils.ErrValidation)
	}

	list, err := s.Discover(ctx, req.PageURL)
	if err != nil {
		return nil, models.BatchResult{}, err
	}
	if len(list) == 0 {
		return list, models.BatchResult{}, fmt.Errorf("%w: no images found on '%s'", utils.ErrValidation, req.PageURL)
	}

	selected := s.Select(list, req.Top, req.All)
	s.log.WithFields(logrus.Fields{"page": req.PageURL, "found": len(list), "selected": len(selected)}).Info("Starting download of selected images")

	result, err := s.Download(ctx, selected, req.DestDir, req.Concurrency, observer)
	return list, result, err
}

// Close releases the probe cache
func (s *Service) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

func checkSelection(items []models.ResourceItem, destDir string) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items selected", utils.ErrValidation)
	}
	if destDir == "" {
		return fmt.Errorf("%w: destination directory not chosen", utils.ErrValidation)
	}
	return nil
}
