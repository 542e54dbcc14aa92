package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"image-crawler/pkg/utils"
)

// Page is a fetched HTML document and the URL it was finally served from
type Page struct {
	Content  []byte
	FinalURL string
}

// PageFetcher downloads the page that discovery starts from
type PageFetcher struct {
	fetcher *Fetcher
	timeout time.Duration
	maxSize int64
	log     *logrus.Entry
}

// NewPageFetcher creates a PageFetcher; maxSize <= 0 disables the size limit
func NewPageFetcher(fetcher *Fetcher, timeout time.Duration, maxSize int64, log *logrus.Entry) *PageFetcher {
	return &PageFetcher{
		fetcher: fetcher,
		timeout: timeout,
		maxSize: maxSize,
		log:     log.WithField("component", "page_fetcher"),
	}
}

// FetchPage retrieves rawURL. Every failure is wrapped with utils.ErrDiscovery.
func (p *PageFetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", utils.ErrDiscovery, rawURL, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if p.maxSize > 0 {
		reader = io.LimitReader(resp.Body, p.maxSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w: %w", utils.ErrDiscovery, rawURL, utils.ErrResponseBodyRead, err)
	}
	if p.maxSize > 0 && int64(len(content)) > p.maxSize {
		return nil, fmt.Errorf("%w: %s: %w (limit %d bytes)", utils.ErrDiscovery, rawURL, utils.ErrPageTooLarge, p.maxSize)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	p.log.WithFields(logrus.Fields{"url": rawURL, "final_url": finalURL, "bytes": len(content)}).Debug("Page fetched")
	return &Page{Content: content, FinalURL: finalURL}, nil
}
