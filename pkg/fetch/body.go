package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	"image-crawler/pkg/utils"
)

// BodyFetcher streams resource bodies with the same header set as SizeProbe
type BodyFetcher struct {
	fetcher *Fetcher
	timeout time.Duration
}

// NewBodyFetcher creates a BodyFetcher. A zero timeout leaves body fetches unbounded,
// matching the historical behavior where only probes carry a deadline.
func NewBodyFetcher(fetcher *Fetcher, timeout time.Duration) *BodyFetcher {
	return &BodyFetcher{fetcher: fetcher, timeout: timeout}
}

// Open issues a GET for rawURL and returns its body for a 2xx response.
// The returned reader must be closed; closing it also releases the deadline, if any.
func (b *BodyFetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
	}

	resp, err := b.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return n, err
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
