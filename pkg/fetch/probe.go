package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"image-crawler/pkg/models"
)

// SizeProbe learns a resource's byte length from a HEAD request
type SizeProbe struct {
	fetcher *Fetcher
	timeout time.Duration
	log     *logrus.Entry
}

// NewSizeProbe creates a SizeProbe; timeout <= 0 means no per-probe deadline
func NewSizeProbe(fetcher *Fetcher, timeout time.Duration, log *logrus.Entry) *SizeProbe {
	return &SizeProbe{
		fetcher: fetcher,
		timeout: timeout,
		log:     log.WithField("component", "size_probe"),
	}
}

// Probe returns the declared Content-Length of rawURL, or models.SizeUnknown.
// Any status code is accepted; only a missing/negative length or a failed request
// (timeout, DNS, refused, bad URL) yields SizeUnknown. Probe never returns an error.
func (p *SizeProbe) Probe(ctx context.Context, rawURL string) int64 {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	probeLog := p.log.WithField("url", rawURL)

	req, err := p.fetcher.NewRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		probeLog.Debugf("Probe skipped: %v", err)
		return models.SizeUnknown
	}
	resp, err := p.fetcher.RoundTrip(req)
	if err != nil {
		probeLog.Debugf("Probe failed, size unknown: %v", err)
		return models.SizeUnknown
	}
	defer drainAndClose(resp.Body)

	if resp.ContentLength < 0 {
		probeLog.WithField("status_code", resp.StatusCode).Debug("No Content-Length, size unknown")
		return models.SizeUnknown
	}
	probeLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "size": resp.ContentLength}).Debug("Probe complete")
	return resp.ContentLength
}
