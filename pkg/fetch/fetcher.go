package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"image-crawler/pkg/utils"
)

// Fetcher issues single-attempt requests carrying a fixed header set.
// It never retries; a failed attempt is reported to the caller as-is.
type Fetcher struct {
	client  *http.Client
	headers http.Header
	log     *logrus.Entry
}

// NewFetcher creates a Fetcher. headers is cloned onto every request
func NewFetcher(client *http.Client, headers http.Header, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:  client,
		headers: headers.Clone(),
		log:     log,
	}
}

// Headers returns a copy of the header set sent on every request
func (f *Fetcher) Headers() http.Header {
	return f.headers.Clone()
}

// NewRequest builds a request bound to ctx with the fixed header set applied
func (f *Fetcher) NewRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", utils.ErrRequestCreation, method, rawURL, err)
	}
	req.Header = f.headers.Clone()
	return req, nil
}

// RoundTrip performs req once and returns the response whatever its status.
// Only transport-level failures produce an error, wrapped with utils.ErrTransport.
func (f *Fetcher) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			drainAndClose(resp.Body)
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrTransport, err)
	}
	return resp, nil
}

// Fetch performs a GET against rawURL and returns the response only for a 2xx status.
// The caller must close the body. Non-2xx responses are drained and converted to
// sentinel errors (utils.ErrClientHTTPError and friends) wrapped in utils.ErrTransport.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := f.NewRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	reqLog := f.log.WithField("url", rawURL)

	resp, err := f.RoundTrip(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reqLog.Debugf("Request aborted by context: %v", err)
		} else {
			reqLog.Debugf("Network error: %v", err)
		}
		return nil, err
	}

	if statusErr := classifyStatus(resp); statusErr != nil {
		reqLog.WithField("status_code", resp.StatusCode).Debugf("Non-success status: %v", statusErr)
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: %w", utils.ErrTransport, statusErr)
	}
	reqLog.WithField("status_code", resp.StatusCode).Debug("Successfully fetched")
	return resp, nil
}

// classifyStatus maps a non-2xx response to a sentinel error; 2xx yields nil
func classifyStatus(resp *http.Response) error {
	statusCode := resp.StatusCode
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
	case statusCode >= 400:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
	default:
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
	}
}

// drainAndClose lets the transport reuse the connection
func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
