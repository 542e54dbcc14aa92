package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"image-crawler/pkg/fetch"
	"image-crawler/pkg/models"
	"image-crawler/pkg/parse"
	"image-crawler/pkg/storage"
	"image-crawler/pkg/utils"
)

// SizeProber learns a resource's byte length. It must never fail; failure is models.SizeUnknown.
type SizeProber interface {
	Probe(ctx context.Context, rawURL string) int64
}

// PageSource fetches the page discovery starts from
type PageSource interface {
	FetchPage(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// Discoverer turns a page into a RankedList of image references
type Discoverer struct {
	pages       PageSource
	prober      SizeProber
	cache       storage.SizeStore // optional
	concurrency int
	log         *logrus.Entry
}

// NewDiscoverer creates a Discoverer. cache may be nil; concurrency < 1 probes sequentially.
func NewDiscoverer(pages PageSource, prober SizeProber, cache storage.SizeStore, concurrency int, log *logrus.Entry) *Discoverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Discoverer{
		pages:       pages,
		prober:      prober,
		cache:       cache,
		concurrency: concurrency,
		log:         log.WithField("component", "discoverer"),
	}
}

// DiscoverURL fetches pageURL and discovers its images.
// Any failure to obtain the page is returned wrapped with utils.ErrDiscovery and no list.
func (d *Discoverer) DiscoverURL(ctx context.Context, pageURL string) (models.RankedList, error) {
	if _, err := parse.ParsePageURL(pageURL); err != nil {
		return nil, err
	}
	d.log.WithField("url", pageURL).Info("Fetching page")

	page, err := d.pages.FetchPage(ctx, pageURL)
	if err != nil {
		d.log.WithField("url", pageURL).Errorf("Page fetch failed: %v", err)
		return nil, err
	}
	return d.Discover(ctx, page.Content, page.FinalURL)
}

// Discover extracts every <img src> from pageContent, resolves it against baseURL, probes
// each for its size and returns the items ranked largest-first.
// A failed probe only makes that item's size unknown.
func (d *Discoverer) Discover(ctx context.Context, pageContent []byte, baseURL string) (models.RankedList, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || !parse.IsFetchable(base) {
		return nil, fmt.Errorf("%w: base URL %q must be absolute http or https", utils.ErrValidation, baseURL)
	}

	urls, err := ExtractImageURLs(pageContent, base)
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{"page": base.String(), "images": len(urls)}).Debug("Extracted image references")

	items := d.probeAll(ctx, urls)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: probing interrupted: %w", utils.ErrDiscovery, ctxErr)
	}

	ranked := Rank(items)
	for _, item := range ranked {
		d.log.WithField("url", item.URL).Debugf("Found image (%s)", utils.FormatItemSize(item))
	}
	if len(ranked) > 0 {
		d.log.WithFields(logrus.Fields{
			"page":    base.String(),
			"count":   len(ranked),
			"largest": utils.FormatItemSize(ranked[0]),
		}).Info("Discovery complete")
	} else {
		d.log.WithField("page", base.String()).Info("Discovery complete, no images found")
	}
	return ranked, nil
}

// ExtractImageURLs returns the absolute http(s) URL of every <img src> in document order.
// A <base href> element, when present, takes precedence over base. Blank or unresolvable
// references are dropped; repeated references are kept.
func ExtractImageURLs(pageContent []byte, base *url.URL) ([]string, error) {
	// Parsed as a non-scripting client so images inside <noscript> are elements, not text
	root, err := html.ParseWithOptions(bytes.NewReader(pageContent), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: HTML: %w", utils.ErrDiscovery, utils.ErrParsing, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved := parse.ResolveReference(base, href); resolved != "" {
			if u, errParse := url.Parse(resolved); errParse == nil {
				base = u
			}
		}
	}

	var urls []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Attr("src")
		if !exists {
			return
		}
		if abs := parse.ResolveReference(base, src); abs != "" {
			urls = append(urls, abs)
		}
	})
	return urls, nil
}

// probeAll sizes every URL with bounded parallelism. Each distinct URL is probed once;
// results land by discovery index so completion order never affects ordering.
func (d *Discoverer) probeAll(ctx context.Context, urls []string) []models.ResourceItem {
	distinct := make(map[string]int, len(urls))
	var order []string
	for _, u := range urls {
		if _, seen := distinct[u]; !seen {
			distinct[u] = len(order)
			order = append(order, u)
		}
	}

	sizes := make([]int64, len(order))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, u := range order {
		g.Go(func() error {
			sizes[i] = d.sizeOf(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	items := make([]models.ResourceItem, len(urls))
	for i, u := range urls {
		items[i] = models.ResourceItem{URL: u, SizeBytes: sizes[distinct[u]]}
	}
	return items
}

func (d *Discoverer) sizeOf(ctx context.Context, rawURL string) int64 {
	if d.cache != nil {
		size, found, err := d.cache.GetSize(rawURL)
		if err != nil {
			d.log.WithField("url", rawURL).Debugf("Probe cache read failed: %v", err)
		} else if found {
			return size
		}
	}

	size := d.prober.Probe(ctx, rawURL)
	if size < 0 {
		return models.SizeUnknown
	}
	if d.cache != nil {
		if err := d.cache.PutSize(rawURL, size); err != nil {
			d.log.WithField("url", rawURL).Warnf("Probe cache write failed: %v", err)
		}
	}
	return size
}

// Rank returns a copy of items sorted by size descending with unknown sizes last.
// The sort is stable, so ties and unknowns keep first-seen order.
func Rank(items []models.ResourceItem) models.RankedList {
	ranked := make(models.RankedList, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Known() != b.Known() {
			return a.Known()
		}
		return a.SizeBytes > b.SizeBytes
	})
	return ranked
}

// DefaultSelection returns the first n items of a ranked list, or all of them when
// the list is shorter. n <= 0 selects nothing.
func DefaultSelection(list models.RankedList, n int) []models.ResourceItem {
	if n <= 0 || len(list) == 0 {
		return nil
	}
	if n > len(list) {
		n = len(list)
	}
	selected := make([]models.ResourceItem, n)
	copy(selected, list[:n])
	return selected
}
