package main

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"image-crawler/pkg/download"
	"image-crawler/pkg/models"
)

// lazyProgress draws a progress bar sized by the first event, since a crawl only
// learns its batch size after discovery and selection.
// Events arrive serially from the batch collector, so no locking is needed.
type lazyProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// newLazyProgress returns a bar observer writing to out, or nil when disabled
func newLazyProgress(out io.Writer, enabled bool) download.ProgressObserver {
	if !enabled {
		return nil
	}
	return &lazyProgress{out: out}
}

// OnProgress implements download.ProgressObserver
func (p *lazyProgress) OnProgress(event models.ProgressEvent) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(
			int64(event.Total),
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetItsString("img"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.bar.Set(event.Completed)
	if event.Completed >= event.Total {
		_ = p.bar.Finish()
		_, _ = io.WriteString(p.out, "\n")
	}
}
