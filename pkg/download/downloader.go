package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"image-crawler/pkg/models"
	"image-crawler/pkg/utils"
)

const DefaultConcurrency = 5

// BodySource streams a resource body. Implementations send the shared header set.
type BodySource interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ProgressObserver receives one event per terminal outcome.
// Events for a batch are delivered serially from a single goroutine.
type ProgressObserver interface {
	OnProgress(event models.ProgressEvent)
}

// ProgressFunc adapts a function to ProgressObserver
type ProgressFunc func(event models.ProgressEvent)

// OnProgress implements ProgressObserver
func (f ProgressFunc) OnProgress(event models.ProgressEvent) { f(event) }

// BatchDownloader fetches DownloadJobs through a bounded worker pool
type BatchDownloader struct {
	bodies             BodySource
	defaultConcurrency int
	transport          *semaphore.Weighted // optional, shared by every batch of this downloader
	log                *logrus.Entry
}

// Option configures a BatchDownloader
type Option func(*BatchDownloader)

// WithDefaultConcurrency sets the pool width used when a job leaves Concurrency at 0
func WithDefaultConcurrency(n int) Option {
	return func(d *BatchDownloader) {
		if n > 0 {
			d.defaultConcurrency = n
		}
	}
}

// WithTransportLimit caps simultaneous body fetches across all batches started by this
// downloader. n <= 0 leaves only the per-batch pool width in effect.
func WithTransportLimit(n int64) Option {
	return func(d *BatchDownloader) {
		if n > 0 {
			d.transport = semaphore.NewWeighted(n)
		}
	}
}

// NewBatchDownloader creates a BatchDownloader
func NewBatchDownloader(bodies BodySource, log *logrus.Entry, opts ...Option) *BatchDownloader {
	d := &BatchDownloader{
		bodies:             bodies,
		defaultConcurrency: DefaultConcurrency,
		log:                log.WithField("component", "batch_downloader"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts job and blocks until every item has an outcome
func (d *BatchDownloader) Run(ctx context.Context, job models.DownloadJob, observer ProgressObserver) (models.BatchResult, error) {
	batch, err := d.Start(ctx, job, observer)
	if err != nil {
		return models.BatchResult{}, err
	}
	return batch.Wait(), nil
}

// Start validates job and launches its workers without waiting for them.
// The job is rejected (no worker started, no outcome produced) when the concurrency is
// negative, the destination is unset, or the destination is not an existing directory.
// A zero-item job completes immediately without touching the transport.
func (d *BatchDownloader) Start(ctx context.Context, job models.DownloadJob, observer ProgressObserver) (*Batch, error) {
	if job.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", utils.ErrValidation, job.Concurrency)
	}
	width := job.Concurrency
	if width == 0 {
		width = d.defaultConcurrency
	}

	total := len(job.Items)
	batch := newBatch(uuid.New().String(), total)
	batchLog := d.log.WithFields(logrus.Fields{"batch_id": batch.ID(), "items": total})

	if total == 0 {
		batch.advance(models.BatchStatusRunning)
		batch.finish([]models.DownloadOutcome{})
		batchLog.Debug("Empty batch completed immediately")
		return batch, nil
	}

	if err := checkDestination(job.DestDir); err != nil {
		batchLog.Errorf("Batch rejected: %v", err)
		return nil, err
	}
	if width > total {
		width = total
	}

	tasks := make(chan models.ResourceItem, total)
	for _, item := range job.Items {
		tasks <- item
	}
	close(tasks)
	outcomes := make(chan models.DownloadOutcome, total)

	batch.advance(models.BatchStatusRunning)
	batchLog.WithFields(logrus.Fields{"workers": width, "dest": job.DestDir}).Info("Batch started")

	var workers sync.WaitGroup
	for w := 1; w <= width; w++ {
		workers.Add(1)
		go d.worker(ctx, w, job.DestDir, tasks, outcomes, &workers, batchLog)
	}
	go d.collect(batch, outcomes, &workers, observer, batchLog)

	return batch, nil
}

// checkDestination requires an existing directory; it is never created here
func checkDestination(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: destination directory not chosen", utils.ErrValidation)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: destination '%s': %w", utils.ErrFilesystem, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: destination '%s' is not a directory", utils.ErrFilesystem, dir)
	}
	return nil
}

// worker drains tasks until the queue is closed and empty
func (d *BatchDownloader) worker(ctx context.Context, id int, destDir string, tasks <-chan models.ResourceItem, outcomes chan<- models.DownloadOutcome, wg *sync.WaitGroup, batchLog *logrus.Entry) {
	defer wg.Done()
	workerLog := batchLog.WithField("worker_id", id)
	for item := range tasks {
		outcomes <- d.processItem(ctx, item, destDir, workerLog)
	}
}

// collect owns the outcome list and counters. It notifies the observer after each
// outcome and finalizes the batch once the count reaches the submitted total.
func (d *BatchDownloader) collect(batch *Batch, outcomes <-chan models.DownloadOutcome, workers *sync.WaitGroup, observer ProgressObserver, batchLog *logrus.Entry) {
	collected := make([]models.DownloadOutcome, 0, batch.total)
	for len(collected) < batch.total {
		outcome := <-outcomes
		collected = append(collected, outcome)
		completed := batch.record(outcome)
		if observer != nil {
			notify(observer, models.ProgressEvent{Completed: completed, Total: batch.total, LastOutcome: outcome}, batchLog)
		}
	}

	workers.Wait()
	batch.finish(collected)

	tally := batch.Tally()
	batchLog.WithFields(logrus.Fields{"succeeded": tally.Succeeded, "failed": tally.Failed}).Info("Batch completed")
}

func notify(observer ProgressObserver, event models.ProgressEvent, batchLog *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			batchLog.WithField("panic_info", r).Error("PANIC Recovered in progress observer")
		}
	}()
	observer.OnProgress(event)
}

// processItem runs one fetch attempt and always yields exactly one outcome, even on panic
func (d *BatchDownloader) processItem(ctx context.Context, item models.ResourceItem, destDir string, workerLog *logrus.Entry) (outcome models.DownloadOutcome) {
	itemLog := workerLog.WithField("url", item.URL)

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic downloading '%s': %v", item.URL, r)
			itemLog.WithFields(logrus.Fields{"panic_info": r, "stack_trace": string(debug.Stack())}).Error("PANIC Recovered in processItem")
			outcome = failedOutcome(item, panicErr)
		}
	}()

	savedPath, err := d.fetchToFile(ctx, item.URL, destDir, itemLog)
	if err != nil {
		itemLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Download failed: %v", err)
		return failedOutcome(item, err)
	}
	itemLog.WithField("path", savedPath).Debug("Download complete")
	return models.DownloadOutcome{Item: item, Success: true, SavedPath: savedPath}
}

func failedOutcome(item models.ResourceItem, err error) models.DownloadOutcome {
	return models.DownloadOutcome{
		Item:         item,
		Success:      false,
		ErrorMessage: err.Error(),
		ErrorType:    utils.CategorizeError(err),
	}
}

// fetchToFile streams rawURL into destDir. On failure after the file was created the
// partial file is removed.
func (d *BatchDownloader) fetchToFile(ctx context.Context, rawURL, destDir string, itemLog *logrus.Entry) (string, error) {
	localPath := filepath.Join(destDir, GenerateFilename(rawURL))

	if d.transport != nil {
		if err := d.transport.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("%w: acquiring transport slot for '%s': %w", utils.ErrSemaphoreTimeout, rawURL, err)
		}
		defer d.transport.Release(1)
	}

	body, err := d.bodies.Open(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch failed for '%s': %w", rawURL, err)
	}
	defer body.Close()

	outFile, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating file '%s': %w", utils.ErrFilesystem, localPath, err)
	}

	copied, copyErr := io.Copy(outFile, body)
	closeErr := outFile.Close()
	if copyErr != nil || closeErr != nil {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			itemLog.Warnf("Could not remove partial file '%s': %v", localPath, rmErr)
		}
	}
	if copyErr != nil {
		var pathErr *fs.PathError
		if errors.As(copyErr, &pathErr) {
			return "", fmt.Errorf("%w: writing '%s' (copied %d bytes): %w", utils.ErrFilesystem, localPath, copied, copyErr)
		}
		return "", fmt.Errorf("%w: reading body of '%s' (copied %d bytes): %w", utils.ErrTransport, rawURL, copied, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("%w: closing file '%s' after write: %w", utils.ErrFilesystem, localPath, closeErr)
	}
	return localPath, nil
}
