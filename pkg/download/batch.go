package download

import (
	"sync"
	"sync/atomic"
	"time"

	"image-crawler/pkg/models"
)

// Tally is a point-in-time view of a running batch
type Tally struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Batch is the handle of one started DownloadJob.
// Counters are written only by the batch's collector and may be read at any time.
type Batch struct {
	id        string
	total     int
	startedAt time.Time

	completed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	mu     sync.RWMutex
	status models.BatchStatus
	result models.BatchResult

	done       chan struct{}
	finishOnce sync.Once
}

func newBatch(id string, total int) *Batch {
	return &Batch{
		id:        id,
		total:     total,
		startedAt: time.Now(),
		status:    models.BatchStatusPending,
		done:      make(chan struct{}),
	}
}

// ID returns the batch identifier used in logs
func (b *Batch) ID() string { return b.id }

// Status returns the current lifecycle state
func (b *Batch) Status() models.BatchStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Tally returns the live success/failure counts
func (b *Batch) Tally() Tally {
	return Tally{
		Completed: int(b.completed.Load()),
		Total:     b.total,
		Succeeded: int(b.succeeded.Load()),
		Failed:    int(b.failed.Load()),
	}
}

// Done is closed once every item has an outcome and all workers have exited
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch completes and returns its result
func (b *Batch) Wait() models.BatchResult {
	<-b.done
	return b.snapshot()
}

// Result returns the final result without blocking; ok is false while the batch runs
func (b *Batch) Result() (models.BatchResult, bool) {
	select {
	case <-b.done:
		return b.snapshot(), true
	default:
		return models.BatchResult{}, false
	}
}

func (b *Batch) snapshot() models.BatchResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := b.result
	res.Outcomes = append([]models.DownloadOutcome(nil), b.result.Outcomes...)
	if res.Outcomes == nil {
		res.Outcomes = []models.DownloadOutcome{}
	}
	return res
}

// advance moves the batch forward one state; illegal transitions are ignored
func (b *Batch) advance(next models.BatchStatus) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.status.CanTransitionTo(next) {
		return false
	}
	b.status = next
	return true
}

// record is called by the collector only
func (b *Batch) record(outcome models.DownloadOutcome) int {
	if outcome.Success {
		b.succeeded.Add(1)
	} else {
		b.failed.Add(1)
	}
	return int(b.completed.Add(1))
}

// finish publishes the result and fires completion exactly once
func (b *Batch) finish(outcomes []models.DownloadOutcome) bool {
	fired := false
	b.finishOnce.Do(func() {
		b.mu.Lock()
		b.result = models.BatchResult{
			SuccessCount: int(b.succeeded.Load()),
			FailureCount: int(b.failed.Load()),
			Outcomes:     outcomes,
			StartedAt:    b.startedAt,
			FinishedAt:   time.Now(),
		}
		if b.status.CanTransitionTo(models.BatchStatusCompleted) {
			b.status = models.BatchStatusCompleted
		}
		b.mu.Unlock()
		close(b.done)
		fired = true
	})
	return fired
}
