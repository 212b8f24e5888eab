package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/metrics"
	"github.com/juju/ratelimit"
)

type AccessToucherConfig struct {
	Workers   int
	QueueSize int
	// Rate caps timestamp writes per second, zero means unlimited.
	Rate    float64
	Timeout time.Duration
}

type touchJob struct {
	dataset string
	conn    storage.Connector
	key     storage.Key
	level   storage.Consistency
}

// AccessToucher writes last-access timestamps off the request path.
//
// Enqueue never blocks: when the queue is full or the rate limit is
// exhausted the update is dropped. Lost updates only make a tile look older
// to cache maintenance.
type AccessToucher struct {
	jobs    chan touchJob
	bucket  *ratelimit.Bucket
	timeout time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAccessToucher(cfg AccessToucherConfig, l logger.Logger) *AccessToucher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	t := &AccessToucher{
		jobs:    make(chan touchJob, queueSize),
		timeout: timeout,
		logger:  l,
	}
	if cfg.Rate > 0 {
		capacity := int64(cfg.Rate)
		if capacity < 1 {
			capacity = 1
		}
		t.bucket = ratelimit.NewBucketWithRate(cfg.Rate, capacity)
	}

	t.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.work()
	}

	return t
}

// Enqueue schedules one timestamp update and reports whether it was
// accepted.
func (t *AccessToucher) Enqueue(dataset string, conn storage.Connector, key storage.Key, level storage.Consistency) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return false
	}

	if t.bucket != nil && t.bucket.TakeAvailable(1) == 0 {
		metrics.AccessTouches.WithLabelValues(metrics.TouchLimited).Inc()
		return false
	}

	select {
	case t.jobs <- touchJob{dataset: dataset, conn: conn, key: key, level: level}:
		metrics.AccessTouchQueue.Inc()
		return true
	default:
		metrics.AccessTouches.WithLabelValues(metrics.TouchDropped).Inc()
		t.logger.Warn("access timestamp queue full, dropping update", "dataset", dataset, "key", key)
		return false
	}
}

func (t *AccessToucher) work() {
	defer t.wg.Done()
	for job := range t.jobs {
		metrics.AccessTouchQueue.Dec()
		t.touch(job)
	}
}

func (t *AccessToucher) touch(job touchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if err := job.conn.TouchAccessTimestamp(ctx, job.key, job.level); err != nil {
		metrics.AccessTouches.WithLabelValues(metrics.TouchFailed).Inc()
		t.logger.Warn("failed to update access timestamp", "dataset", job.dataset, "key", job.key, "error", err)
		return
	}
	metrics.AccessTouches.WithLabelValues(metrics.TouchDone).Inc()
}

// Close stops accepting updates and waits until the queued ones are written.
func (t *AccessToucher) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.jobs)
	t.mu.Unlock()

	t.wg.Wait()
}
