package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultViewFlushInterval = 500 * time.Millisecond
	DefaultViewBatchSize     = 50
)

// ViewStore persists accumulated views. The post repository implements it.
type ViewStore interface {
	IncrementViews(ctx context.Context, id string, n int) error
}

// ViewCounter 异步累加帖子浏览量
//
// Record 只负责入队，后台 worker 按帖子聚合后批量写库，
// 每个 flush 周期或攒满一批时落盘一次。
type ViewCounter struct {
	store    ViewStore
	log      *zap.Logger
	queue    chan string
	interval time.Duration
	batch    int

	stop     chan struct{}
	finished chan struct{}
	stopOnce sync.Once

	// mu orders Record against the final drain and the overflow wait.
	mu       sync.RWMutex
	stopped  bool
	closed   bool
	overflow sync.WaitGroup
}

func NewViewCounter(store ViewStore, log *zap.Logger, interval time.Duration, batch int) *ViewCounter {
	if interval <= 0 {
		interval = DefaultViewFlushInterval
	}
	if batch <= 0 {
		batch = DefaultViewBatchSize
	}
	return &ViewCounter{
		store:    store,
		log:      log,
		queue:    make(chan string, batch*20), // 缓冲队列，防止阻塞
		interval: interval,
		batch:    batch,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Record counts one view of postID. It does not block while the worker is
// running; once Close is waiting for the last writes it applies the view
// inline.
func (v *ViewCounter) Record(postID string) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.stopped {
		select {
		case v.queue <- postID:
			return
		default:
			// 队列满了，单独起 goroutine 写库，不丢计数
			v.log.Warn("view queue full, applying directly", zap.String("post_id", postID))
		}
	}
	if v.closed {
		v.flush(map[string]int{postID: 1})
		return
	}
	v.overflow.Add(1)
	go func() {
		defer v.overflow.Done()
		v.flush(map[string]int{postID: 1})
	}()
}

// Run processes the queue until ctx is cancelled or Close is called, then
// flushes whatever is still pending.
func (v *ViewCounter) Run(ctx context.Context) error {
	defer close(v.finished)

	pending := make(map[string]int)
	queued := 0
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case id := <-v.queue:
			pending[id]++
			queued++
			if queued >= v.batch {
				v.flush(pending)
				pending = make(map[string]int)
				queued = 0
			}
		case <-ticker.C:
			if queued > 0 {
				v.flush(pending)
				pending = make(map[string]int)
				queued = 0
			}
		case <-ctx.Done():
			v.drain(pending)
			return nil
		case <-v.stop:
			v.drain(pending)
			return nil
		}
	}
}

// drain 之后不再有人写 queue
func (v *ViewCounter) drain(pending map[string]int) {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()

	for {
		select {
		case id := <-v.queue:
			pending[id]++
		default:
			if len(pending) > 0 {
				v.flush(pending)
			}
			return
		}
	}
}

// Close stops the worker and waits for the final flush.
func (v *ViewCounter) Close(ctx context.Context) error {
	v.stopOnce.Do(func() { close(v.stop) })

	done := make(chan struct{})
	go func() {
		<-v.finished
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		v.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush 逐帖写入累计的浏览量，单个失败不影响其他帖子
func (v *ViewCounter) flush(counts map[string]int) {
	ctx := context.Background()
	failed := 0
	for id, n := range counts {
		if err := v.store.IncrementViews(ctx, id, n); err != nil {
			failed++
			v.log.Error("flush view count failed", zap.String("post_id", id), zap.Int("views", n), zap.Error(err))
		}
	}
	v.log.Debug("view counts flushed", zap.Int("posts", len(counts)), zap.Int("failed", failed))
}
