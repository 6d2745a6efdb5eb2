package jobs

import (
	"context"
	"sync"
	"time"

	"docquizai/internal/logger"

	"github.com/google/uuid"
)

// Local runs every scheduled quiz in its own goroutine. A quiz already running is not
// started a second time.
type Local struct {
	handler  Handler
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	log      *logger.Logger
}

func NewLocal(handler Handler, log *logger.Logger) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		handler:  handler,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[uuid.UUID]struct{}),
		log:      log.With("component", "scheduler"),
	}
}

// Schedule starts the job detached from ctx, which usually belongs to an HTTP request.
func (l *Local) Schedule(ctx context.Context, quizID uuid.UUID) error {
	l.mu.Lock()
	// Checked under mu so no job is added once Stop has started waiting.
	if err := l.ctx.Err(); err != nil {
		l.mu.Unlock()
		return err
	}
	if _, running := l.inflight[quizID]; running {
		l.mu.Unlock()
		l.log.Debug("quiz already running", "quiz_id", quizID)
		return nil
	}
	l.inflight[quizID] = struct{}{}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.inflight, quizID)
			l.mu.Unlock()
		}()

		start := time.Now()
		if err := l.handler(l.ctx, quizID); err != nil {
			l.log.Error("quiz job failed", "quiz_id", quizID, "error", err, "elapsed", time.Since(start))
			return
		}
		l.log.Debug("quiz job done", "quiz_id", quizID, "elapsed", time.Since(start))
	}()
	return nil
}

// Wait blocks until every scheduled job has returned.
func (l *Local) Wait() {
	l.wg.Wait()
}

// Stop cancels running jobs and waits for them. Cancelled quizzes keep their checkpoint.
func (l *Local) Stop() {
	l.mu.Lock()
	l.cancel()
	l.mu.Unlock()
	l.wg.Wait()
}
