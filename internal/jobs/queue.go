package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"docquizai/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	QueueKey   = "queue:quiz-generation"
	lockPrefix = "job_lock:"
	popTimeout = 5 * time.Second

	// A held lock is refreshed every lockTTL/3, so it only lapses when its worker dies.
	defaultLockTTL = 2 * time.Minute
	// How long a quiz popped while locked waits before it goes back on the queue.
	defaultRetryDelay = 15 * time.Second
)

// RedisClient is the part of *redis.Client the queue uses.
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient connects to redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// Queue pushes quiz ids onto a Redis list and runs them on a pool of workers. Several
// processes can share one queue; a per-quiz lock keeps a quiz on a single worker.
// A quiz popped while another worker holds its lock is pushed back after a delay.
type Queue struct {
	rdb        RedisClient
	handler    Handler
	workers    int
	lockTTL    time.Duration
	retryDelay time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *logger.Logger
}

func NewQueue(rdb RedisClient, handler Handler, workers int, log *logger.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		rdb:        rdb,
		handler:    handler,
		workers:    workers,
		lockTTL:    defaultLockTTL,
		retryDelay: defaultRetryDelay,
		ctx:        ctx,
		cancel:     cancel,
		log:        log.With("component", "queue"),
	}
}

func (q *Queue) Schedule(ctx context.Context, quizID uuid.UUID) error {
	if err := q.rdb.RPush(ctx, QueueKey, quizID.String()).Err(); err != nil {
		return fmt.Errorf("failed to enqueue quiz %s: %w", quizID, err)
	}
	return nil
}

// Start launches the workers.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.Info("started queue workers", "count", q.workers)
}

// Stop cancels the workers and the jobs they run, then waits for them.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.log.With("worker", id)

	for {
		if q.ctx.Err() != nil {
			log.Debug("worker shutting down")
			return
		}

		result, err := q.rdb.BLPop(q.ctx, popTimeout, QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || q.ctx.Err() != nil {
				continue
			}
			log.Warn("failed to pop job", "error", err)
			select {
			case <-q.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		quizID, err := uuid.Parse(result[1])
		if err != nil {
			log.Warn("dropping malformed job", "payload", result[1])
			continue
		}
		q.process(log, id, quizID)
	}
}

func (q *Queue) process(log *logger.Logger, workerID int, quizID uuid.UUID) {
	lockKey := lockPrefix + quizID.String()
	locked, err := q.rdb.SetNX(q.ctx, lockKey, strconv.Itoa(workerID), q.lockTTL).Result()
	if err != nil || !locked {
		log.Debug("quiz locked, retrying later", "quiz_id", quizID, "error", err)
		q.requeueLater(log, quizID)
		return
	}

	jobCtx, stopRefresh := context.WithCancel(q.ctx)
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		q.refreshLock(jobCtx, log, lockKey)
	}()
	defer func() {
		stopRefresh()
		<-refreshed
		// The lock is released even when the queue is stopping.
		if err := q.rdb.Del(context.Background(), lockKey).Err(); err != nil {
			log.Warn("failed to release job lock", "quiz_id", quizID, "error", err)
		}
	}()

	start := time.Now()
	log.Info("processing quiz", "quiz_id", quizID)
	if err := q.handler(jobCtx, quizID); err != nil {
		log.Error("quiz job failed", "quiz_id", quizID, "error", err, "elapsed", time.Since(start))
		return
	}
	log.Info("quiz job done", "quiz_id", quizID, "elapsed", time.Since(start))
}

// refreshLock extends the lock until ctx is done.
func (q *Queue) refreshLock(ctx context.Context, log *logger.Logger, lockKey string) {
	ticker := time.NewTicker(q.lockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.rdb.Expire(ctx, lockKey, q.lockTTL).Err(); err != nil && ctx.Err() == nil {
				log.Warn("failed to refresh job lock", "key", lockKey, "error", err)
			}
		}
	}
}

// requeueLater pushes quizID back once retryDelay has passed, or right away when the
// queue stops so the id stays in Redis for the next process.
func (q *Queue) requeueLater(log *logger.Logger, quizID uuid.UUID) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-q.ctx.Done():
		case <-time.After(q.retryDelay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.rdb.RPush(ctx, QueueKey, quizID.String()).Err(); err != nil {
			log.Error("failed to requeue locked quiz", "quiz_id", quizID, "error", err)
		}
	}()
}
