package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"docquizai/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestLocal_RunsAndWaits(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []uuid.UUID
	)
	l := NewLocal(func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, id)
		return nil
	}, logger.Nop())

	for i := 0; i < 3; i++ {
		if err := l.Schedule(context.Background(), uuid.New()); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	l.Wait()

	if len(seen) != 3 {
		t.Fatalf("ran %d jobs, want 3", len(seen))
	}
}

func TestLocal_DetachedFromCallerContext(t *testing.T) {
	done := make(chan error, 1)
	l := NewLocal(func(ctx context.Context, id uuid.UUID) error {
		done <- ctx.Err()
		return nil
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Schedule(ctx, uuid.New()); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	cancel()
	l.Wait()

	if err := <-done; err != nil {
		t.Fatalf("job saw a cancelled context: %v", err)
	}
}

func TestLocal_SkipsQuizAlreadyRunning(t *testing.T) {
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		runs int
	)
	l := NewLocal(func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		runs++
		mu.Unlock()
		<-release
		return nil
	}, logger.Nop())

	id := uuid.New()
	l.Schedule(context.Background(), id)
	l.Schedule(context.Background(), id)
	close(release)
	l.Wait()

	if runs != 1 {
		t.Fatalf("quiz ran %d times, want 1", runs)
	}
}

func TestLocal_StopCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	l := NewLocal(func(ctx context.Context, id uuid.UUID) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, logger.Nop())

	l.Schedule(context.Background(), uuid.New())
	<-started
	l.Stop()

	if err := l.Schedule(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected Schedule to fail after Stop")
	}
}

func TestLocal_ScheduleRacingStop(t *testing.T) {
	var (
		mu   sync.Mutex
		runs int
	)
	l := NewLocal(func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}, logger.Nop())

	var (
		wg       sync.WaitGroup
		accepted int
		amu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Schedule(context.Background(), uuid.New()) == nil {
				amu.Lock()
				accepted++
				amu.Unlock()
			}
		}()
	}
	l.Stop()
	wg.Wait()
	l.Wait()

	mu.Lock()
	defer mu.Unlock()
	if runs != accepted {
		t.Fatalf("ran %d jobs, accepted %d", runs, accepted)
	}
}

// fakeRedis implements RedisClient over an in-memory list and expiring locks.
type fakeRedis struct {
	mu       sync.Mutex
	list     []string
	locks    map[string]fakeLock
	refreshes int
}

type fakeLock struct {
	value   string
	expires time.Time
}

func newFakeRedis() *fakeRedis { return &fakeRedis{locks: map[string]fakeLock{}} }

// lock presets a lock held by another process.
func (f *fakeRedis) lock(key, value string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[key] = fakeLock{value: value, expires: time.Now().Add(ttl)}
}

// held reports whether key is locked and by whom.
func (f *fakeRedis) held(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[key]
	if !ok || time.Now().After(l.expires) {
		return "", false
	}
	return l.value, true
}

func (f *fakeRedis) queueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.list)
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.list = append(f.list, v.(string))
	}
	return redis.NewIntResult(int64(len(f.list)), nil)
}

func (f *fakeRedis) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	deadline := time.Now().Add(timeout)
	for {
		f.mu.Lock()
		if len(f.list) > 0 {
			v := f.list[0]
			f.list = f.list[1:]
			f.mu.Unlock()
			return redis.NewStringSliceResult([]string{keys[0], v}, nil)
		}
		f.mu.Unlock()

		if ctx.Err() != nil {
			return redis.NewStringSliceResult(nil, ctx.Err())
		}
		if time.Now().After(deadline) {
			return redis.NewStringSliceResult(nil, redis.Nil)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[key]; ok && time.Now().Before(l.expires) {
		return redis.NewBoolResult(false, nil)
	}
	f.locks[key] = fakeLock{value: value.(string), expires: time.Now().Add(expiration)}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[key]
	if !ok || time.Now().After(l.expires) {
		return redis.NewBoolResult(false, nil)
	}
	l.expires = time.Now().Add(expiration)
	f.locks[key] = l
	f.refreshes++
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.locks[k]; ok {
			delete(f.locks, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestQueue_ProcessesScheduledQuizzes(t *testing.T) {
	rdb := newFakeRedis()
	processed := make(chan uuid.UUID, 3)
	q := NewQueue(rdb, func(ctx context.Context, id uuid.UUID) error {
		processed <- id
		return nil
	}, 2, logger.Nop())

	want := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		id := uuid.New()
		want[id] = true
		if err := q.Schedule(context.Background(), id); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if len(rdb.list) != 3 {
		t.Fatalf("queue holds %d entries, want 3", len(rdb.list))
	}

	q.Start()
	for i := 0; i < 3; i++ {
		select {
		case id := <-processed:
			if !want[id] {
				t.Fatalf("unexpected quiz %s", id)
			}
			delete(want, id)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for queue workers")
		}
	}
	q.Stop()

	rdb.mu.Lock()
	defer rdb.mu.Unlock()
	if len(rdb.locks) != 0 {
		t.Fatalf("locks not released: %v", rdb.locks)
	}
}

func TestQueue_RetriesQuizOnceStaleLockExpires(t *testing.T) {
	rdb := newFakeRedis()
	id := uuid.New()
	lockKey := lockPrefix + id.String()
	// Left behind by a worker that crashed mid-run.
	rdb.lock(lockKey, "dead-worker", 100*time.Millisecond)

	processed := make(chan uuid.UUID, 2)
	q := NewQueue(rdb, func(ctx context.Context, got uuid.UUID) error {
		processed <- got
		return nil
	}, 1, logger.Nop())
	q.retryDelay = 20 * time.Millisecond

	q.Schedule(context.Background(), id)
	q.Start()

	select {
	case got := <-processed:
		if got != id {
			t.Fatalf("processed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("quiz never ran (queue_len=%d)", rdb.queueLen())
	}
	q.Stop()

	if len(processed) != 0 {
		t.Fatal("quiz ran twice")
	}
	if _, ok := rdb.held(lockKey); ok {
		t.Fatal("lock not released after the run")
	}
}

func TestQueue_KeepsLockedQuizQueuedOnStop(t *testing.T) {
	rdb := newFakeRedis()
	id := uuid.New()
	rdb.lock(lockPrefix+id.String(), "other-process", time.Hour)

	q := NewQueue(rdb, func(ctx context.Context, got uuid.UUID) error {
		t.Errorf("locked quiz %s was processed", got)
		return nil
	}, 1, logger.Nop())
	q.retryDelay = time.Hour

	q.Schedule(context.Background(), id)
	q.Start()
	deadline := time.Now().Add(2 * time.Second)
	for rdb.queueLen() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let the worker reach the lock check.
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	if n := rdb.queueLen(); n != 1 {
		t.Fatalf("queue holds %d entries after stop, want 1", n)
	}
	if v, _ := rdb.held(lockPrefix + id.String()); v != "other-process" {
		t.Fatal("foreign lock was released")
	}
}

func TestQueue_RefreshesLockDuringLongRun(t *testing.T) {
	rdb := newFakeRedis()
	id := uuid.New()
	lockKey := lockPrefix + id.String()

	heldAtEnd := make(chan bool, 1)
	q := NewQueue(rdb, func(ctx context.Context, got uuid.UUID) error {
		// Runs for several lock lifetimes.
		time.Sleep(200 * time.Millisecond)
		_, ok := rdb.held(lockKey)
		heldAtEnd <- ok
		return nil
	}, 1, logger.Nop())
	q.lockTTL = 60 * time.Millisecond

	q.Schedule(context.Background(), id)
	q.Start()

	select {
	case ok := <-heldAtEnd:
		if !ok {
			t.Fatal("lock lapsed while the quiz was still running")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue worker")
	}
	q.Stop()

	rdb.mu.Lock()
	defer rdb.mu.Unlock()
	if rdb.refreshes == 0 {
		t.Fatal("lock was never refreshed")
	}
}

func TestQueue_DropsMalformedPayload(t *testing.T) {
	rdb := newFakeRedis()
	rdb.list = []string{"not-a-uuid"}
	id := uuid.New()

	processed := make(chan uuid.UUID, 1)
	q := NewQueue(rdb, func(ctx context.Context, got uuid.UUID) error {
		processed <- got
		return nil
	}, 1, logger.Nop())
	q.Schedule(context.Background(), id)
	q.Start()
	defer q.Stop()

	select {
	case got := <-processed:
		if got != id {
			t.Fatalf("processed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue worker")
	}
}
