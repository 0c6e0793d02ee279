package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

const testQueue = "dashboard"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestWorker(t *testing.T) (*Worker, *JobQueue, *miniredis.Miniredis, *fakeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)}
	w := NewWorker(WorkerConfig{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{testQueue},
		RetryDelay:   time.Second,
		Logger:       zerolog.Nop(),
		Now:          clock.Now,
	})
	q := NewJobQueue(client, testQueue, 3, zerolog.Nop())
	return w, q, mr, clock
}

func retryCount(mr *miniredis.Miniredis) int {
	members, _ := mr.ZMembers(RetryQueue)
	return len(members)
}

func TestWorker_ProcessesJob(t *testing.T) {
	w, q, _, _ := setupTestWorker(t)
	ctx := context.Background()

	var got *Job
	w.RegisterHandler(JobTypeSummaryRefresh, func(ctx context.Context, job *Job) error {
		got = job
		return nil
	})

	enqueued, err := q.Enqueue(ctx, JobTypeSummaryRefresh, map[string]string{"user_id": "abc"})
	require.NoError(t, err)

	require.NoError(t, w.ProcessNextJob(ctx))
	require.NotNil(t, got)
	assert.Equal(t, enqueued.ID, got.ID)
	assert.Equal(t, "abc", got.Payload["user_id"])
	assert.Equal(t, testQueue, got.Queue)

	size, err := q.GetQueueSize(ctx, testQueue)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestWorker_EmptyPollIsNotAnError(t *testing.T) {
	w, _, _, _ := setupTestWorker(t)
	assert.NoError(t, w.ProcessNextJob(context.Background()))
}

func TestWorker_RetryWithBackoffThenDeadQueue(t *testing.T) {
	w, q, mr, clock := setupTestWorker(t)
	ctx := context.Background()

	var calls int
	w.RegisterHandler(JobTypeSummaryRefresh, func(ctx context.Context, job *Job) error {
		calls++
		return errors.New("database unavailable")
	})

	_, err := q.Enqueue(ctx, JobTypeSummaryRefresh, map[string]string{"user_id": "abc"})
	require.NoError(t, err)

	// First failure schedules a retry one second out.
	require.NoError(t, w.ProcessNextJob(ctx))
	require.Equal(t, 1, retryCount(mr))

	moved, err := w.PromoteDueJobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved, "retry must wait for its delay")

	clock.Advance(time.Second)
	moved, err = w.PromoteDueJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// Second failure doubles the delay.
	require.NoError(t, w.ProcessNextJob(ctx))
	clock.Advance(time.Second)
	moved, _ = w.PromoteDueJobs(ctx)
	assert.Zero(t, moved)
	clock.Advance(time.Second)
	moved, _ = w.PromoteDueJobs(ctx)
	assert.Equal(t, 1, moved)

	// Third failure exhausts the attempts.
	require.NoError(t, w.ProcessNextJob(ctx))
	assert.Equal(t, 3, calls)
	assert.Zero(t, retryCount(mr))

	dead, err := mr.List(DeadQueue)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	var deadJob DeadJob
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &deadJob))
	assert.Equal(t, "database unavailable", deadJob.Error)
	require.NotNil(t, deadJob.Job)
	assert.Equal(t, 3, deadJob.Job.Attempts)
}

func TestWorker_PermanentErrorSkipsRetries(t *testing.T) {
	w, q, mr, _ := setupTestWorker(t)
	ctx := context.Background()

	w.RegisterHandler(JobTypeSummaryRefresh, func(ctx context.Context, job *Job) error {
		return ErrPermanent
	})

	_, err := q.Enqueue(ctx, JobTypeSummaryRefresh, nil)
	require.NoError(t, err)
	require.NoError(t, w.ProcessNextJob(ctx))

	assert.Zero(t, retryCount(mr))
	dead, _ := mr.List(DeadQueue)
	assert.Len(t, dead, 1)
}

func TestWorker_UnknownJobTypeAndMalformedPayload(t *testing.T) {
	w, q, mr, _ := setupTestWorker(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, JobType("mystery"), nil)
	require.NoError(t, err)
	require.NoError(t, w.ProcessNextJob(ctx))

	_, err = mr.RPush(testQueue, "{not json")
	require.NoError(t, err)
	require.NoError(t, w.ProcessNextJob(ctx))

	dead, err := mr.List(DeadQueue)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	assert.Contains(t, dead[0], "no handler for job type mystery")
	assert.Contains(t, dead[1], `"raw":"{not json"`)
}

func TestWorker_StartAndStop(t *testing.T) {
	w, q, _, _ := setupTestWorker(t)

	var processed atomic.Int32
	w.RegisterHandler(JobTypeSummaryRefresh, func(ctx context.Context, job *Job) error {
		processed.Add(1)
		return nil
	})

	w.Start(2)
	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(context.Background(), JobTypeSummaryRefresh, nil)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return processed.Load() == 5 }, 5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type fakeDashboard struct {
	mu        sync.Mutex
	refreshed []uuid.UUID
	err       error
}

func (f *fakeDashboard) Summary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error) {
	return &models.TaskSummary{}, nil
}

func (f *fakeDashboard) Dashboard(ctx context.Context, ownerID uuid.UUID) (*services.Dashboard, error) {
	return &services.Dashboard{}, nil
}

func (f *fakeDashboard) Invalidate(ctx context.Context, ownerID uuid.UUID) error {
	return nil
}

func (f *fakeDashboard) RefreshSummary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, ownerID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.TaskSummary{}, nil
}

func TestSummaryRefresh_ScheduledAndHandled(t *testing.T) {
	w, q, _, _ := setupTestWorker(t)
	ctx := context.Background()

	dashboard := &fakeDashboard{}
	w.RegisterHandler(JobTypeSummaryRefresh, NewSummaryRefreshHandler(dashboard))

	ownerID := uuid.Must(uuid.NewV4())
	require.NoError(t, q.ScheduleSummaryRefresh(ctx, ownerID))
	require.NoError(t, w.ProcessNextJob(ctx))

	assert.Equal(t, []uuid.UUID{ownerID}, dashboard.refreshed)
}

func TestSummaryRefreshHandler_InvalidUserIsPermanent(t *testing.T) {
	handler := NewSummaryRefreshHandler(&fakeDashboard{})

	err := handler(context.Background(), &Job{Payload: map[string]string{"user_id": "nope"}})
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestSummaryRefreshHandler_RefreshErrorIsRetryable(t *testing.T) {
	handler := NewSummaryRefreshHandler(&fakeDashboard{err: errors.New("timeout")})

	err := handler(context.Background(), &Job{Payload: map[string]string{"user_id": uuid.Must(uuid.NewV4()).String()}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)
}
