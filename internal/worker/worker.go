package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type JobType string

const (
	JobTypeSummaryRefresh JobType = "summary_refresh"
)

const (
	// RetryQueue is a sorted set scored by the unix millisecond at which a
	// failed job becomes due again.
	RetryQueue = "queue:retry"
	DeadQueue  = "queue:dead"

	defaultMaxTries   = 3
	defaultRetryDelay = 5 * time.Second
	jobTimeout        = 30 * time.Second
)

// ErrPermanent marks a job failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

type Job struct {
	ID        string            `json:"id"`
	Type      JobType           `json:"type"`
	Queue     string            `json:"queue"`
	Payload   map[string]string `json:"payload"`
	Attempts  int               `json:"attempts"`
	MaxTries  int               `json:"max_tries"`
	CreatedAt time.Time         `json:"created_at"`
	ProcessAt time.Time         `json:"process_at"`
}

type DeadJob struct {
	Job      *Job      `json:"original_job,omitempty"`
	Raw      string    `json:"raw,omitempty"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client      *redis.Client
	handlers    map[JobType]JobHandler
	queues      []string
	pollTimeout time.Duration
	retryDelay  time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	RedisClient  *redis.Client
	PollInterval time.Duration
	Queues       []string
	RetryDelay   time.Duration
	Logger       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	pollTimeout := config.PollInterval
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Worker{
		client:      config.RedisClient,
		handlers:    make(map[JobType]JobHandler),
		queues:      config.Queues,
		pollTimeout: pollTimeout,
		retryDelay:  retryDelay,
		logger:      config.Logger.With().Str("component", "worker").Logger(),
		now:         now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start runs concurrency consumers plus one goroutine that moves due
// retries back onto their queues.
func (w *Worker) Start(concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	w.logger.Info().Int("concurrency", concurrency).Strs("queues", w.queues).Msg("starting worker")

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}

	w.wg.Add(1)
	go w.retryLoop()
}

func (w *Worker) Stop() {
	w.logger.Info().Msg("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if err := w.ProcessNextJob(w.ctx); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("error processing job")
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Worker) retryLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.PromoteDueJobs(w.ctx); err != nil && w.ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("failed to promote retry jobs")
			}
		}
	}
}

// ProcessNextJob blocks for up to the poll interval waiting for a job and
// runs it. An empty poll is not an error.
func (w *Worker) ProcessNextJob(ctx context.Context) error {
	if len(w.queues) == 0 {
		return errors.New("worker has no queues")
	}

	result, err := w.client.BLPop(ctx, w.pollTimeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.logger.Error().Err(err).Str("queue", result[0]).Msg("discarding malformed job")
		return w.bury(ctx, DeadJob{Raw: result[1], Error: err.Error(), FailedAt: w.now()})
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}

	return w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	log := w.logger.With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()

	if !exists {
		log.Error().Msg("no handler registered for job type")
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("%w: no handler for job type %s", ErrPermanent, job.Type))
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		log.Debug().Msg("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries && !errors.Is(err, ErrPermanent) {
		log.Warn().Err(err).Int("attempt", job.Attempts).Int("max_tries", job.MaxTries).Msg("job failed, retrying")
		return w.retryJob(ctx, job)
	}

	log.Error().Err(err).Int("attempts", job.Attempts).Msg("job failed permanently")
	return w.moveToDeadQueue(ctx, job, err)
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryDelay * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.ZAdd(ctx, RetryQueue, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

// PromoteDueJobs moves retries whose time has come back to their queues.
// ZREM decides ownership so concurrent promoters never duplicate a job.
func (w *Worker) PromoteDueJobs(ctx context.Context) (int, error) {
	due, err := w.client.ZRangeByScore(ctx, RetryQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(w.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read retry queue: %w", err)
	}

	moved := 0
	for _, member := range due {
		removed, err := w.client.ZRem(ctx, RetryQueue, member).Result()
		if err != nil {
			return moved, fmt.Errorf("failed to claim retry job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil || job.Queue == "" {
			if err == nil {
				err = errors.New("retry job has no queue")
			}
			if buryErr := w.bury(ctx, DeadJob{Raw: member, Error: err.Error(), FailedAt: w.now()}); buryErr != nil {
				return moved, buryErr
			}
			continue
		}

		if err := w.client.RPush(ctx, job.Queue, member).Err(); err != nil {
			return moved, fmt.Errorf("failed to requeue job: %w", err)
		}
		moved++
	}
	return moved, nil
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	return w.bury(ctx, DeadJob{Job: job, Error: jobErr.Error(), FailedAt: w.now()})
}

func (w *Worker) bury(ctx context.Context, dead DeadJob) error {
	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return w.client.RPush(ctx, DeadQueue, data).Err()
}

type JobQueue struct {
	client   *redis.Client
	queue    string
	maxTries int
	logger   zerolog.Logger
}

func NewJobQueue(client *redis.Client, queue string, maxTries int, logger zerolog.Logger) *JobQueue {
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	return &JobQueue{
		client:   client,
		queue:    queue,
		maxTries: maxTries,
		logger:   logger.With().Str("component", "job_queue").Logger(),
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType JobType, payload map[string]string) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Queue:     q.queue,
		Payload:   payload,
		MaxTries:  q.maxTries,
		CreatedAt: now,
		ProcessAt: now,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := q.client.RPush(ctx, q.queue, jobData).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}
