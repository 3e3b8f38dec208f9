package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

type DispatcherConfig struct {
	// AsyncThreshold is the participant count from which generation is queued.
	AsyncThreshold  int
	Workers         int
	QueueSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	StaleAfter      time.Duration
	RequeueInterval time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		AsyncThreshold:  128,
		Workers:         4,
		QueueSize:       64,
		MaxRetries:      3,
		RetryBackoff:    2 * time.Second,
		StaleAfter:      time.Minute,
		RequeueInterval: 30 * time.Second,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	d := DefaultDispatcherConfig()
	if c.AsyncThreshold <= 0 {
		c.AsyncThreshold = d.AsyncThreshold
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.RequeueInterval <= 0 {
		c.RequeueInterval = d.RequeueInterval
	}
	return c
}

type DispatchMode string

const (
	ModeSync  DispatchMode = "sync"
	ModeAsync DispatchMode = "async"
)

// GenerateResponse carries either the synchronous result or the queued task's ID.
type GenerateResponse struct {
	Mode   DispatchMode      `json:"mode"`
	TaskID string            `json:"task_id,omitempty"`
	Status models.TaskStatus `json:"status"`
	Result *GenerationResult `json:"result,omitempty"`
}

// GenerationStatus is what status polling reports.
type GenerationStatus struct {
	CompetitionID int               `json:"competition_id"`
	TaskID        string            `json:"task_id,omitempty"`
	Status        models.TaskStatus `json:"status"`
	SessionCount  int               `json:"session_count"`
	Attempts      int               `json:"attempts,omitempty"`
	NoOp          bool              `json:"no_op,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type generationJob struct {
	taskID        string
	competitionID int
}

// Dispatcher runs generation inline for small rosters and through a persisted task
// queue for large ones.
type Dispatcher struct {
	cfg       DispatcherConfig
	store     repositories.Store
	generator GenerationService
	events    EventPublisher
	logger    *slog.Logger

	queue  chan generationJob
	flight singleflight.Group
}

func NewDispatcher(cfg DispatcherConfig, store repositories.Store, generator GenerationService, events EventPublisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:       cfg,
		store:     store,
		generator: generator,
		events:    publisherOrNop(events),
		logger:    logger,
		queue:     make(chan generationJob, cfg.QueueSize),
	}
}

func (d *Dispatcher) Config() DispatcherConfig {
	return d.cfg
}

// Generate validates the request and either generates now or queues a task.
// Validation and state errors are returned before any path is chosen.
func (d *Dispatcher) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	count, err := d.generator.Precheck(ctx, req)
	if err != nil {
		return nil, err
	}

	if count < d.cfg.AsyncThreshold {
		result, err := d.generator.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return &GenerateResponse{Mode: ModeSync, Status: models.TaskSuccess, Result: result}, nil
	}

	task, created, err := d.ensureTask(ctx, req.CompetitionID)
	if err != nil {
		return nil, err
	}
	if created {
		d.enqueue(generationJob{taskID: task.ID, competitionID: task.CompetitionID})
		d.publishStatus(task)
	}
	return &GenerateResponse{Mode: ModeAsync, TaskID: task.ID, Status: task.Status}, nil
}

// ensureTask returns the competition's active task, creating one if none exists.
func (d *Dispatcher) ensureTask(ctx context.Context, competitionID int) (*models.GenerationTask, bool, error) {
	var (
		task    *models.GenerationTask
		created bool
	)
	err := d.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, competitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if c.SessionsGenerated {
			return alreadyGenerated(c)
		}

		active, err := r.Tasks.GetActive(ctx, competitionID)
		if err == nil {
			task = active
			return nil
		}
		if !errors.Is(err, repositories.ErrTaskNotFound) {
			return fmt.Errorf("get active task for competition %d: %w", competitionID, err)
		}

		now := utcNow()
		task = &models.GenerationTask{
			ID:            uuid.NewString(),
			CompetitionID: competitionID,
			Status:        models.TaskPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("%w: %v", ErrGenerationInFlight, err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return task, created, nil
}

// enqueue never blocks; a task that does not fit stays pending until RequeueStale.
func (d *Dispatcher) enqueue(job generationJob) bool {
	select {
	case d.queue <- job:
		return true
	default:
		d.logger.Warn("generation queue full, task left for requeue",
			slog.String("task_id", job.taskID),
			slog.Int("competition_id", job.competitionID))
		return false
	}
}

// Run drains the queue with a fixed pool of workers until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-d.queue:
					d.process(ctx, worker, job)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, worker int, job generationJob) {
	key := strconv.Itoa(job.competitionID)
	_, err, shared := d.flight.Do(key, func() (interface{}, error) {
		return nil, d.execute(ctx, job)
	})
	if shared {
		d.logger.Info("duplicate generation collapsed",
			slog.Int("worker", worker),
			slog.String("task_id", job.taskID),
			slog.Int("competition_id", job.competitionID))
	}
	if err != nil {
		d.logger.Error("generation task errored",
			slog.Int("worker", worker),
			slog.String("task_id", job.taskID),
			slog.String("error", err.Error()))
	}
}

// execute runs one task to a terminal status, retrying transient failures.
func (d *Dispatcher) execute(ctx context.Context, job generationJob) error {
	tasks := d.store.Repos().Tasks
	task, err := tasks.GetByID(ctx, job.taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", job.taskID, err)
	}
	if task.Status.Terminal() {
		return nil
	}

	for {
		task.Attempts++
		task.Status = models.TaskRunning
		task.UpdatedAt = utcNow()
		if err := tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("mark task %s running: %w", task.ID, err)
		}
		d.publishStatus(task)

		result, err := d.generator.Generate(ctx, GenerateRequest{CompetitionID: task.CompetitionID})
		switch {
		case err == nil:
			task.Status = models.TaskSuccess
			task.SessionCount = result.SessionCount
			task.LastError = nil

		case errors.Is(err, ErrSessionsAlreadyGenerated):
			d.logger.Info("generation already done, task ends as no-op",
				slog.String("task_id", task.ID),
				slog.Int("competition_id", task.CompetitionID),
				slog.String("reason", err.Error()))
			count, countErr := d.store.Repos().Matches.CountByCompetition(ctx, task.CompetitionID)
			if countErr != nil {
				return fmt.Errorf("count sessions of competition %d: %w", task.CompetitionID, countErr)
			}
			task.Status = models.TaskSuccess
			task.NoOp = true
			task.SessionCount = count

		case errors.Is(err, ErrValidation), errors.Is(err, ErrState), errors.Is(err, ErrNotFound):
			d.logger.Error("generation task rejected",
				slog.String("task_id", task.ID),
				slog.Int("competition_id", task.CompetitionID),
				slog.String("error", err.Error()))
			task.Status = models.TaskFailed
			task.LastError = stringPtr(err.Error())

		case ctx.Err() != nil:
			return d.release(task)

		case task.Attempts >= d.cfg.MaxRetries:
			d.logger.Error("generation task failed",
				slog.String("task_id", task.ID),
				slog.Int("attempts", task.Attempts),
				slog.String("error", err.Error()))
			task.Status = models.TaskFailed
			task.LastError = stringPtr(err.Error())

		default:
			d.logger.Warn("generation attempt failed, retrying",
				slog.String("task_id", task.ID),
				slog.Int("attempt", task.Attempts),
				slog.Duration("backoff", d.cfg.RetryBackoff),
				slog.String("error", err.Error()))
			task.LastError = stringPtr(err.Error())
			select {
			case <-ctx.Done():
				return d.release(task)
			case <-time.After(d.cfg.RetryBackoff):
			}
			continue
		}

		task.UpdatedAt = utcNow()
		if err := tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("finish task %s: %w", task.ID, err)
		}
		d.publishStatus(task)
		return nil
	}
}

// release puts an interrupted task back to pending so it is requeued after restart.
func (d *Dispatcher) release(task *models.GenerationTask) error {
	task.Status = models.TaskPending
	task.UpdatedAt = utcNow()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.store.Repos().Tasks.Update(ctx, task)
}

// Status reports a task, or the competition's generation state when taskID is empty:
// the active task if there is one, otherwise the last finished one.
func (d *Dispatcher) Status(ctx context.Context, competitionID int, taskID string) (*GenerationStatus, error) {
	repos := d.store.Repos()
	if taskID != "" {
		task, err := repos.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, handleRepositoryError(err)
		}
		if task.CompetitionID != competitionID {
			return nil, fmt.Errorf("%w: task %s belongs to another competition", ErrTaskNotFound, taskID)
		}
		return statusOf(task), nil
	}

	c, err := repos.Competitions.GetByID(ctx, competitionID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if c.SessionsGenerated {
		count, err := repos.Matches.CountByCompetition(ctx, competitionID)
		if err != nil {
			return nil, fmt.Errorf("count sessions of competition %d: %w", competitionID, err)
		}
		return &GenerationStatus{CompetitionID: competitionID, Status: models.TaskSuccess, SessionCount: count}, nil
	}
	task, err := repos.Tasks.GetActive(ctx, competitionID)
	if errors.Is(err, repositories.ErrTaskNotFound) {
		task, err = repos.Tasks.GetLatestFinished(ctx, competitionID)
	}
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return statusOf(task), nil
}

// RequeueStale pushes unfinished tasks that have not moved for StaleAfter back onto
// the queue. A task still running in this process collapses into the in-flight call.
func (d *Dispatcher) RequeueStale(ctx context.Context) (int, error) {
	stale, err := d.store.Repos().Tasks.ListStale(ctx, utcNow().Add(-d.cfg.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale tasks: %w", err)
	}
	requeued := 0
	for _, task := range stale {
		if d.enqueue(generationJob{taskID: task.ID, competitionID: task.CompetitionID}) {
			requeued++
		}
	}
	if requeued > 0 {
		d.logger.Info("requeued stale generation tasks", slog.Int("count", requeued))
	}
	return requeued, nil
}

func (d *Dispatcher) publishStatus(task *models.GenerationTask) {
	d.events.Publish(task.CompetitionID, brackets.EventGenerationStatus, statusOf(task))
}

func statusOf(task *models.GenerationTask) *GenerationStatus {
	st := &GenerationStatus{
		CompetitionID: task.CompetitionID,
		TaskID:        task.ID,
		Status:        task.Status,
		SessionCount:  task.SessionCount,
		Attempts:      task.Attempts,
		NoOp:          task.NoOp,
	}
	if task.LastError != nil {
		st.Error = *task.LastError
	}
	return st
}

func stringPtr(s string) *string {
	return &s
}
