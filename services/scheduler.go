package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// StartRequeueScheduler re-queues stale generation tasks every RequeueInterval, which
// recovers tasks left pending by a restart. Call Shutdown on the result to stop it.
func (d *Dispatcher) StartRequeueScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(d.cfg.RequeueInterval),
		gocron.NewTask(func() {
			if _, err := d.RequeueStale(ctx); err != nil {
				d.logger.Error("stale task requeue failed", slog.String("error", err.Error()))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule stale task requeue: %w", err)
	}

	sched.Start()
	return sched, nil
}
