package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 30 * time.Second

type ShortageRefresher interface {
	RefreshShortageFlags(ctx context.Context) (int, error)
}

// Runner - периодические задачи по cron-расписанию с секундами.
// Задача, не успевшая закончиться к следующему запуску, пропускает его.
type Runner struct {
	cron    *cron.Cron
	log     *slog.Logger
	baseCtx context.Context
}

func New(log *slog.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:     log,
		baseCtx: baseCtx,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	const op = "service.refresh.Add"

	id, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(r.baseCtx, jobTimeout)
		defer cancel()
		job(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("%s: schedule %q: %w", op, spec, err)
	}
	return id, nil
}

// ScheduleShortageRefresh регистрирует пересчёт флагов нехватки.
func (r *Runner) ScheduleShortageRefresh(spec string, refresher ShortageRefresher) (cron.EntryID, error) {
	return r.Add(spec, func(ctx context.Context) {
		RunOnce(ctx, r.log, refresher)
	})
}

// RunOnce - один пересчёт с логированием результата.
func RunOnce(ctx context.Context, log *slog.Logger, refresher ShortageRefresher) {
	flagged, err := refresher.RefreshShortageFlags(ctx)
	if err != nil {
		log.Error("shortage refresh failed", slog.String("error", err.Error()))
		return
	}
	log.Info("shortage refresh done", slog.Int("flagged_orders", flagged))
}

func (r *Runner) Start() {
	r.log.Info("cron started", slog.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("cron stopped")
}
