package server

import (
	"context"
	"log/slog"
	"time"
)

// Pruner удаляет записи старше cutoff и возвращает их количество.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunerFunc позволяет использовать функцию как Pruner.
type PrunerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f PrunerFunc) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

// RetentionTask описывает одну таблицу под очисткой. Retention <= 0 отключает задачу.
type RetentionTask struct {
	Name      string
	Retention time.Duration
	Pruner    Pruner
}

// RunRetention сразу и затем раз в interval выполняет задачи очистки.
// Возвращается после отмены ctx.
func RunRetention(ctx context.Context, tasks []RetentionTask, interval time.Duration, logger *slog.Logger) {
	active := tasks[:0:0]
	for _, task := range tasks {
		if task.Retention > 0 && task.Pruner != nil {
			active = append(active, task)
		}
	}
	if len(active) == 0 || interval <= 0 {
		return
	}

	runAll := func() {
		now := time.Now().UTC()
		for _, task := range active {
			pruneOnce(ctx, task, now, logger)
		}
	}

	runAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAll()
		}
	}
}

func pruneOnce(ctx context.Context, task RetentionTask, now time.Time, logger *slog.Logger) {
	cutoff := now.Add(-task.Retention)
	removed, err := task.Pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("retention failed", slog.String("task", task.Name), slog.String("error", err.Error()))
		}
		return
	}
	if removed > 0 {
		logger.Info("records pruned", slog.String("task", task.Name), slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	}
}
