package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser принимает стандартные выражения и дескрипторы (@every 1s).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseInterval разбирает расписание тиков: "@every 1s", "*/5 * * * *"
// или просто длительность ("2s").
func ParseInterval(spec string) (cron.Schedule, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("invalid interval %q: must be positive", spec)
		}
		return cron.Every(d), nil
	}

	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Run вызывает tick по расписанию spec, пока ctx не отменён.
// Тик, который не успел завершиться, не запускается повторно.
func Run(ctx context.Context, spec string, logger *slog.Logger, tick func(ctx context.Context)) error {
	schedule, err := ParseInterval(spec)
	if err != nil {
		return err
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() { tick(ctx) }))

	c.Start()
	<-ctx.Done()

	// Ждём текущий тик
	<-c.Stop().Done()
	return nil
}

// cronLogger — адаптер slog для robfig/cron.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
