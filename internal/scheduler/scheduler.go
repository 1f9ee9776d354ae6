package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

type Task func(ctx context.Context) error

func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	// run immediately
	go run(ctx, name, task)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run(ctx, name, task)
		}
	}
}

func run(ctx context.Context, name string, task Task) {
	start := time.Now()
	if err := task(ctx); err != nil {
		log.Error().Err(err).Str("task", name).Msg("scheduled task failed")
		return
	}
	log.Debug().Str("task", name).Dur("took", time.Since(start)).Msg("scheduled task done")
}

// Lock is the single-instance lock background tasks run under.
type Lock struct {
	fl *flock.Flock
}

// TryLock takes scheduler.lock in dataDir without blocking. ok is false when
// another process holds it.
func TryLock(dataDir string) (l *Lock, ok bool, err error) {
	fl := flock.New(filepath.Join(dataDir, "scheduler.lock"))
	ok, err = fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("scheduler lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{fl: fl}, true, nil
}

func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
