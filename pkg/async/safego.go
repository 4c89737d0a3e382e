package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeGo executes fn in a goroutine with context cancellation, a
// timeout, and panic recovery. Use it instead of a bare `go func()`
// for fire-and-forget work that must never crash the process.
//
//	async.SafeGo(ctx, time.Minute, "retention cleanup", func(ctx context.Context) error {
//	    _, err := service.Cleanup(ctx)
//	    return err
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("task", taskName).
					Errorf("panic recovered: %v\n%s", r, debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			logrus.WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}
