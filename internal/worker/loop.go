package worker

import (
	"context"
	"os"
	"time"

	"github.com/legaltrack/pjnsync/internal/logging"
)

// Loop drives a worker invocation as a long-lived process: invoke, idle when
// no work is eligible, and touch the heartbeat file so the manager's health
// monitor can see the instance is alive. The supervisor reads the file's
// mtime as the instance's last activity.
type Loop struct {
	// Invoke runs one unit of work and reports whether any was found.
	Invoke func(ctx context.Context) (bool, error)
	Log    *logging.Logger

	// HeartbeatPath is touched before every invocation. Empty disables
	// heartbeating (tests).
	HeartbeatPath string

	// IdleInterval is how long to wait after an invocation found no
	// eligible work.
	IdleInterval time.Duration

	// WorkDelay is the pause after a productive invocation.
	WorkDelay time.Duration
}

// Run invokes the worker until the context is cancelled. Invocation errors
// are logged and do not stop the loop; the backlog that caused them is still
// there on the next pass.
func (l *Loop) Run(ctx context.Context) error {
	idle := l.IdleInterval
	if idle <= 0 {
		idle = 30 * time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.beat()

		worked, err := l.Invoke(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			l.Log.Error("worker invocation failed", "error", err.Error())
		case worked:
			l.beat()
			if err := sleepCtx(ctx, l.WorkDelay); err != nil {
				return err
			}
			continue
		}

		if err := sleepCtx(ctx, idle); err != nil {
			return err
		}
	}
}

// beat bumps the heartbeat file's mtime, creating it if needed.
func (l *Loop) beat() {
	if l.HeartbeatPath == "" {
		return
	}
	now := time.Now()
	if err := os.Chtimes(l.HeartbeatPath, now, now); err != nil {
		if !os.IsNotExist(err) {
			l.Log.Warn("heartbeat touch failed", "path", l.HeartbeatPath, "error", err.Error())
			return
		}
		f, err := os.OpenFile(l.HeartbeatPath, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			l.Log.Warn("heartbeat create failed", "path", l.HeartbeatPath, "error", err.Error())
			return
		}
		f.Close()
	}
}
