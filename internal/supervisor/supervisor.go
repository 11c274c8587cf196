// Package supervisor starts and stops worker-process instances. The manager
// only decides desired counts; reconciling them against live OS processes
// happens here, so the scaling logic stays testable without spawning
// anything real.
package supervisor

import (
	"context"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// Instance describes one running worker process.
type Instance struct {
	ID        string
	Kind      model.WorkerKind
	PID       int
	StartedAt time.Time

	// LastActivity is the instance's most recent heartbeat. Zero when the
	// instance has not reported yet.
	LastActivity time.Time
}

// Supervisor manages worker-process instances for the manager loop.
type Supervisor interface {
	// Running reports the currently live instances of a kind.
	Running(ctx context.Context, kind model.WorkerKind) ([]Instance, error)

	// Reconcile starts or stops instances until the running count matches
	// desired. It returns how many were started and stopped.
	Reconcile(ctx context.Context, kind model.WorkerKind, desired int) (started, stopped int, err error)

	// Restart force-stops one instance and lets the next Reconcile bring
	// the count back up. Used by the health monitor for stuck instances.
	Restart(ctx context.Context, kind model.WorkerKind, instanceID string) error
}
