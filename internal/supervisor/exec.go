package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
)

// Exec is a Supervisor that spawns worker instances as child processes of
// the manager: `<binary> worker --kind <kind> --instance-id <id>`. Each
// child touches a heartbeat file between causas; Running reads the file's
// mtime as the instance's last activity.
type Exec struct {
	binary   string
	stateDir string
	logger   *logging.Logger

	mu        sync.Mutex
	instances map[string]*execInstance // instance id -> process
}

type execInstance struct {
	Instance
	cmd *exec.Cmd
}

var _ Supervisor = (*Exec)(nil)

// NewExec creates an Exec supervisor. binary is the pjnsync executable to
// spawn (usually os.Executable()); stateDir holds heartbeat files.
func NewExec(binary, stateDir string, logger *logging.Logger) (*Exec, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Exec{
		binary:    binary,
		stateDir:  stateDir,
		logger:    logger,
		instances: make(map[string]*execInstance),
	}, nil
}

// HeartbeatPath returns the heartbeat file a worker instance must touch.
// Exposed so the worker command can derive it from its flags.
func HeartbeatPath(stateDir string, kind model.WorkerKind, instanceID string) string {
	return filepath.Join(stateDir, fmt.Sprintf("%s-%s.beat", kind, instanceID))
}

func (e *Exec) Running(ctx context.Context, kind model.WorkerKind) ([]Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Instance
	for _, inst := range e.instances {
		if inst.Kind != kind {
			continue
		}
		snapshot := inst.Instance
		if info, err := os.Stat(HeartbeatPath(e.stateDir, kind, inst.ID)); err == nil {
			snapshot.LastActivity = info.ModTime()
		}
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (e *Exec) Reconcile(ctx context.Context, kind model.WorkerKind, desired int) (int, int, error) {
	running, err := e.Running(ctx, kind)
	if err != nil {
		return 0, 0, err
	}

	started, stopped := 0, 0
	for i := len(running); i < desired; i++ {
		if err := e.start(kind); err != nil {
			return started, stopped, err
		}
		started++
	}

	// Stop newest first; older instances are more likely mid-run.
	for i := len(running) - 1; i >= desired && i >= 0; i-- {
		if err := e.stop(running[i].ID); err != nil {
			return started, stopped, err
		}
		stopped++
	}
	return started, stopped, nil
}

func (e *Exec) Restart(ctx context.Context, kind model.WorkerKind, instanceID string) error {
	e.mu.Lock()
	inst, ok := e.instances[instanceID]
	e.mu.Unlock()
	if !ok || inst.Kind != kind {
		return fmt.Errorf("instance %s of kind %s not found", instanceID, kind)
	}
	return e.stop(instanceID)
}

// SpawnArgs returns the argv, after the binary, that start passes to a new
// worker instance. The worker command must register every flag named here.
func SpawnArgs(kind model.WorkerKind, instanceID, heartbeatPath string) []string {
	return []string{
		"worker",
		"--kind", string(kind),
		"--instance-id", instanceID,
		"--heartbeat", heartbeatPath,
	}
}

func (e *Exec) start(kind model.WorkerKind) error {
	id := uuid.NewString()[:8]
	cmd := exec.Command(e.binary, SpawnArgs(kind, id, HeartbeatPath(e.stateDir, kind, id))...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s instance: %w", kind, err)
	}

	inst := &execInstance{
		Instance: Instance{
			ID:        id,
			Kind:      kind,
			PID:       cmd.Process.Pid,
			StartedAt: time.Now(),
		},
		cmd: cmd,
	}

	e.mu.Lock()
	e.instances[id] = inst
	e.mu.Unlock()

	e.logger.Info("worker instance started", "worker_kind", string(kind), "instance_id", id, "pid", inst.PID)

	// Reap the child and drop it from the table when it exits on its own.
	go func() {
		err := cmd.Wait()
		e.mu.Lock()
		delete(e.instances, id)
		e.mu.Unlock()
		_ = os.Remove(HeartbeatPath(e.stateDir, kind, id))
		if err != nil {
			e.logger.Warn("worker instance exited with error", "worker_kind", string(kind), "instance_id", id, "err", err.Error())
			return
		}
		e.logger.Info("worker instance exited", "worker_kind", string(kind), "instance_id", id)
	}()

	return nil
}

func (e *Exec) stop(instanceID string) error {
	e.mu.Lock()
	inst, ok := e.instances[instanceID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	// SIGTERM lets the worker finish its current causa and release the
	// lease; the reaper goroutine removes it from the table on exit.
	if err := inst.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal instance %s: %w", instanceID, err)
	}
	e.logger.Info("worker instance stop requested", "instance_id", instanceID, "pid", inst.PID)
	return nil
}
