package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/legaltrack/pjnsync/internal/model"
)

// Fake is an in-memory Supervisor for tests. Instances exist only as table
// entries; tests can inject liveness timestamps and forced errors.
type Fake struct {
	mu        sync.Mutex
	nextID    int
	instances map[string]Instance
	now       func() time.Time

	// FailNext, when set, makes the next Reconcile or Running call return
	// this error once.
	FailNext error

	// Restarted records the instance ids passed to Restart.
	Restarted []string
}

var _ Supervisor = (*Fake)(nil)

// NewFake creates an empty fake supervisor.
func NewFake() *Fake {
	return &Fake{
		instances: make(map[string]Instance),
		now:       time.Now,
	}
}

// SetClock replaces the fake's time source.
func (f *Fake) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Inject adds a pre-existing instance, for tests that need specific start or
// activity times.
func (f *Fake) Inject(inst Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = inst
}

func (f *Fake) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil
	return err
}

func (f *Fake) Running(ctx context.Context, kind model.WorkerKind) ([]Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range f.instances {
		if inst.Kind == kind {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *Fake) Reconcile(ctx context.Context, kind model.WorkerKind, desired int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return 0, 0, err
	}

	var running []string
	for id, inst := range f.instances {
		if inst.Kind == kind {
			running = append(running, id)
		}
	}

	started, stopped := 0, 0
	for len(running)+started < desired {
		f.nextID++
		id := fmt.Sprintf("%s-%d", kind, f.nextID)
		f.instances[id] = Instance{ID: id, Kind: kind, StartedAt: f.now()}
		started++
	}
	for i := len(running) - 1; i >= desired; i-- {
		delete(f.instances, running[i])
		stopped++
	}
	return started, stopped, nil
}

func (f *Fake) Restart(ctx context.Context, kind model.WorkerKind, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.instances[instanceID]; !ok {
		return fmt.Errorf("instance %s not found", instanceID)
	}
	delete(f.instances, instanceID)
	f.Restarted = append(f.Restarted, instanceID)
	return nil
}

// Count returns the number of live instances of a kind.
func (f *Fake) Count(kind model.WorkerKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inst := range f.instances {
		if inst.Kind == kind {
			n++
		}
	}
	return n
}
