package manager

import (
	"context"
	"testing"
	"time"

	"github.com/legaltrack/pjnsync/internal/ledger"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/model"
	"github.com/legaltrack/pjnsync/internal/probe"
	"github.com/legaltrack/pjnsync/internal/store"
	"github.com/legaltrack/pjnsync/internal/supervisor"
)

// mTue10 is a Tuesday at 10:00 Buenos Aires time, inside the default
// working-hours schedule.
var mTue10 = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

// mTue23 is the same Tuesday at 23:00 local, outside the schedule.
var mTue23 = time.Date(2025, 3, 5, 2, 0, 0, 0, time.UTC)

func syncKindConfig() *model.WorkerKindConfig {
	return &model.WorkerKindConfig{
		Kind:    model.KindSync,
		Enabled: true,
		Scaling: model.ScalingConfig{
			MinInstances:       0,
			MaxInstances:       4,
			ScaleUpThreshold:   5,
			ScaleDownThreshold: 1,
			ScaleUpStep:        1,
			ScaleDownStep:      1,
			CooldownSeconds:    0,
		},
		Schedule: model.ScheduleConfig{
			Enabled:           true,
			WorkingDays:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			WorkingHoursStart: 7,
			WorkingHoursEnd:   20,
			Timezone:          "America/Argentina/Buenos_Aires",
		},
		Health: model.HealthConfig{MaxProcessingMinutes: 120, MaxIdleMinutes: 30},
	}
}

type mFixture struct {
	st  *store.Memory
	pr  *probe.Static
	sup *supervisor.Fake
	mgr *Manager
	at  time.Time
}

func newManagerFixture(t *testing.T, at time.Time) *mFixture {
	t.Helper()
	f := &mFixture{
		st:  store.NewMemory(),
		pr:  &probe.Static{Depths: map[model.WorkerKind]int{}},
		sup: supervisor.NewFake(),
		at:  at,
	}
	clock := func() time.Time { return f.at }
	f.sup.SetClock(clock)
	led := ledger.New(f.st, f.st, ledger.WithClock(clock))
	f.mgr = New(f.st, f.pr, f.sup, led, logging.NopLogger(),
		Options{RunsToKeep: 10}, WithClock(clock))

	ctx := context.Background()
	if err := f.st.SaveGlobalConfig(ctx, &model.GlobalConfig{Enabled: true, ServiceAvailable: true}); err != nil {
		t.Fatalf("SaveGlobalConfig: %v", err)
	}
	if err := f.st.SaveWorkerConfig(ctx, syncKindConfig()); err != nil {
		t.Fatalf("SaveWorkerConfig: %v", err)
	}
	return f
}

func (f *mFixture) tick(t *testing.T) *model.ManagerState {
	t.Helper()
	ctx := context.Background()
	if err := f.mgr.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	state, err := f.st.LoadManagerState(ctx)
	if err != nil {
		t.Fatalf("LoadManagerState: %v", err)
	}
	return state
}

func TestManager_ScalesUpOnDepth(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	f.pr.Depths[model.KindSync] = 8

	state := f.tick(t)
	st := state.Workers[model.KindSync]
	if !st.WithinSchedule {
		t.Fatalf("WithinSchedule = false, want true (reason %q)", st.Reason)
	}
	if st.QueueDepth != 8 {
		t.Errorf("QueueDepth = %d, want 8", st.QueueDepth)
	}
	if st.DesiredInstances != 1 {
		t.Errorf("DesiredInstances = %d, want 1", st.DesiredInstances)
	}
	if f.sup.Count(model.KindSync) != 1 {
		t.Errorf("supervisor count = %d, want 1", f.sup.Count(model.KindSync))
	}
}

func TestManager_GlobalDisabledStopsEveryKind(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	ctx := context.Background()
	f.pr.Depths[model.KindSync] = 20
	f.sup.Inject(supervisor.Instance{ID: "w1", Kind: model.KindSync, StartedAt: f.at, LastActivity: f.at})
	f.sup.Inject(supervisor.Instance{ID: "w2", Kind: model.KindSync, StartedAt: f.at, LastActivity: f.at})

	if err := f.st.SaveGlobalConfig(ctx, &model.GlobalConfig{Enabled: false}); err != nil {
		t.Fatalf("SaveGlobalConfig: %v", err)
	}

	state := f.tick(t)
	st := state.Workers[model.KindSync]
	if st.DesiredInstances != 0 {
		t.Errorf("DesiredInstances = %d, want 0", st.DesiredInstances)
	}
	if st.Reason != "globally disabled" {
		t.Errorf("Reason = %q, want %q", st.Reason, "globally disabled")
	}
	if f.sup.Count(model.KindSync) != 0 {
		t.Errorf("supervisor count = %d, want 0", f.sup.Count(model.KindSync))
	}
	if state.Enabled {
		t.Error("snapshot Enabled = true, want false")
	}
}

func TestManager_KindDisabledStopsThatKind(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	ctx := context.Background()
	kc := syncKindConfig()
	kc.Enabled = false
	if err := f.st.SaveWorkerConfig(ctx, kc); err != nil {
		t.Fatalf("SaveWorkerConfig: %v", err)
	}
	f.sup.Inject(supervisor.Instance{ID: "w1", Kind: model.KindSync, StartedAt: f.at, LastActivity: f.at})

	state := f.tick(t)
	st := state.Workers[model.KindSync]
	if st.DesiredInstances != 0 || f.sup.Count(model.KindSync) != 0 {
		t.Errorf("desired=%d count=%d, want 0/0", st.DesiredInstances, f.sup.Count(model.KindSync))
	}
	if st.Reason != "disabled" {
		t.Errorf("Reason = %q, want %q", st.Reason, "disabled")
	}
}

func TestManager_OutsideScheduleScalesToZero(t *testing.T) {
	f := newManagerFixture(t, mTue23)
	f.pr.Depths[model.KindSync] = 9
	f.sup.Inject(supervisor.Instance{ID: "w1", Kind: model.KindSync, StartedAt: f.at, LastActivity: f.at})

	state := f.tick(t)
	st := state.Workers[model.KindSync]
	if st.WithinSchedule {
		t.Fatal("WithinSchedule = true, want false")
	}
	if st.DesiredInstances != 0 || f.sup.Count(model.KindSync) != 0 {
		t.Errorf("desired=%d count=%d, want 0/0", st.DesiredInstances, f.sup.Count(model.KindSync))
	}
}

func TestManager_InitialSyncBypassesSchedule(t *testing.T) {
	f := newManagerFixture(t, mTue23)
	f.pr.Depths[model.KindSync] = 6
	f.pr.Initial = 2

	state := f.tick(t)
	st := state.Workers[model.KindSync]
	if !st.WithinSchedule {
		t.Fatal("WithinSchedule = false, want true via initial-sync bypass")
	}
	if st.DesiredInstances != 1 {
		t.Errorf("DesiredInstances = %d, want 1", st.DesiredInstances)
	}
}

func TestManager_KindErrorIsIsolated(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	ctx := context.Background()
	causa := syncKindConfig()
	causa.Kind = model.KindCausaCreation
	causa.Schedule = model.ScheduleConfig{Enabled: false}
	if err := f.st.SaveWorkerConfig(ctx, causa); err != nil {
		t.Fatalf("SaveWorkerConfig: %v", err)
	}
	f.pr.Depths[model.KindSync] = 7
	f.pr.Depths[model.KindCausaCreation] = 7
	f.sup.FailNext = context.DeadlineExceeded

	state := f.tick(t)
	var failed, healthy int
	for _, st := range state.Workers {
		if st.Error != "" {
			failed++
		} else if st.DesiredInstances == 1 {
			healthy++
		}
	}
	if failed != 1 || healthy != 1 {
		t.Errorf("failed=%d healthy=%d, want 1/1 (%+v)", failed, healthy, state.Workers)
	}
}

func TestManager_RestartsStuckInstances(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	f.pr.Depths[model.KindSync] = 3
	f.sup.Inject(supervisor.Instance{
		ID:           "stuck",
		Kind:         model.KindSync,
		StartedAt:    f.at.Add(-3 * time.Hour),
		LastActivity: f.at.Add(-time.Minute),
	})

	f.tick(t)
	if len(f.sup.Restarted) != 1 || f.sup.Restarted[0] != "stuck" {
		t.Errorf("Restarted = %v, want [stuck]", f.sup.Restarted)
	}
}

func TestManager_SeedSkipsExisting(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	ctx := context.Background()

	seed := syncKindConfig()
	seed.Scaling.MaxInstances = 99
	causa := syncKindConfig()
	causa.Kind = model.KindCausaCreation
	if err := f.mgr.Seed(ctx, []*model.WorkerKindConfig{seed, causa}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	kept, err := f.st.GetWorkerConfig(ctx, model.KindSync)
	if err != nil {
		t.Fatalf("GetWorkerConfig: %v", err)
	}
	if kept.Scaling.MaxInstances != 4 {
		t.Errorf("existing sync config overwritten: MaxInstances = %d", kept.Scaling.MaxInstances)
	}
	if _, err := f.st.GetWorkerConfig(ctx, model.KindCausaCreation); err != nil {
		t.Errorf("causa_creation config not seeded: %v", err)
	}
}

func TestManager_PolicyCooldownSurvivesTicks(t *testing.T) {
	f := newManagerFixture(t, mTue10)
	ctx := context.Background()
	kc := syncKindConfig()
	kc.Scaling.CooldownSeconds = 300
	if err := f.st.SaveWorkerConfig(ctx, kc); err != nil {
		t.Fatalf("SaveWorkerConfig: %v", err)
	}
	f.pr.Depths[model.KindSync] = 20

	f.tick(t)
	if f.sup.Count(model.KindSync) != 1 {
		t.Fatalf("count after first tick = %d, want 1", f.sup.Count(model.KindSync))
	}

	// Second tick inside the cooldown window must not add an instance.
	f.at = f.at.Add(time.Minute)
	f.tick(t)
	if f.sup.Count(model.KindSync) != 1 {
		t.Errorf("count during cooldown = %d, want 1", f.sup.Count(model.KindSync))
	}

	// Past the cooldown the next step goes through.
	f.at = f.at.Add(10 * time.Minute)
	f.tick(t)
	if f.sup.Count(model.KindSync) != 2 {
		t.Errorf("count after cooldown = %d, want 2", f.sup.Count(model.KindSync))
	}
}
