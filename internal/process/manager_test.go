package process

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventRecorder collects lifecycle events emitted by a Manager.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func (r *eventRecorder) count(t EventType) int {
	n := 0
	for _, typ := range r.types() {
		if typ == t {
			n++
		}
	}
	return n
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{
		Name:   "test-proc",
		Binary: "/usr/bin/test",
		Args:   []string{"--flag"},
	})

	if m.config.RespawnDelay != 4*time.Second {
		t.Errorf("RespawnDelay = %v, want %v", m.config.RespawnDelay, 4*time.Second)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, 10*time.Second)
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{
		Name:   "test",
		Binary: "/bin/true",
	})

	if m.Status() != StatusNotStarted {
		t.Errorf("initial Status() = %q, want %q", m.Status(), StatusNotStarted)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if m.PID() != 0 {
		t.Errorf("PID() = %d, want 0", m.PID())
	}
	if m.RespawnCount() != 0 {
		t.Errorf("RespawnCount() = %d, want 0", m.RespawnCount())
	}
	if m.LastExitCode() != -1 {
		t.Errorf("LastExitCode() = %d, want -1", m.LastExitCode())
	}
}

func TestManager_StopWhenNeverStarted(t *testing.T) {
	m := NewManager(Config{
		Name:   "test",
		Binary: "/bin/true",
	})

	if err := m.Stop(); err != nil {
		t.Errorf("Stop() before Start() error = %v, want nil", err)
	}
}

func TestManager_StartEmptyBinary(t *testing.T) {
	m := NewManager(Config{Name: "test"})

	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() with empty binary expected error, got nil")
	}
}

func TestManager_StartAlreadyRunning(t *testing.T) {
	m := NewManager(Config{
		Name:            "test",
		Binary:          "/bin/sleep",
		Args:            []string{"10"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	defer m.Stop()

	if err := m.Start(ctx); err == nil {
		t.Error("second Start() expected error, got nil")
	}
}

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(Config{
		Name:            "test-sleep",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	if m.PID() == 0 {
		t.Error("PID() = 0 after Start()")
	}
	if m.Status() != StatusRunning {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusRunning)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if m.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
	if m.Status() != StatusExited {
		t.Errorf("Status() = %q after Stop(), want %q", m.Status(), StatusExited)
	}
}

func TestManager_SpawnFailureIsNotFatal(t *testing.T) {
	rec := &eventRecorder{}
	m := NewManager(Config{
		Name:    "bad-binary",
		Binary:  "/nonexistent/binary",
		OnEvent: rec.record,
	})

	// A missing executable is retried, not surfaced as a Start error.
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	defer m.Stop()

	if rec.count(EventSpawnFailed) == 0 {
		t.Error("expected a spawn_failed event")
	}
	if m.Status() != StatusExited {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusExited)
	}
}

func TestManager_RespawnAfterExit(t *testing.T) {
	rec := &eventRecorder{}
	m := NewManager(Config{
		Name:         "flappy",
		Binary:       "/bin/true",
		Respawn:      true,
		RespawnDelay: 50 * time.Millisecond,
		OnEvent:      rec.record,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	// The child exits immediately; expect multiple respawn cycles.
	if !waitFor(t, 3*time.Second, func() bool { return m.RespawnCount() >= 3 }) {
		t.Fatalf("RespawnCount() = %d, want >= 3", m.RespawnCount())
	}

	if rec.count(EventSpawned) < 2 {
		t.Errorf("spawned events = %d, want >= 2", rec.count(EventSpawned))
	}
	if rec.count(EventExited) < 2 {
		t.Errorf("exited events = %d, want >= 2", rec.count(EventExited))
	}
}

func TestManager_CrashExitAlsoRespawns(t *testing.T) {
	m := NewManager(Config{
		Name:         "crashy",
		Binary:       "/bin/false",
		Respawn:      true,
		RespawnDelay: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	// Nonzero exit is treated identically to a clean exit.
	if !waitFor(t, 3*time.Second, func() bool { return m.RespawnCount() >= 2 }) {
		t.Fatalf("RespawnCount() = %d, want >= 2", m.RespawnCount())
	}
	if m.LastExitCode() != 1 {
		t.Errorf("LastExitCode() = %d, want 1", m.LastExitCode())
	}
}

func TestManager_NoRespawnWhenDisabled(t *testing.T) {
	m := NewManager(Config{
		Name:   "oneshot",
		Binary: "/bin/true",
	})

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return m.Status() == StatusExited }) {
		t.Fatalf("Status() = %q, want %q", m.Status(), StatusExited)
	}
	if m.RespawnCount() != 0 {
		t.Errorf("RespawnCount() = %d, want 0", m.RespawnCount())
	}
	if m.LastExitCode() != 0 {
		t.Errorf("LastExitCode() = %d, want 0", m.LastExitCode())
	}
}

func TestManager_StopDuringRespawnWait(t *testing.T) {
	m := NewManager(Config{
		Name:         "waiting",
		Binary:       "/bin/true",
		Respawn:      true,
		RespawnDelay: 10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Wait until the child has exited and the respawn delay is pending.
	if !waitFor(t, 2*time.Second, func() bool { return m.RespawnCount() >= 1 }) {
		t.Fatal("respawn was never scheduled")
	}

	// Stop must interrupt the pending respawn wait immediately.
	stopDone := make(chan error, 1)
	go func() { stopDone <- m.Stop() }()

	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("Stop() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not interrupt the respawn wait")
	}

	if m.IsRunning() {
		t.Error("process respawned after Stop()")
	}
}

func TestManager_StopRacingRespawnTimer(t *testing.T) {
	// Sweep Stop() across the respawn timer firing. The first child exits
	// immediately; a respawned child sleeps for a minute, so an instance
	// spawned after Stop() either blocks Stop or leaves the manager
	// running.
	for i := 0; i < 40; i++ {
		marker := filepath.Join(t.TempDir(), "respawned")
		m := NewManager(Config{
			Name:            "stop-race",
			Binary:          "/bin/sh",
			Args:            []string{"-c", "if [ -e " + marker + " ]; then sleep 60; fi; : > " + marker},
			Respawn:         true,
			RespawnDelay:    5 * time.Millisecond,
			GracefulTimeout: 1 * time.Second,
		})

		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("iteration %d: Start() error: %v", i, err)
		}

		// Vary the offset so Stop lands before, during, and after the
		// delay elapses.
		time.Sleep(time.Duration(i%12) * time.Millisecond)

		stopDone := make(chan error, 1)
		go func() { stopDone <- m.Stop() }()

		select {
		case err := <-stopDone:
			if err != nil {
				t.Fatalf("iteration %d: Stop() error: %v", i, err)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("iteration %d: Stop() blocked on a child spawned after shutdown", i)
		}

		if m.IsRunning() {
			t.Fatalf("iteration %d: child running after Stop()", i)
		}
	}
}

func TestManager_RestartStartsFreshInstance(t *testing.T) {
	m := NewManager(Config{
		Name:            "restartable",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	firstPID := m.PID()

	if err := m.Restart(ctx); err != nil {
		t.Fatalf("Restart() error: %v", err)
	}
	defer m.Stop()

	if !m.IsRunning() {
		t.Fatal("IsRunning() = false after Restart()")
	}
	if m.PID() == firstPID {
		t.Errorf("PID unchanged after Restart(): %d", m.PID())
	}
}

func TestManager_EventOrdering(t *testing.T) {
	rec := &eventRecorder{}
	m := NewManager(Config{
		Name:    "ordered",
		Binary:  "/bin/true",
		OnEvent: rec.record,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return rec.count(EventExited) >= 1 }) {
		t.Fatal("no exited event observed")
	}

	types := rec.types()
	if types[0] != EventSpawned {
		t.Errorf("first event = %q, want %q", types[0], EventSpawned)
	}
}
