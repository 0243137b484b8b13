package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// Status represents the current state of a supervised process.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusExiting    Status = "exiting"
	StatusExited     Status = "exited"
)

// EventType identifies a lifecycle transition of the supervised process.
type EventType string

const (
	// EventSpawned is emitted when the child process has started.
	EventSpawned EventType = "spawned"

	// EventSpawnFailed is emitted when a spawn attempt failed (e.g. the
	// executable is missing). Treated like a crash: retried after the
	// respawn delay.
	EventSpawnFailed EventType = "spawn_failed"

	// EventExited is emitted when the child process has exited, whether
	// cleanly, by crash, or after a termination signal.
	EventExited EventType = "exited"

	// EventRespawnScheduled is emitted when a respawn has been scheduled
	// after the fixed delay.
	EventRespawnScheduled EventType = "respawn_scheduled"

	// EventTermSent is emitted when SIGTERM was forwarded to the child.
	EventTermSent EventType = "term_sent"

	// EventKilled is emitted when the child was force-killed after the
	// grace period elapsed.
	EventKilled EventType = "killed"

	// EventStopped is emitted when the supervisor finished a deliberate
	// shutdown; no respawn follows.
	EventStopped EventType = "stopped"
)

// Event describes a single lifecycle transition.
type Event struct {
	// Type is the transition that occurred.
	Type EventType

	// PID is the child process id at the time of the event, 0 if none.
	PID int

	// ExitCode is the child's exit code for EventExited, -1 otherwise
	// (also -1 when the child was signal-killed and no code exists).
	ExitCode int

	// Err carries the error for failure events, nil otherwise.
	Err error

	// At is when the event occurred.
	At time.Time
}

// outputBufferSize is the buffer size for capturing child stdout/stderr.
const outputBufferSize = 4096

// Config holds configuration for a supervised process.
type Config struct {
	// Name is a human-readable identifier for logging and events.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary. For the GNSS
	// driver this is the resolved configuration file path.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, the child inherits the supervisor's environment unchanged.
	Env []string

	// WorkDir is the working directory for the child.
	// If empty, inherits from the supervisor.
	WorkDir string

	// Respawn enables automatic restart whenever the child exits.
	// Crash and clean exit are treated identically.
	Respawn bool

	// RespawnDelay is the fixed time to wait before respawning.
	// Default: 4s. No backoff growth, no retry limit.
	RespawnDelay time.Duration

	// GracefulTimeout is how long to wait for the child to exit after
	// SIGTERM before escalating to SIGKILL. Default: 10s.
	GracefulTimeout time.Duration

	// EmulateTTY attaches a pseudo-terminal to the child so it behaves as
	// if run interactively.
	EmulateTTY bool

	// OnEvent, if set, is invoked for every lifecycle transition.
	// It is called from the supervisor goroutine and must not block.
	OnEvent func(Event)
}

// Default supervision policy values.
const (
	DefaultRespawnDelay    = 4 * time.Second
	DefaultGracefulTimeout = 10 * time.Second
)

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises the lifecycle of a single child process.
type Manager struct {
	config Config
	logger Logger

	mu           sync.RWMutex
	cmd          *exec.Cmd
	tty          *os.File
	status       Status
	respawnCount int
	lastErr      error
	lastExitCode int
	startTime    time.Time

	stopRequested bool
	stopCh        chan struct{} // closed by Stop to interrupt the respawn wait
	done          chan struct{} // closed when the monitor goroutine exits
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RespawnDelay == 0 {
		cfg.RespawnDelay = DefaultRespawnDelay
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}

	return &Manager{
		config:       cfg,
		logger:       noopLogger{},
		status:       StatusNotStarted,
		lastExitCode: -1,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start begins supervising the child process.
//
// The first spawn is attempted synchronously; if it fails the failure is
// treated like a crash (logged, emitted, retried after the respawn delay)
// rather than returned, so a missing executable does not kill the
// supervisor. Start returns an error only for misconfiguration or when the
// manager is already running.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Binary == "" {
		return fmt.Errorf("process %s: binary path is required", m.config.Name)
	}

	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusExiting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.config.Name)
	}
	m.stopRequested = false
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.spawn(); err != nil {
		m.logger.Error("spawn failed, will retry",
			"name", m.config.Name,
			"error", err,
			"delay", m.config.RespawnDelay,
		)
		m.emit(Event{Type: EventSpawnFailed, ExitCode: -1, Err: err})
		m.mu.Lock()
		m.status = StatusExited
		m.mu.Unlock()
	}

	go m.monitor(ctx)

	return nil
}

// errStopRequested marks a spawn aborted because a deliberate shutdown
// raced the respawn timer.
var errStopRequested = errors.New("stop requested during spawn")

// spawn starts one child process instance.
func (m *Manager) spawn() error {
	cmd := exec.Command(m.config.Binary, m.config.Args...) //nolint:gosec // Binary path validated by driver.Config.Validate()

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	var tty *os.File
	if m.config.EmulateTTY {
		// pty.Start puts the child in its own session, which also makes it
		// a process group leader; signalling -pid below stays valid.
		f, err := pty.Start(cmd)
		if err != nil {
			return fmt.Errorf("starting %s on pty: %w", m.config.Name, err)
		}
		tty = f
		go m.captureOutput("tty", f)
	} else {
		// New process group so SIGTERM/SIGKILL reach any grandchildren.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("creating stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("creating stderr pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", m.config.Name, err)
		}
		go m.captureOutput("stdout", stdout)
		go m.captureOutput("stderr", stderr)
	}

	m.mu.Lock()
	if m.stopRequested {
		m.mu.Unlock()
		// Stop has already run and never saw this child; kill and reap it
		// here so nothing outlives the shutdown.
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		_ = cmd.Wait()
		if tty != nil {
			tty.Close()
		}
		return fmt.Errorf("process %s: %w", m.config.Name, errStopRequested)
	}
	m.cmd = cmd
	m.tty = tty
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)
	m.emit(Event{Type: EventSpawned, PID: cmd.Process.Pid, ExitCode: -1})

	return nil
}

// captureOutput reads from the given reader and forwards output to the log.
// A read error on a pty after child exit (EIO) is treated as end of stream.
func (m *Manager) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("driver output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor is the supervision loop: wait for exit, then respawn after the
// fixed delay until a deliberate shutdown suppresses the cycle. Exactly one
// child instance is alive at a time; a new spawn never begins before the
// previous instance is confirmed exited.
func (m *Manager) monitor(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		tty := m.tty
		m.mu.RUnlock()

		if cmd != nil {
			err := cmd.Wait()
			if tty != nil {
				tty.Close()
			}

			exitCode := -1
			if cmd.ProcessState != nil {
				exitCode = cmd.ProcessState.ExitCode()
			}

			m.mu.Lock()
			m.cmd = nil
			m.tty = nil
			m.status = StatusExited
			m.lastErr = err
			m.lastExitCode = exitCode
			stopRequested := m.stopRequested
			m.mu.Unlock()

			m.emit(Event{Type: EventExited, PID: pidOf(cmd), ExitCode: exitCode, Err: err})

			if stopRequested {
				m.logger.Info("process stopped as requested", "name", m.config.Name)
				m.emit(Event{Type: EventStopped, ExitCode: -1})
				return
			}

			m.logger.Warn("process exited, will respawn",
				"name", m.config.Name,
				"exit_code", exitCode,
				"error", err,
			)
		} else {
			// Previous spawn attempt failed; fall through to the retry wait.
			m.mu.RLock()
			stopRequested := m.stopRequested
			m.mu.RUnlock()
			if stopRequested {
				m.emit(Event{Type: EventStopped, ExitCode: -1})
				return
			}
		}

		if !m.config.Respawn {
			m.logger.Info("respawn disabled, supervision ends", "name", m.config.Name)
			return
		}

		m.mu.Lock()
		m.respawnCount++
		attempt := m.respawnCount
		m.mu.Unlock()

		m.logger.Info("respawn scheduled",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", m.config.RespawnDelay,
		)
		m.emit(Event{Type: EventRespawnScheduled, ExitCode: -1})

		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, not respawning", "name", m.config.Name)
			return
		case <-m.stopCh:
			m.logger.Info("shutdown requested, not respawning", "name", m.config.Name)
			return
		case <-time.After(m.config.RespawnDelay):
		}

		// Stop may have landed just as the delay elapsed; a deliberate
		// shutdown is never followed by a fresh spawn.
		m.mu.RLock()
		stopRequested := m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			m.logger.Info("shutdown requested, not respawning", "name", m.config.Name)
			return
		}

		if err := m.spawn(); err != nil {
			if errors.Is(err, errStopRequested) {
				m.logger.Info("shutdown requested, not respawning", "name", m.config.Name)
				return
			}
			m.logger.Error("respawn failed, will retry",
				"name", m.config.Name,
				"attempt", attempt,
				"error", err,
			)
			m.emit(Event{Type: EventSpawnFailed, ExitCode: -1, Err: err})
			// Loop continues: the next iteration waits the delay again.
		}
	}
}

// Stop deliberately shuts the supervised process down.
//
// It suppresses any pending respawn, forwards SIGTERM to the child's
// process group, waits up to GracefulTimeout for a clean exit, then
// escalates to SIGKILL. Stop is a no-op if supervision never started.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.done == nil {
		m.mu.Unlock()
		return nil
	}
	alreadyStopping := m.stopRequested
	m.stopRequested = true
	if m.status == StatusRunning {
		m.status = StatusExiting
	}
	cmd := m.cmd
	stopCh := m.stopCh
	done := m.done
	m.mu.Unlock()

	if !alreadyStopping {
		close(stopCh)
	}

	if cmd == nil || cmd.Process == nil {
		// Child not running (respawn wait or spawn failure); the monitor
		// exits via stopCh.
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	// Negative pid signals the whole process group.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("failed to send SIGTERM", "name", m.config.Name, "error", err)
		}
	}
	m.emit(Event{Type: EventTermSent, PID: pid, ExitCode: -1})

	select {
	case <-done:
		m.logger.Info("process exited within grace period", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("grace period elapsed, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}
	m.emit(Event{Type: EventKilled, PID: pid, ExitCode: -1})

	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// Restart performs a deliberate stop followed by a fresh Start.
// The stopped instance does not trigger an automatic respawn.
func (m *Manager) Restart(ctx context.Context) error {
	if err := m.Stop(); err != nil {
		return fmt.Errorf("stopping %s for restart: %w", m.config.Name, err)
	}
	return m.Start(ctx)
}

// emit delivers a lifecycle event to the configured callback.
func (m *Manager) emit(e Event) {
	if m.config.OnEvent == nil {
		return
	}
	e.At = time.Now()
	m.config.OnEvent(e)
}

// pidOf returns the pid of a command, 0 when it never started.
func pidOf(cmd *exec.Cmd) int {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Pid
	}
	return 0
}

// Status returns the current state of the supervised process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the child process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error from the most recent exit, nil for a clean exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastExitCode returns the most recent exit code, -1 if none is known.
func (m *Manager) LastExitCode() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastExitCode
}

// RespawnCount returns how many respawns have been scheduled.
func (m *Manager) RespawnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.respawnCount
}

// Uptime returns how long the current child instance has been running.
// Returns 0 if the child is not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// PID returns the child process id, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pidOf(m.cmd)
}

// Stats holds a point-in-time snapshot of the supervised process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RespawnCount int           `json:"respawn_count"`
	LastExitCode int           `json:"last_exit_code"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the supervised process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RespawnCount: m.respawnCount,
		LastExitCode: m.lastExitCode,
	}

	stats.PID = pidOf(m.cmd)

	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastErr != nil {
		stats.LastError = m.lastErr.Error()
	}

	return stats
}
