package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roverlink/gnsslaunch/internal/process"
)

// Logger matches the subset of the logging package used here.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event is a process lifecycle event annotated with the driver name and
// the launch session it belongs to.
type Event struct {
	process.Event

	Process string
	Session string
}

// EventHandler receives annotated lifecycle events. Handlers are invoked
// from the supervision goroutine and must not block.
type EventHandler func(Event)

// Stats is a point-in-time snapshot of the supervised driver.
type Stats struct {
	Process    process.Stats `json:"process"`
	Session    string        `json:"session"`
	Binary     string        `json:"binary"`
	ConfigPath string        `json:"config_path"`
}

// Manager supervises the GNSS driver process.
type Manager struct {
	config  Config
	logger  Logger
	handler EventHandler

	mu      sync.RWMutex
	proc    *process.Manager
	session string
}

// NewManager validates cfg and creates a driver manager. Zero-valued
// timing fields are filled from the defaults.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.RespawnDelay == 0 {
		cfg.RespawnDelay = 4
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver config: %w", err)
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
	}, nil
}

// SetLogger replaces the no-op logger. Call before Start.
func (m *Manager) SetLogger(l Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetEventHandler registers the lifecycle event sink. Call before Start.
func (m *Manager) SetEventHandler(h EventHandler) {
	m.handler = h
}

// Config returns a copy of the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Start resolves the launch description, begins a new session, and spawns
// the driver under supervision.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc != nil && m.proc.IsRunning() {
		return fmt.Errorf("driver %s is already running", m.config.Name)
	}

	args, err := m.config.BuildArgs()
	if err != nil {
		return fmt.Errorf("building driver arguments: %w", err)
	}
	configPath, _ := m.config.ResolvedConfigPath()

	m.session = uuid.NewString()

	m.logger.Info("starting GNSS driver",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"config_path", configPath,
		"session", m.session,
		"respawn", m.config.Respawn,
		"emulate_tty", m.config.EmulateTTY,
	)

	proc := process.NewManager(process.Config{
		Name:            m.config.Name,
		Binary:          m.config.Binary,
		Args:            args,
		Env:             m.config.BuildEnv(),
		WorkDir:         m.config.WorkDir,
		Respawn:         m.config.Respawn,
		RespawnDelay:    m.config.GetRespawnDelay(),
		GracefulTimeout: m.config.GetGracefulTimeout(),
		EmulateTTY:      m.config.EmulateTTY,
		OnEvent:         m.forwardEvent,
	})
	proc.SetLogger(m.logger)

	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("starting driver process: %w", err)
	}

	m.proc = proc
	return nil
}

// Stop shuts the driver down gracefully and ends the session.
func (m *Manager) Stop() error {
	m.mu.Lock()
	proc := m.proc
	m.mu.Unlock()

	if proc == nil {
		return nil
	}

	m.logger.Info("stopping GNSS driver", "name", m.config.Name)
	if err := proc.Stop(); err != nil {
		return fmt.Errorf("stopping driver process: %w", err)
	}
	return nil
}

// Restart stops the running driver and starts a fresh instance under a
// new session.
func (m *Manager) Restart(ctx context.Context) error {
	m.logger.Info("restarting GNSS driver", "name", m.config.Name)
	if err := m.Stop(); err != nil {
		return err
	}
	return m.Start(ctx)
}

// forwardEvent annotates a process event with driver identity and hands
// it to the registered handler.
func (m *Manager) forwardEvent(e process.Event) {
	if m.handler == nil {
		return
	}
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	m.handler(Event{
		Event:   e,
		Process: m.config.Name,
		Session: session,
	})
}

// IsRunning reports whether the driver process is currently alive.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proc != nil && m.proc.IsRunning()
}

// Session returns the identifier of the current launch session, or an
// empty string before the first Start.
func (m *Manager) Session() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Stats returns a snapshot of the supervised driver.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configPath, _ := m.config.ResolvedConfigPath()
	s := Stats{
		Session:    m.session,
		Binary:     m.config.Binary,
		ConfigPath: configPath,
	}
	if m.proc != nil {
		s.Process = m.proc.Stats()
	} else {
		s.Process = process.Stats{
			Name:         m.config.Name,
			Status:       process.StatusNotStarted,
			LastExitCode: -1,
		}
	}
	return s
}
