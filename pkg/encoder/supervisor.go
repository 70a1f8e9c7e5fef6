// Package encoder keeps the external audio encoder (darkice) running.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	DefaultName   = "darkice"
	DefaultConfig = "/etc/darkice.cfg"
)

// Finder looks up a running process by executable name. It returns 0 when
// none is running.
type Finder interface {
	Find(ctx context.Context, name string) (int32, error)
}

// Launcher starts the encoder and returns its pid.
type Launcher interface {
	Launch(name string, args ...string) (int32, error)
}

type Config struct {
	Name       string
	ConfigPath string
}

// Supervisor launches the encoder when it is not running. Lookup and launch
// happen under one lock so concurrent callers start at most one process.
type Supervisor struct {
	cfg      Config
	finder   Finder
	launcher Launcher
	logger   *slog.Logger

	mu sync.Mutex
}

func New(cfg Config, logger *slog.Logger) *Supervisor {
	return NewWith(cfg, ProcessTable{}, &ExecLauncher{logger: logger}, logger)
}

func NewWith(cfg Config, f Finder, l Launcher, logger *slog.Logger) *Supervisor {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = DefaultConfig
	}

	return &Supervisor{
		cfg:      cfg,
		finder:   f,
		launcher: l,
		logger:   logger,
	}
}

// EnsureRunning returns the pid of the encoder, launching it first if needed.
func (s *Supervisor) EnsureRunning(ctx context.Context) (pid int32, launched bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, err = s.finder.Find(ctx, s.cfg.Name)
	if err != nil {
		return 0, false, fmt.Errorf("find %s: %w", s.cfg.Name, err)
	}

	if pid != 0 {
		s.logger.Info("encoder is running", "name", s.cfg.Name, "pid", pid)
		return pid, false, nil
	}

	s.logger.Info("encoder is not running", "name", s.cfg.Name)

	pid, err = s.launcher.Launch(s.cfg.Name, "-c", s.cfg.ConfigPath)
	if err != nil {
		return 0, false, fmt.Errorf("launch %s: %w", s.cfg.Name, err)
	}

	s.logger.Info("encoder launched", "name", s.cfg.Name, "pid", pid, "config", s.cfg.ConfigPath)
	return pid, true, nil
}

// ProcessTable scans the OS process list.
type ProcessTable struct{}

func (ProcessTable) Find(ctx context.Context, name string) (int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			// exited between listing and inspection
			continue
		}
		if n == name {
			return p.Pid, nil
		}
	}

	return 0, nil
}

// ExecLauncher starts the encoder detached in its own process group. The
// process outlives the relay; a goroutine reaps it if it exits first.
type ExecLauncher struct {
	logger *slog.Logger
}

func (l *ExecLauncher) Launch(name string, args ...string) (int32, error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	go func() {
		err := cmd.Wait()
		if l.logger != nil {
			l.logger.Warn("encoder exited", "name", name, "pid", cmd.Process.Pid, "err", err)
		}
	}()

	return int32(cmd.Process.Pid), nil
}
