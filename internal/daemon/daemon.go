// Package daemon starts, stops and runs the background diffview server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/dashboard"
	"github.com/sergeknystautas/diffview/internal/diff"
	"github.com/sergeknystautas/diffview/internal/github"
	"github.com/sergeknystautas/diffview/internal/logging"
	"github.com/sergeknystautas/diffview/internal/session"
	"github.com/sergeknystautas/diffview/internal/state"
	"github.com/sergeknystautas/diffview/internal/tracing"
	"github.com/sergeknystautas/diffview/internal/vcs"
	"github.com/sergeknystautas/diffview/internal/watch"
	"github.com/sergeknystautas/diffview/internal/workspace"
)

const (
	pidFileName     = "daemon.pid"
	startedFileName = "daemon.started"
	logFileName     = "daemon.log"
	stateFileName   = "state.json"

	stopTimeout = 5 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("daemon is already running")
	ErrNotRunning     = errors.New("daemon is not running")
)

var (
	shutdownChan = make(chan struct{})
	shutdownOnce sync.Once
)

// baseDir returns the directory holding the pid, log and state files.
var baseDir = config.Dir

// RunOptions configures Run.
type RunOptions struct {
	// ConfigPath is the config file; empty uses the default location.
	ConfigPath string
	// Repo is served when neither state nor config names a usable repository.
	Repo string
	// LogWriter receives the daemon's log (stderr when nil).
	LogWriter io.Writer
	// Overrides adjusts the loaded config, for flags and environment.
	Overrides func(cfg *config.Config)
}

// ValidateReadyToRun checks external requirements before forking.
func ValidateReadyToRun(ctx context.Context) error {
	if _, err := vcs.CheckVersion(ctx, nil); err != nil {
		return fmt.Errorf("git is not usable: %w", err)
	}
	return nil
}

func ensureDir() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diffview directory: %w", err)
	}
	return dir, nil
}

// readPID returns the pid recorded in pidFile and whether that process is
// alive. A missing file returns 0, false, nil.
func readPID(pidFile string) (int, bool, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse PID: %w", err)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false, nil
	}
	return pid, process.Signal(syscall.Signal(0)) == nil, nil
}

// Start starts the daemon in the background serving repo.
func Start(ctx context.Context, configPath, repo string) error {
	if err := ValidateReadyToRun(ctx); err != nil {
		return err
	}
	dir, err := ensureDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)

	pid, running, err := readPID(pidFile)
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}
	if pid != 0 {
		// stale
		os.Remove(pidFile)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	args := []string{"daemon-run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if repo != "" {
		args = append(args, "--repo", repo)
	}

	logFile, err := logging.OpenFile(filepath.Join(dir, logFileName))
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.Command(execPath, args...)
	cmd.Dir, _ = os.Getwd()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	go cmd.Wait()

	// Wait a bit for the daemon to write its pid file.
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Stop sends SIGTERM to the daemon and waits for it to exit.
func Stop() error {
	dir, err := baseDir()
	if err != nil {
		return err
	}
	pid, running, err := readPID(filepath.Join(dir, pidFileName))
	if err != nil {
		return err
	}
	if !running {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// process.Wait only works for children, so poll with signal 0.
	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for daemon to stop")
}

// Status reports whether the daemon is running, its URL and start time.
func Status(cfg *config.Config) (running bool, url string, startedAt string, err error) {
	dir, err := baseDir()
	if err != nil {
		return false, "", "", err
	}
	_, running, err = readPID(filepath.Join(dir, pidFileName))
	if err != nil || !running {
		return false, "", "", err
	}
	url = "http://" + cfg.GetListenAddr()
	if data, err := os.ReadFile(filepath.Join(dir, startedFileName)); err == nil {
		startedAt = strings.TrimSpace(string(data))
	}
	return true, url, startedAt, nil
}

// Run runs the server in the foreground until SIGINT, SIGTERM or Shutdown.
func Run(opts RunOptions) error {
	dir, err := ensureDir()
	if err != nil {
		return err
	}
	pidFile := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(pidFile)

	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := os.WriteFile(filepath.Join(dir, startedFileName), []byte(startedAt+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write daemon start time: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		if configPath, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Overrides != nil {
		opts.Overrides(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logOpts := logging.Options{Level: cfg.GetLogLevel(), Format: cfg.GetLogFormat()}
	if opts.LogWriter != nil {
		logOpts.Writer = opts.LogWriter
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx := context.Background()
	if _, err := vcs.CheckVersion(ctx, nil); err != nil {
		return fmt.Errorf("git is not usable: %w", err)
	}

	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.GetTracingEnabled(),
		Exporter:    cfg.GetTracingExporter(),
		FilePath:    cfg.GetTracingFilePath(),
		SampleRate:  cfg.GetTracingSampleRate(),
		ServiceName: tracing.DefaultServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "err", err)
		}
	}()

	st, err := state.Load(filepath.Join(dir, stateFileName))
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	server := newServer(cfg, st, logger)
	if err := server.Restore(ctx, opts.Repo); err != nil {
		// keep serving; clients can pass ?repo= or switch
		logger.Warn("no active repository", "err", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErrChan:
		server.Stop()
		return fmt.Errorf("dashboard server error: %w", err)
	case <-shutdownChan:
		logger.Info("shutdown requested")
	}

	if err := server.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

// newServer wires the server's collaborators from cfg.
func newServer(cfg *config.Config, st *state.State, logger *slog.Logger) *dashboard.Server {
	runner := vcs.NewExecRunner("git", cfg.GetMaxParallel(), logging.Component(logger, "git"))
	registry := session.New(session.Options{
		NewClient: func(path string) (vcs.Client, error) {
			return vcs.Open(path, runner)
		},
		NewChannel: func(root string) (*watch.Channel, error) {
			return watch.New(root, watch.Options{
				Debounce:      cfg.WatchDebounce(),
				SweepInterval: cfg.WatchSweepInterval(),
				ExcludeDirs:   cfg.GetWatchExcludeDirs(),
				Logger:        logger,
			})
		},
		Logger: logger,
	})

	remoteURL := func(ctx context.Context, repoDir string) (string, error) {
		client, err := vcs.Open(repoDir, runner)
		if err != nil {
			return "", err
		}
		return client.RemoteURL(ctx, "origin")
	}
	prs := github.NewSource(github.NewGHClient(), remoteURL, 0, logging.Component(logger, "github"))

	return dashboard.NewServer(dashboard.Options{
		Config:      cfg,
		State:       st,
		Registry:    registry,
		Workspace:   workspace.New(workspace.Options{State: st, Logger: logger}),
		PRs:         prs,
		CommitCache: diff.NewCommitCache(cfg.CommitCacheTTL()),
		Logger:      logger,
	})
}

// Shutdown triggers a graceful shutdown of Run. Safe to call more than once.
func Shutdown() {
	shutdownOnce.Do(func() { close(shutdownChan) })
}
