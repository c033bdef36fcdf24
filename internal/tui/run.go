package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/filter"
	"github.com/sergeknystautas/diffview/internal/localstore"
	"github.com/sergeknystautas/diffview/internal/logging"
	"github.com/sergeknystautas/diffview/internal/tabs"
	"github.com/sergeknystautas/diffview/pkg/cli"
)

const (
	logFileName   = "tui.log"
	storeFileName = "client.db"

	startupTimeout = 10 * time.Second
	cleanupTimeout = 10 * time.Second
)

// RunOptions configures Run.
type RunOptions struct {
	// BaseURL is the daemon address; empty uses the default.
	BaseURL  string
	LogLevel string
	// Static disables change notifications.
	Static bool
}

// Run starts the terminal client against a running daemon and blocks until
// the user quits.
func Run(ctx context.Context, opts RunOptions) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	logFile, err := logging.OpenFile(filepath.Join(dir, logFileName))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger, err := logging.New(logging.Options{Level: opts.LogLevel, Writer: logFile})
	if err != nil {
		return err
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = cli.GetDefaultURL()
	}
	client := cli.NewDaemonClient(baseURL)
	if !client.IsRunning() {
		return fmt.Errorf("daemon is not running at %s (start it with: diffview start)", baseURL)
	}

	sctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	cfg, err := client.GetConfig(sctx)
	if err != nil {
		return fmt.Errorf("failed to read daemon config: %w", err)
	}
	health, err := client.Health(sctx)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	repo := health.Repo
	if repo == "" {
		repo = cfg.DefaultRepo
	}

	store, err := localstore.Open(filepath.Join(dir, storeFileName))
	if err != nil {
		return err
	}
	defer store.Close()

	tabStore := tabs.New(tabs.Options{
		Persister:   store,
		DefaultRepo: repo,
		DiffStyle:   cfg.DiffStyle,
		Cleanup:     prCleanup(client),
		Logger:      logging.Component(logger, "tabs"),
	})
	if err := tabStore.Load(sctx); err != nil {
		logger.Warn("failed to restore tabs", "err", err)
	}
	filters, err := filter.LoadPrefs(sctx, store)
	if err != nil {
		logger.Warn("failed to restore filters", "err", err)
		filters = filter.Default()
	}

	model := New(ctx, Options{
		Client: client,
		ForRepo: func(repo string) cli.DaemonClient {
			return client.WithRepo(repo)
		},
		Tabs:        tabStore,
		Prefs:       store,
		Filters:     filters,
		Repo:        repo,
		DiffStyle:   cfg.DiffStyle,
		LiveUpdates: !opts.Static,
		Logger:      logger,
	})

	logger.Info("tui started", "daemon", baseURL, "repo", repo)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	done := make(chan struct{})
	go func() {
		tabStore.WaitCleanups()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cleanupTimeout):
		logger.Warn("gave up waiting for tab cleanup")
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
