package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/daemon"
	"github.com/sergeknystautas/diffview/internal/tui"
	"github.com/sergeknystautas/diffview/internal/version"
	"github.com/sergeknystautas/diffview/pkg/cli"
)

var startCmd = &cobra.Command{
	Use:   "start [repo]",
	Short: "Start the daemon in the background",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		var confirm config.ConfirmFunc
		if yes, _ := cmd.Flags().GetBool("yes"); yes {
			confirm = func(string, string) (bool, error) { return true, nil }
		}
		ok, err := config.EnsureExists(path, confirm)
		if err != nil {
			return fmt.Errorf("checking config: %w", err)
		}
		if !ok {
			return errors.New("no config; run diffview init")
		}
		repo, err := repoArg(args)
		if err != nil {
			return err
		}
		if err := daemon.Start(cmd.Context(), viper.GetString("config"), repo); err != nil {
			return err
		}
		style := newTermStyle()
		style.Success("diffview daemon started")
		if url, err := daemonURL(); err == nil {
			style.KeyValue("Dashboard", style.Cyan(url))
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.Stop(); err != nil {
			return err
		}
		newTermStyle().Success("diffview daemon stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and the repository it serves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		style := newTermStyle()
		running, url, startedAt, err := daemon.Status(cfg)
		if err != nil {
			return err
		}
		if !running {
			style.Warn("diffview daemon is not running")
			return daemon.ErrNotRunning
		}
		style.Success("diffview daemon is running")
		style.KeyValue("Dashboard", style.Cyan(url))
		if startedAt != "" {
			style.KeyValue("Started", startedAt)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		health, err := cli.NewDaemonClient(url).Health(ctx)
		if err != nil {
			style.Error("health check failed: " + err.Error())
			return nil
		}
		repo := health.Repo
		if repo == "" {
			repo = style.Dim("(none)")
		}
		style.KeyValue("Repository", repo)
		style.KeyValue("Version", health.Version)
		return nil
	},
}

// daemonRunCmd is the entry point of the background process started by
// start.
var daemonRunCmd = &cobra.Command{
	Use:    "daemon-run",
	Short:  "Run the daemon in the foreground",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(viper.GetString("repo"))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [repo]",
	Short: "Run the daemon in the foreground, logging to stderr",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repoArg(args)
		if err != nil {
			return err
		}
		return runDaemon(repo)
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal client (the default command)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		style := newTermStyle()
		if _, err := os.Stat(path); err == nil {
			style.Warn("config already exists at " + path)
			return nil
		}
		ok, err := config.EnsureExists(path, nil)
		if err != nil {
			return err
		}
		if ok {
			style.Success("created " + path)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("diffview " + version.Version)
	},
}

func init() {
	for _, c := range []*cobra.Command{daemonRunCmd, serveCmd} {
		c.Flags().Int("port", 0, "listen port (overrides the config)")
		c.Flags().String("bind-address", "", "listen address (overrides the config)")
		c.PreRunE = bindServerFlags
	}
	daemonRunCmd.Flags().String("repo", "", "repository to serve when none is saved")
	startCmd.Flags().Bool("yes", false, "create a default config without asking")
}

// bindServerFlags binds the running command's listen flags. Both server
// commands define them, so binding happens once the command is known.
func bindServerFlags(cmd *cobra.Command, args []string) error {
	for key, name := range map[string]string{"port": "port", "bind_address": "bind-address", "repo": "repo"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// repoArg resolves the optional repository argument to an absolute path.
func repoArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", args[0], err)
	}
	return abs, nil
}

func runDaemon(repo string) error {
	if err := daemon.Run(daemon.RunOptions{
		ConfigPath: viper.GetString("config"),
		Repo:       repo,
		Overrides:  applyOverrides,
	}); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	url, err := daemonURL()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	return tui.Run(ctx, tui.RunOptions{
		BaseURL:  url,
		LogLevel: viper.GetString("log_level"),
		Static:   viper.GetBool("static"),
	})
}
