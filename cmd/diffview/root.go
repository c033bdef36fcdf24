package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sergeknystautas/diffview/internal/config"
	"github.com/sergeknystautas/diffview/internal/version"
)

func init() {
	// Query the terminal background before bubbletea owns stdin, so the
	// OSC 11 reply is not read as key input.
	_ = lipgloss.HasDarkBackground()
}

var rootCmd = &cobra.Command{
	Use:          "diffview",
	Short:        "Browse git diffs of a local repository",
	Long:         "diffview runs a local daemon that serves working-tree, branch, commit and pull request diffs, and a terminal client that browses them.",
	Version:      version.Version,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default: ~/.diffview/config.yaml)")
	flags.String("url", "", "daemon URL (default: derived from the config)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("static", false, "client: do not refresh on file changes")
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("url", flags.Lookup("url"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("static", flags.Lookup("static"))

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, daemonRunCmd, serveCmd, tuiCmd, initCmd, versionCmd)
}

// initConfig binds DIFFVIEW_* environment variables. They override the
// config file, and flags override them.
func initConfig() {
	viper.SetEnvPrefix("diffview")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func configPath() (string, error) {
	if p := viper.GetString("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

// applyOverrides copies flag and environment settings onto cfg.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("port") {
		if cfg.Network == nil {
			cfg.Network = &config.NetworkConfig{}
		}
		cfg.Network.Port = viper.GetInt("port")
	}
	if viper.IsSet("bind_address") {
		if cfg.Network == nil {
			cfg.Network = &config.NetworkConfig{}
		}
		cfg.Network.BindAddress = viper.GetString("bind_address")
	}
	if lvl := viper.GetString("log_level"); lvl != "" {
		if cfg.Logging == nil {
			cfg.Logging = &config.LoggingConfig{}
		}
		cfg.Logging.Level = lvl
	}
	if viper.IsSet("editor") {
		if cfg.Editor == nil {
			cfg.Editor = &config.EditorConfig{}
		}
		cfg.Editor.Command = viper.GetString("editor")
	}
}

// loadConfig reads the config with overrides applied.
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemonURL is --url, or the address the config binds.
func daemonURL() (string, error) {
	if u := viper.GetString("url"); u != "" {
		return u, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	host := cfg.GetBindAddress()
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.GetPort()), nil
}
