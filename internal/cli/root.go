// Package cli wires configuration, the API client, the sync engine, and the
// interactive console together behind a cobra command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/archive"
	"github.com/merchbot/console/internal/config"
	"github.com/merchbot/console/internal/logging"
	syncengine "github.com/merchbot/console/internal/sync"
	"github.com/merchbot/console/internal/tui"
)

// rootFlags holds the persistent flag values shared by all commands.
type rootFlags struct {
	configFile string
	apiURL     string
	tokenFile  string
	logLevel   string
	theme      string
	unreadOnly bool
}

// Execute runs the console CLI.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "console",
		Short:         "Operator console for the merchbot chat backend",
		Long:          "console is the interactive operator console for answering customer conversations handled by the merchbot backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Config file path (default: XDG config dir)")
	cmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "Bot backend base URL")
	cmd.PersistentFlags().StringVar(&flags.tokenFile, "token-file", "", "Path of the operator credential file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Minimum log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.theme, "theme", "", "Color theme (default, high-contrast)")
	cmd.Flags().BoolVar(&flags.unreadOnly, "unread-only", false, "Start with the conversation list filtered to unread")

	cmd.AddCommand(
		newArchiveCmd(flags),
		newConversationsCmd(flags),
	)

	return cmd
}

// loadConfig resolves the effective configuration: defaults, then the config
// file and environment, then command-line flags.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configFile != "" {
		cfg, err = config.LoadFromFile(flags.configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if flags.apiURL != "" {
		cfg.API.BaseURL = flags.apiURL
	}
	if flags.tokenFile != "" {
		cfg.API.TokenFile = flags.tokenFile
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.theme != "" {
		cfg.TUI.Theme = flags.theme
	}
	if flags.unreadOnly {
		cfg.TUI.UnreadOnly = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging configures the global logger from the effective configuration.
// When a log file is set, everything goes there; otherwise stderr.
func initLogging(cfg *config.Config) (func(), error) {
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}

	cleanup := func() {}
	if path := strings.TrimSpace(cfg.Logging.File); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg.Output = file
		logCfg.Format = "json"
		cleanup = func() { _ = file.Close() }
	}

	logging.Init(logCfg)
	return cleanup, nil
}

// buildCoordinator assembles the transport, archive, and sync engine from the
// effective configuration.
func buildCoordinator(cfg *config.Config, notifier syncengine.Notifier) (*syncengine.Coordinator, func(), error) {
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:        cfg.API.BaseURL,
		TokenFile:      cfg.TokenFilePath(),
		RequestTimeout: cfg.API.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var archiver syncengine.Archiver
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.ArchivePath())
		if err != nil {
			// The console is usable without the archive.
			logging.Warn().Err(err).Msg("archive unavailable, continuing without it")
		} else {
			archiver = store
			cleanup = func() { _ = store.Close() }
		}
	}

	coord, err := syncengine.NewCoordinator(syncengine.CoordinatorConfig{
		Transport:      client,
		Notifier:       notifier,
		Archive:        archiver,
		UnreadOnly:     cfg.TUI.UnreadOnly,
		LongPollWait:   cfg.Sync.LongPollWait,
		PollBackoff:    cfg.Sync.PollBackoff,
		UnreadInterval: cfg.Sync.UnreadInterval,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return coord, cleanup, nil
}

func runConsole(ctx context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	cleanupLog, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanupLog()

	coord, cleanupArchive, err := buildCoordinator(cfg, tui.NewBellNotifier())
	if err != nil {
		return err
	}
	defer cleanupArchive()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	defer coord.Stop()

	return tui.Run(coord, tui.Config{
		Theme:          cfg.TUI.Theme,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
	})
}
