package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ytget/yt-fetcher/internal/config"
	"github.com/ytget/yt-fetcher/internal/download"
	"github.com/ytget/yt-fetcher/internal/history"
)

// Process exit codes
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app holds state shared by all commands
type app struct {
	version    string
	configPath string
	lang       string

	cfg    *config.Config
	logger *slog.Logger
	texts  *Localization

	out    io.Writer
	errOut io.Writer
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, version string, args []string) int {
	cmd := NewRootCommand(version, os.Stdout, os.Stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return ExitFailure
}

// NewRootCommand builds the yt-fetcher command tree
func NewRootCommand(version string, out, errOut io.Writer) *cobra.Command {
	a := &app{
		version: version,
		out:     out,
		errOut:  errOut,
	}

	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Download media with yt-dlp and track progress",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./config.yaml or the user config dir)")
	root.PersistentFlags().StringVar(&a.lang, "lang", "en", "message language: en, ru, pt or system")

	root.AddCommand(
		newDownloadCommand(a),
		newServeCommand(a),
		newHistoryCommand(a),
		newToolsCommand(a),
		newConfigCommand(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = config.SetupLogger(cfg.Log, a.errOut)
	a.texts = NewLocalization(a.lang)

	if cfg.File != "" {
		a.logger.Debug("configuration loaded", "file", cfg.File)
	}
	return nil
}

// newFetcher selects the yt-dlp backend from the configuration
func (a *app) newFetcher() download.Fetcher {
	if a.cfg.Download.Backend == config.BackendExec {
		return download.NewExecFetcher(a.cfg.Tools.YTDLP, a.logger)
	}
	return download.NewLibraryFetcher(a.cfg.Download.ProgressInterval, a.cfg.Tools.YTDLP, a.logger)
}

// openHistory opens the history store, or returns nil when history is disabled
func (a *app) openHistory(ctx context.Context) (*history.Store, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(ctx, a.cfg.History.Driver, a.cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// newCoordinator wires a coordinator with the configured backend and history
func (a *app) newCoordinator(store *history.Store) *download.Coordinator {
	opts := []download.Option{
		download.WithLogger(a.logger),
		download.WithEventBuffer(a.cfg.Download.EventBuffer),
	}
	if store != nil {
		opts = append(opts, download.WithRecorder(store))
	}
	return download.NewCoordinator(a.newFetcher(), opts...)
}

func closeHistory(store *history.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("failed to close history", "error", err)
	}
}
