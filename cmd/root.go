package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "shredder",
		Short:         "Master Shredder chat gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "path to YAML configuration file")
	flags.StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "override log format (text, json)")

	root.AddCommand(
		newServeCmd(g),
		newModelsCmd(g),
		newCheckKeyCmd(g),
		newClassifyCmd(g),
	)
	return root
}

// load reads configuration, applies flag overrides and installs the logger.
func (g *globals) load(logOut io.Writer) error {
	var cfg config.Config
	if g.configPath == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if g.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(g.logLevel)
	}
	if g.logFormat != "" {
		cfg.Logging.Format = strings.ToLower(g.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(newLogHandler(logOut, cfg.Logging)))
	g.cfg = cfg
	return nil
}

func newLogHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
