package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/config"
	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/manifest"
	"github.com/lecternaudio/lectern/version"
)

var (
	cfgFile   string
	homeDir   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Convert books into chaptered audiobooks",
	Long: `Lectern converts PDF, EPUB, and plain text books into spoken-word audio.

The pipeline detects chapter boundaries from the book's own structure,
normalizes the text for synthesis, converts each chapter with a local or
remote TTS engine, and assembles per-chapter WAV files plus a finished
audiobook archive. Conversion state is durable: an interrupted run resumes
where it left off.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lectern/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lectern home directory (default: ~/.lectern)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "", "log format: text or json (default from config)",
	)

	rootCmd.AddCommand(versionCmd)
}

// getHome resolves the lectern home directory and ensures it exists.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	return h, nil
}

// getConfig loads configuration, preferring an explicit --config file and
// falling back to the home directory's config.yaml.
func getConfig(h *home.Dir) (*config.Config, error) {
	path := cfgFile
	if path == "" && h != nil && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr.Get(), nil
}

// newLogger builds the command logger from config, with --log-level and
// --log-format taking precedence.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// getStore wires a manifest store against the home directory.
func getStore(h *home.Dir, logger *slog.Logger) *manifest.Store {
	return manifest.NewStore(h, logger)
}
