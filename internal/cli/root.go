// Package cli implements the branchlog CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/rcliao/branchlog/internal/config"
	"github.com/rcliao/branchlog/internal/logging"
	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	logName     string
	backendFlag string
	logLevel    string
	logFormat   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "branchlog",
	Short: "Branchable, append-only event logs",
	Long: "A tiny CLI for branchable event logs. Append events, split the log into branches, " +
		"backtrack, roll back or merge them. Every change is stored as a new checkpoint version.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $BRANCHLOG_DB or ~/.branchlog/branchlog.db)")
	RootCmd.PersistentFlags().StringVarP(&logName, "log", "l", "", "Log name (default: $BRANCHLOG_LOG or \"default\")")
	RootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: sqlite or badger (default: $BRANCHLOG_BACKEND or sqlite)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Diagnostic log format: text or json")
}

// settings merges the environment with any flags given on the command line.
func settings() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if logName != "" {
		cfg.Log = logName
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		exitErr("logger", err)
	}
	return logger
}

// openStore resolves settings and opens the configured backend.
func openStore() (store.Store, config.Config, *slog.Logger) {
	cfg, err := settings()
	if err != nil {
		exitErr("config", err)
	}
	logger := newLogger(cfg)
	s, err := store.Open(cfg.Backend, cfg.DBPath(), logger)
	if err != nil {
		exitErr("open store", err)
	}
	return s, cfg, logger
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
