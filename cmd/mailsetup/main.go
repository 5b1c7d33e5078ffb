// Mailsetup configures an EducaMadrid mail account from the terminal.
//
// It asks for the account's email address, discovers the IMAP server
// settings, and then signs in with a password or OAuth. The account
// settings are stored in SQLite. Secrets are stored in the system keyring.
//
// Usage:
//
//	mailsetup [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'mailsetup --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/mailsetup/internal/logging"
	"github.com/nhle/mailsetup/internal/model"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string
	logFile    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailsetup",
	Short: "EducaMadrid mail account setup",
	Long: `Set up an EducaMadrid mail account.

The wizard asks for your email address, discovers the server settings
and signs you in with your password or through your browser.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWizard,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file")
}

// loadConfig reads the configuration and applies the logging flags.
// Without a log file, logs go to defaultLogFile, or to stderr when that is
// empty too.
func loadConfig(defaultLogFile string) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultLogFile
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	if err := logging.Initialize(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, nil
}
