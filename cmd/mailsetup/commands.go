package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/mailsetup/internal/app"
	"github.com/nhle/mailsetup/internal/autodiscovery"
	"github.com/nhle/mailsetup/internal/credential"
	"github.com/nhle/mailsetup/internal/imapcheck"
	"github.com/nhle/mailsetup/internal/model"
	"github.com/nhle/mailsetup/internal/oauth"
	"github.com/nhle/mailsetup/internal/setup"
	"github.com/nhle/mailsetup/internal/store"
	"github.com/nhle/mailsetup/internal/theme"
	"github.com/nhle/mailsetup/internal/validation"
)

var skipWelcome bool

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(resetCmd)

	rootCmd.Flags().BoolVar(&skipWelcome, "skip-welcome", false, "Start directly at account setup")
	runCmd.Flags().BoolVar(&skipWelcome, "skip-welcome", false, "Start directly at account setup")
}

// runCmd launches the interactive wizard.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE:  runWizard,
}

var discoverCmd = &cobra.Command{
	Use:   "discover <email>",
	Short: "Look up the server settings for an email address",
	Long: `Look up the IMAP server settings for an email address and print them
as YAML. Nothing is saved.`,
	Example: `  mailsetup discover ana.garcia@educa.madrid.org`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDiscover,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved account",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Log in to the saved account's IMAP server",
	Long: `Connect to the saved account's IMAP server, authenticate with the
stored password or OAuth token, and open INBOX read-only.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the saved account and its secrets",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

// openStore opens the account database with secrets in the system keyring.
func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	secrets, err := credential.Open(credential.DefaultServiceName, cfg.Store.KeyringDir)
	if err != nil {
		return nil, err
	}

	return store.NewSQLiteStore(cfg.Store.Path, secrets)
}

func runWizard(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the setup wizard needs an interactive terminal; use 'mailsetup discover' in scripts")
	}

	cfg, err := loadConfig(filepath.Join(filepath.Dir(model.DefaultConfigPath()), "mailsetup.log"))
	if err != nil {
		return err
	}
	theme.Apply(cfg.Display.Theme)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	oauthVM := oauth.NewViewModel(oauth.ProvidersFromConfig(cfg.OAuth.Providers), oauth.LoopbackAuthorizer{})
	vm := setup.NewViewModel(
		validation.New(cfg.Setup.RequiredDomain),
		autodiscovery.New(autodiscovery.NewConfig(cfg.Discovery)),
		st,
		oauthVM,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	vm.Start(ctx)

	root := app.New(vm, oauthVM, app.Options{
		Title:       cfg.Setup.AppName,
		SkipWelcome: skipWelcome,
	})

	final, err := tea.NewProgram(root, tea.WithAltScreen()).Run()
	cancel()
	<-vm.Done()
	if err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}

	if m, ok := final.(app.Model); ok && m.Result() != nil {
		fmt.Println("Cuenta guardada. Ejecute 'mailsetup show' para ver la configuración.")
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	email := args[0]
	if err := validation.New(cfg.Setup.RequiredDomain).ValidateEmailAddress(email); err != nil {
		return err
	}

	svc := autodiscovery.New(autodiscovery.NewConfig(cfg.Discovery))
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Discovery.TimeoutSec)*time.Second)
	defer cancel()

	return printYAML(cmd.OutOrStdout(), newDiscoveryOutput(email, svc.Execute(ctx, email)))
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	account, err := st.GetState(cmd.Context())
	if errors.Is(err, store.ErrNoState) {
		fmt.Fprintln(cmd.OutOrStdout(), "No account saved. Run 'mailsetup' to set one up.")
		return nil
	}
	if err != nil {
		return err
	}

	return printYAML(cmd.OutOrStdout(), newAccountOutput(account))
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	account, err := st.GetState(cmd.Context())
	if errors.Is(err, store.ErrNoState) {
		return errors.New("no account saved; run 'mailsetup' first")
	}
	if err != nil {
		return err
	}

	report, err := imapcheck.New().Verify(cmd.Context(), *account)
	if imapcheck.IsAuthError(err) {
		return fmt.Errorf("%w; run 'mailsetup' again to update your credentials", err)
	}
	if err != nil {
		return fmt.Errorf("verify %s: %w", account.EmailAddress, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s using %s\n", report.Address, report.Mechanism)
	fmt.Fprintf(out, "INBOX: %d messages\n", report.InboxMessages)
	if len(report.Capabilities) > 0 {
		fmt.Fprintf(out, "Capabilities: %v\n", report.Capabilities)
	}
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Saved account removed.")
	return nil
}
