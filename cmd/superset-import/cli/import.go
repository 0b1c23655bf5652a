package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/superset-import/internal/config"
	"github.com/majorcontext/superset-import/internal/keyring"
	"github.com/majorcontext/superset-import/internal/log"
	"github.com/majorcontext/superset-import/internal/prompt"
	"github.com/majorcontext/superset-import/internal/secrets"
	"github.com/majorcontext/superset-import/internal/superset"
	"github.com/majorcontext/superset-import/internal/ui"
)

func newApp() *app {
	return &app{
		store:        keyring.New(),
		interactive:  prompt.Interactive,
		readPassword: prompt.Password,
	}
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Import a dashboard export (same as the root command)",
		Long: `Import a dashboard export into Superset.

FILE is resolved against the workspace directory (default /github/workspace)
unless it is absolute. It overrides INPUT_DASHBOARD_FILE_PATH.

Examples:
  superset-import import dashboards/sales.zip --workspace .
  superset-import import /tmp/export.zip --overwrite=false`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runImport,
	}
	addImportFlags(cmd, a)
	return cmd
}

// runImport runs the pipeline: login, CSRF token, database passwords,
// upload. Each failure comes back as a *superset.StepError.
func (a *app) runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	if err := cfg.ValidateImport(); err != nil {
		return err
	}
	path := cfg.DashboardPath()

	session, err := a.login(ctx, cfg)
	if err != nil {
		return err
	}

	csrfToken, err := session.CSRFToken(ctx)
	if err != nil {
		return err
	}

	passwords, err := databasePasswords(ctx, cfg)
	if err != nil {
		return err
	}

	if err := session.ImportDashboard(ctx, csrfToken, superset.ImportRequest{
		Path:      path,
		Overwrite: cfg.Overwrite,
		Passwords: passwords,
	}); err != nil {
		return err
	}

	ui.Done("Imported %s into %s", path, cfg.URLBase)
	return nil
}

// login resolves the password and opens a session, waiting for Superset
// to come up when a wait budget is configured.
func (a *app) login(ctx context.Context, cfg *config.Config) (*superset.Session, error) {
	password, err := a.password(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := superset.NewClient(superset.Options{
		BaseURL:            cfg.URLBase,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	session, err := client.LoginWithWait(ctx, cfg.Username, password, cfg.WaitTimeout)
	if err != nil {
		return nil, err
	}
	ui.Done("Logged in to %s as %s", cfg.URLBase, cfg.Username)
	return session, nil
}

// rawPassword returns the configured password before reference
// resolution: SUPERSET_PASSWORD, then the local store, then a prompt.
func (a *app) rawPassword(cfg *config.Config) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	account := keyring.Account(cfg.Username, cfg.Host())
	if a.store != nil {
		pw, err := a.store.Get(account)
		if err == nil {
			log.Debug("using stored password", "account", account)
			return pw, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			log.Warn("reading stored password failed", "account", account, "error", err)
		}
	}

	if a.interactive != nil && a.interactive() {
		pw, err := a.readPassword("Superset password for " + account)
		if err != nil {
			return "", err
		}
		if pw != "" {
			return pw, nil
		}
	}
	return "", &config.ValidationError{Problems: []string{config.EnvPassword + " is required"}}
}

// password returns the resolved login password.
func (a *app) password(ctx context.Context, cfg *config.Config) (string, error) {
	raw, err := a.rawPassword(cfg)
	if err != nil {
		return "", err
	}
	pw, err := secrets.ResolveValue(ctx, raw)
	if err != nil {
		return "", &superset.StepError{Step: superset.StepAuth, Cause: fmt.Errorf("resolving %s: %w", config.EnvPassword, err)}
	}
	return pw, nil
}

// databasePasswords merges the config file's database_passwords with
// DBS_PASSWORDS (which wins), keys them by export path and resolves any
// secret references.
func databasePasswords(ctx context.Context, cfg *config.Config) (map[string]string, error) {
	passwords := make(map[string]string, len(cfg.DatabasePasswords))
	for name, pw := range cfg.DatabasePasswords {
		passwords[superset.DatabaseKey(name)] = pw
	}

	fromEnv, err := superset.BuildPasswordMap(cfg.DBPasswordsJSON)
	if err != nil {
		return nil, err
	}
	for key, pw := range fromEnv {
		passwords[key] = pw
	}
	if len(passwords) == 0 {
		return passwords, nil
	}

	resolved, err := secrets.ResolveAll(ctx, passwords)
	if err != nil {
		return nil, &superset.StepError{Step: superset.StepPasswords, Cause: err}
	}
	log.Debug("database passwords prepared", "count", len(resolved))
	return resolved, nil
}
