package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/superset-import/internal/keyring"
	"github.com/majorcontext/superset-import/internal/log"
	"github.com/majorcontext/superset-import/internal/ui"
)

func newLoginCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check Superset credentials and optionally store the password",
		Long: `Log in to Superset and fetch a CSRF token without importing anything.

With --save the password is stored in the system keychain (or a 0600 file
under ~/.superset-import when no keychain is available), keyed by
username@host. Later runs use it when SUPERSET_PASSWORD is unset.

Examples:
  superset-import login --url http://localhost:8088 -u admin --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}

			raw, err := a.rawPassword(cfg)
			if err != nil {
				return err
			}
			// login re-reads the password; hand it the value already obtained
			// so a prompt is not shown twice.
			cfg.Password = raw

			session, err := a.login(ctx, cfg)
			if err != nil {
				return err
			}
			if _, err := session.CSRFToken(ctx); err != nil {
				return err
			}
			ui.Done("Credentials valid for %s", cfg.URLBase)

			if !save {
				return nil
			}
			account := keyring.Account(cfg.Username, cfg.Host())
			backend, err := a.store.Set(account, raw)
			if err != nil {
				return fmt.Errorf("saving password: %w", err)
			}
			log.Info("password stored", "account", account, "backend", backend)
			ui.Done("Password for %s saved to %s", account, backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the password for later runs")
	return cmd
}
