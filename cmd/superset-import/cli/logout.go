package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/superset-import/internal/keyring"
	"github.com/majorcontext/superset-import/internal/log"
	"github.com/majorcontext/superset-import/internal/ui"
)

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored password",
		Long: `Remove the password stored by "login --save" for username@host.

Examples:
  superset-import logout --url http://localhost:8088 -u admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}

			account := keyring.Account(cfg.Username, cfg.Host())
			if err := a.store.Delete(account); err != nil {
				if errors.Is(err, keyring.ErrNotFound) {
					return fmt.Errorf("no stored password for %s", account)
				}
				return fmt.Errorf("deleting password: %w", err)
			}

			log.Info("password removed", "account", account)
			ui.Done("Removed stored password for %s", account)
			return nil
		},
	}
}
