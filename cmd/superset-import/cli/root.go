// Package cli implements the superset-import command-line interface using
// Cobra. The root command runs the import; login and logout manage a
// locally stored password.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/superset-import/internal/config"
	"github.com/majorcontext/superset-import/internal/log"
	"github.com/majorcontext/superset-import/internal/ui"
)

// credentialStore keeps passwords between local runs.
type credentialStore interface {
	Get(account string) (string, error)
	Set(account, password string) (string, error)
	Delete(account string) error
}

// debugRetentionDays is how long --debug-dir files are kept.
const debugRetentionDays = 14

// app is the state shared by all commands of one invocation.
type app struct {
	// persistent flags
	verbose    bool
	jsonOut    bool
	configPath string
	debugDir   string

	// config overrides
	urlBase   string
	file      string
	workspace string
	username  string
	overwrite bool
	timeout   time.Duration
	wait      time.Duration
	insecure  bool

	cfg   *config.Config
	store credentialStore

	// interactive and readPassword are swapped out in tests.
	interactive  func() bool
	readPassword func(label string) (string, error)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(newApp()).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "superset-import [FILE]",
		Short: "Import a dashboard export into Apache Superset",
		Long: `superset-import uploads a dashboard export (a ZIP bundle from
Superset's dashboard export) to a running Superset instance.

It logs in with a database user, fetches a CSRF token and posts the file
to the dashboard import API, together with the passwords of any databases
the export references. It is configured through the environment, so it
runs unchanged as a CI action step:

  INPUT_URL_BASE=http://localhost:8088 \
  INPUT_DASHBOARD_FILE_PATH=dashboards/sales.zip \
  SUPERSET_USERNAME=admin SUPERSET_PASSWORD=op://CI/superset/password \
  DBS_PASSWORDS='{"warehouse":"awssm:///ci/warehouse#password"}' \
  superset-import`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
		RunE: a.runImport,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (env: INPUT_LOG_LEVEL=debug)")
	pf.BoolVar(&a.jsonOut, "json", false, "write logs as JSON")
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFileName+" if present)")
	pf.StringVar(&a.debugDir, "debug-dir", "", "also write debug logs as JSONL to this directory (bare flag: "+config.DebugDir()+")")
	pf.Lookup("debug-dir").NoOptDefVal = config.DebugDir()

	pf.StringVar(&a.urlBase, "url", "", "Superset base URL (env: "+config.EnvURLBase+")")
	pf.StringVarP(&a.username, "username", "u", "", "Superset username (env: "+config.EnvUsername+")")
	pf.DurationVar(&a.timeout, "timeout", config.DefaultTimeout, "per-request HTTP timeout (env: "+config.EnvTimeout+")")
	pf.DurationVar(&a.wait, "wait", 0, "keep retrying login while Superset starts, for at most this long (env: "+config.EnvWaitTimeout+")")
	pf.BoolVar(&a.insecure, "insecure-skip-verify", false, "skip TLS certificate verification (env: "+config.EnvInsecureSkipVerify+")")

	addImportFlags(rootCmd, a)

	rootCmd.AddCommand(
		newImportCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func addImportFlags(cmd *cobra.Command, a *app) {
	f := cmd.Flags()
	f.StringVarP(&a.file, "file", "f", "", "dashboard export, relative to the workspace (env: "+config.EnvDashboardFilePath+")")
	f.StringVar(&a.workspace, "workspace", "", "directory relative file paths resolve against (env: "+config.EnvWorkspaceDir+")")
	f.BoolVar(&a.overwrite, "overwrite", true, "overwrite an existing dashboard (env: "+config.EnvOverwrite+")")
}

// setup loads the configuration, applies flag overrides and starts logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URLBase = a.urlBase
	}
	if flags.Changed("username") {
		cfg.Username = a.username
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if flags.Changed("wait") {
		cfg.WaitTimeout = a.wait
	}
	if flags.Changed("insecure-skip-verify") {
		cfg.InsecureSkipVerify = a.insecure
	}
	if flags.Lookup("file") != nil {
		if flags.Changed("file") {
			cfg.DashboardFilePath = a.file
		}
		if flags.Changed("workspace") {
			cfg.WorkspaceDir = a.workspace
		}
		if flags.Changed("overwrite") {
			cfg.Overwrite = a.overwrite
		}
	}
	if len(args) == 1 {
		cfg.DashboardFilePath = args[0]
	}
	a.cfg = cfg

	if err := log.Init(log.Options{
		Verbose:       a.verbose || cfg.Verbose(),
		JSONFormat:    a.jsonOut,
		DebugDir:      a.debugDir,
		RetentionDays: debugRetentionDays,
		Stderr:        cmd.ErrOrStderr(),
	}); err != nil {
		// Non-fatal: stderr logging still works.
		ui.Warnf("failed to initialize debug logging: %v", err)
	}
	if cfg.RunID != "" {
		log.SetRunID(cfg.RunID)
	}
	log.Debug("configuration loaded",
		"url", cfg.URLBase,
		"username", cfg.Username,
		"dashboard", cfg.DashboardFilePath,
		"overwrite", cfg.Overwrite,
		"timeout", cfg.Timeout,
		"wait", cfg.WaitTimeout)
	return nil
}
