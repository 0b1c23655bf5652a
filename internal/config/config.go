// Package config builds the importer's configuration from an optional YAML
// file and the environment variables set by the CI action.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvURLBase            = "INPUT_URL_BASE"
	EnvDashboardFilePath  = "INPUT_DASHBOARD_FILE_PATH"
	EnvWorkspaceDir       = "INPUT_WORKSPACE_DIR"
	EnvTimeout            = "INPUT_TIMEOUT"
	EnvWaitTimeout        = "INPUT_WAIT_TIMEOUT"
	EnvInsecureSkipVerify = "INPUT_INSECURE_SKIP_VERIFY"
	EnvLogLevel           = "INPUT_LOG_LEVEL"
	EnvUsername           = "SUPERSET_USERNAME"
	EnvPassword           = "SUPERSET_PASSWORD"
	EnvDBPasswords        = "DBS_PASSWORDS"
	EnvOverwrite          = "OVERWRITE"
	EnvRunID              = "GITHUB_RUN_ID"
)

// Defaults.
const (
	DefaultURLBase      = "http://localhost:8088"
	DefaultWorkspaceDir = "/github/workspace"
	DefaultTimeout      = 60 * time.Second
	DefaultFileName     = "superset-import.yaml"
)

// Config holds everything one import needs. It is built once at startup
// and passed down; nothing else reads the environment.
type Config struct {
	URLBase string `yaml:"url_base"`
	// DashboardFilePath is relative to WorkspaceDir unless absolute.
	DashboardFilePath string `yaml:"dashboard_file_path"`
	WorkspaceDir      string `yaml:"workspace_dir"`

	Username string `yaml:"username"`
	// Password may be a literal or a secret reference (op://, ssm://, awssm://).
	Password string `yaml:"password"`

	// DatabasePasswords maps database name to password or secret
	// reference. Entries from DBPasswordsJSON take precedence.
	DatabasePasswords map[string]string `yaml:"database_passwords"`
	// DBPasswordsJSON is the raw DBS_PASSWORDS value.
	DBPasswordsJSON string `yaml:"-"`

	Overwrite bool `yaml:"overwrite"`

	Timeout            time.Duration `yaml:"timeout"`
	WaitTimeout        time.Duration `yaml:"wait_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`

	LogLevel string `yaml:"log_level"`
	RunID    string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		URLBase:      DefaultURLBase,
		WorkspaceDir: DefaultWorkspaceDir,
		Overwrite:    true,
		Timeout:      DefaultTimeout,
	}
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Load reads the YAML file at path, then applies environment overrides.
// An empty path loads ./superset-import.yaml when it exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var problems []string

	setString := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	setString(&c.URLBase, EnvURLBase)
	setString(&c.DashboardFilePath, EnvDashboardFilePath)
	setString(&c.WorkspaceDir, EnvWorkspaceDir)
	setString(&c.Username, EnvUsername)
	setString(&c.Password, EnvPassword)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.RunID, EnvRunID)

	if v, ok := os.LookupEnv(EnvDBPasswords); ok {
		c.DBPasswordsJSON = v
	}

	setBool := func(dst *bool, name string) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q is not a boolean", name, v))
			return
		}
		*dst = b
	}
	setBool(&c.Overwrite, EnvOverwrite)
	setBool(&c.InsecureSkipVerify, EnvInsecureSkipVerify)

	setDuration := func(dst *time.Duration, name string) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s=%q is not a duration (e.g. 30s, 2m)", name, v))
			return
		}
		*dst = d
	}
	setDuration(&c.Timeout, EnvTimeout)
	setDuration(&c.WaitTimeout, EnvWaitTimeout)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Validate checks the settings needed to reach Superset and log in.
// The password is not checked here because it may come from the
// keyring or a prompt.
func (c *Config) Validate() error {
	var problems []string

	if c.URLBase == "" {
		problems = append(problems, EnvURLBase+" is required")
	} else if u, err := url.Parse(c.URLBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("%s=%q must be an http(s) URL", EnvURLBase, c.URLBase))
	}
	if c.Username == "" {
		problems = append(problems, EnvUsername+" is required")
	}
	if c.Timeout < 0 {
		problems = append(problems, "timeout cannot be negative")
	}
	if c.WaitTimeout < 0 {
		problems = append(problems, "wait timeout cannot be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateImport is Validate plus the dashboard file requirement.
func (c *Config) ValidateImport() error {
	var problems []string
	var ve *ValidationError
	if err := c.Validate(); err != nil {
		if !errors.As(err, &ve) {
			return err
		}
		problems = append(problems, ve.Problems...)
	}
	if c.DashboardFilePath == "" {
		problems = append(problems, EnvDashboardFilePath+" is required")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// DashboardPath returns the file to upload: DashboardFilePath joined onto
// WorkspaceDir, or DashboardFilePath itself when it is absolute.
func (c *Config) DashboardPath() string {
	if filepath.IsAbs(c.DashboardFilePath) {
		return filepath.Clean(c.DashboardFilePath)
	}
	return filepath.Join(c.WorkspaceDir, c.DashboardFilePath)
}

// Host returns the host[:port] of URLBase, used to key stored credentials.
func (c *Config) Host() string {
	u, err := url.Parse(c.URLBase)
	if err != nil {
		return c.URLBase
	}
	return u.Host
}

// Verbose reports whether debug logging was requested.
func (c *Config) Verbose() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}
