package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"syllasync/internal/model"
)

const (
	defaultBaseURL     = "http://localhost:5002"
	defaultCalendar    = string(model.DeliveryAccountLinked)
	defaultDownloadDir = "."
	defaultPreviewDays = 120
	defaultProbeWait   = 10 * time.Second
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local web front.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of debug, info, error.
	Level string `yaml:"level" json:"level"`
	// File, if set, enables a rotating JSON log file.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	// JSON switches console output to JSON lines.
	JSON bool `yaml:"json" json:"json"`
}

// Config is the top-level client configuration.
type Config struct {
	// BaseURL is the syllabus backend root, e.g. "http://localhost:5002".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Calendar is the default delivery mode: "google" or "apple".
	Calendar string `yaml:"calendar" json:"calendar"`

	// Accept lists the file extensions offered by the selection surface.
	Accept []string `yaml:"accept" json:"accept"`

	// DownloadDir receives calendar-events.ics in file-download mode.
	DownloadDir string `yaml:"download_dir" json:"download_dir"`

	// SessionCookie is a "name=value" pair sent with every backend request
	// so the backend can recognize an already-authorized session.
	SessionCookie string `yaml:"session_cookie,omitempty" json:"session_cookie,omitempty"`

	// UploadTimeout bounds a single upload. Zero means no timeout.
	UploadTimeout time.Duration `yaml:"upload_timeout" json:"upload_timeout"`

	// ProbeTimeout bounds how long the CLI waits for the session probe
	// before treating the session as unauthenticated.
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// Schedule is an optional cron expression (e.g. "0 8 * * 1") for
	// periodic re-submission of Inputs.
	Schedule string `yaml:"schedule,omitempty" json:"schedule,omitempty"`

	// SyncOnStart runs one scheduled sync as soon as the daemon starts.
	SyncOnStart bool `yaml:"sync_on_start,omitempty" json:"sync_on_start,omitempty"`

	// Inputs are files or directories submitted on scheduled runs.
	Inputs []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// PreviewDays is the horizon used when listing events from a
	// downloaded calendar file.
	PreviewDays int `yaml:"preview_days" json:"preview_days"`

	// Timezone is the IANA zone used for previews. Empty means local.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`

	// Listen enables the local web front when non-empty.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// BasicAuth, if non-nil, protects the local web front except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Log LogConfig `yaml:"log" json:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      defaultBaseURL,
		Calendar:     defaultCalendar,
		Accept:       []string{".pdf"},
		DownloadDir:  defaultDownloadDir,
		ProbeTimeout: defaultProbeWait,
		PreviewDays:  defaultPreviewDays,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if _, err := model.ParseDeliveryMode(c.Calendar); err != nil {
		// Unknown value; fall back to the account-linked default.
		c.Calendar = defaultCalendar
	}
	if len(c.Accept) == 0 {
		c.Accept = []string{".pdf"}
	}
	for i, ext := range c.Accept {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Accept[i] = ext
	}
	if c.DownloadDir == "" {
		c.DownloadDir = defaultDownloadDir
	}
	if c.UploadTimeout < 0 {
		c.UploadTimeout = 0
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeWait
	}
	if c.PreviewDays <= 0 {
		c.PreviewDays = defaultPreviewDays
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DeliveryMode returns the parsed default delivery mode.
func (c *Config) DeliveryMode() model.DeliveryMode {
	m, err := model.ParseDeliveryMode(c.Calendar)
	if err != nil {
		return model.DeliveryAccountLinked
	}
	return m
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://, got %q", c.BaseURL)
	}
	if c.SessionCookie != "" && !strings.Contains(c.SessionCookie, "=") {
		return errors.New(`session_cookie must have the form "name=value"`)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600, since the file may hold a
//     session cookie.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".syllasync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "syllasync.yaml"
	}
	return filepath.Join(dir, "syllasync", "config.yaml")
}
