// Package config loads the lock screen configuration.
//
// Values are layered: built-in defaults, then the YAML file, then environment variables
// prefixed with SCREENLOCK_.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "SCREENLOCK_"

const (
	SystemShadowPath = "/etc/shadow"
	SystemPasswdPath = "/etc/passwd"
)

var ErrCustomCredentialPath = errors.New("custom credential files are not allowed")

const (
	AuthShadow = "shadow"
	AuthPasswd = "passwd"
	AuthSu     = "su"
)

// Config contains the lock screen configuration.
type Config struct {
	LogLevel slog.Level `yaml:"log_level" env:"LOG_LEVEL"`
	// Display is the X display to connect to. Empty means $DISPLAY.
	Display         string        `yaml:"display" env:"DISPLAY"`
	Idle            time.Duration `yaml:"idle" env:"IDLE"`
	FailFlash       time.Duration `yaml:"fail_flash" env:"FAIL_FLASH"`
	TimerResolution time.Duration `yaml:"timer_resolution" env:"TIMER_RESOLUTION"`
	Grab            Grab          `yaml:"grab" envPrefix:"GRAB_"`
	Colors          Colors        `yaml:"colors" envPrefix:"COLOR_"`
	Auth            Auth          `yaml:"auth" envPrefix:"AUTH_"`
	Session         Session       `yaml:"session" envPrefix:"SESSION_"`
}

// Grab contains the input grab retry parameters.
type Grab struct {
	Attempts int           `yaml:"attempts" env:"ATTEMPTS"`
	Backoff  time.Duration `yaml:"backoff" env:"BACKOFF"`
}

// Colors contains the lock window colors.
type Colors struct {
	Locked Color `yaml:"locked" env:"LOCKED"`
	Input  Color `yaml:"input" env:"INPUT"`
	Failed Color `yaml:"failed" env:"FAILED"`
}

// Auth selects how the typed password is verified.
type Auth struct {
	Method     string `yaml:"method" env:"METHOD"`
	User       string `yaml:"user" env:"USER"`
	ShadowPath string `yaml:"shadow_path" env:"SHADOW_PATH"`
	PasswdPath string `yaml:"passwd_path" env:"PASSWD_PATH"`
	// SuFallback uses su when the stored hash has a format that cannot be verified in process.
	SuFallback bool          `yaml:"su_fallback" env:"SU_FALLBACK"`
	SuTimeout  time.Duration `yaml:"su_timeout" env:"SU_TIMEOUT"`
}

// Session contains the desktop session integrations.
type Session struct {
	// ID is the logind session. Empty means the session of the process.
	ID                string   `yaml:"id" env:"ID"`
	LockedHint        bool     `yaml:"locked_hint" env:"LOCKED_HINT"`
	InhibitSleep      bool     `yaml:"inhibit_sleep" env:"INHIBIT_SLEEP"`
	BlankOnLock       bool     `yaml:"blank_on_lock" env:"BLANK_ON_LOCK"`
	DPMSOnIdle        bool     `yaml:"dpms_on_idle" env:"DPMS_ON_IDLE"`
	SecretCollections []string `yaml:"secret_collections" env:"SECRET_COLLECTIONS" envSeparator:","`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  slog.LevelInfo,
		Idle:      5 * time.Second,
		FailFlash: 3 * time.Second,
		Grab: Grab{
			Attempts: 1000,
			Backoff:  time.Millisecond,
		},
		Colors: Colors{
			Locked: 0x101010,
			Input:  0x4e7aa7,
			Failed: 0x9c3200,
		},
		Auth: Auth{
			Method:     AuthShadow,
			User:       os.Getenv("USER"),
			ShadowPath: SystemShadowPath,
			PasswdPath: SystemPasswdPath,
			SuFallback: true,
			SuTimeout:  6 * time.Second,
		},
		Session: Session{
			ID:           os.Getenv("XDG_SESSION_ID"),
			LockedHint:   true,
			InhibitSleep: true,
			BlankOnLock:  true,
			DPMSOnIdle:   true,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/screenlock/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "screenlock", "config.yaml"), nil
}

// Load builds the configuration from path and the process environment. A missing file is only
// an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		err := cfg.ReadFile(path)
		if err != nil && (required || !errors.Is(err, fs.ErrNotExist)) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(env.ToMap(os.Environ())); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ReadFile merges the YAML file at path into c. Keys absent from the file keep their value.
func (c *Config) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides c with the SCREENLOCK_ variables in environ.
func (c *Config) ApplyEnv(environ map[string]string) error {
	err := env.ParseWithOptions(c, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	})
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Auth.Method {
	case AuthShadow, AuthPasswd, AuthSu:
	default:
		errs = append(errs, fmt.Errorf("unknown auth method %q", c.Auth.Method))
	}
	if strings.TrimSpace(c.Auth.User) == "" {
		errs = append(errs, errors.New("no user configured and $USER is empty"))
	}
	if c.Idle < 0 {
		errs = append(errs, fmt.Errorf("idle must not be negative, got %s", c.Idle))
	}
	if c.FailFlash < 0 {
		errs = append(errs, fmt.Errorf("fail_flash must not be negative, got %s", c.FailFlash))
	}
	if c.TimerResolution < 0 {
		errs = append(errs, fmt.Errorf("timer_resolution must not be negative, got %s", c.TimerResolution))
	}
	if c.Grab.Attempts < 1 {
		errs = append(errs, fmt.Errorf("grab attempts must be at least 1, got %d", c.Grab.Attempts))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireSystemCredentials fails when the shadow or passwd path is not the system database.
// It must hold whenever the process runs with elevated rights.
func (c *Config) RequireSystemCredentials() error {
	var errs []error
	if filepath.Clean(c.Auth.ShadowPath) != SystemShadowPath {
		errs = append(errs, fmt.Errorf("%w: shadow_path %q", ErrCustomCredentialPath, c.Auth.ShadowPath))
	}
	if filepath.Clean(c.Auth.PasswdPath) != SystemPasswdPath {
		errs = append(errs, fmt.Errorf("%w: passwd_path %q", ErrCustomCredentialPath, c.Auth.PasswdPath))
	}
	return errors.Join(errs...)
}

// Color is an RGB color written as "#rrggbb", "0xrrggbb" or "rrggbb".
type Color uint32

func (c *Color) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	switch {
	case strings.HasPrefix(s, "#"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}

	if len(s) != 6 {
		return fmt.Errorf("invalid color %q: want six hex digits", text)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}

	*c = Color(v)
	return nil
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c))
}
