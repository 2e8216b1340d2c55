package config

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("USER", "alice")
	t.Setenv("XDG_SESSION_ID", "3")
	cfg := Default()

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Idle)
	assert.Equal(t, 3*time.Second, cfg.FailFlash)
	assert.Zero(t, cfg.TimerResolution)
	assert.Equal(t, 1000, cfg.Grab.Attempts)
	assert.Equal(t, time.Millisecond, cfg.Grab.Backoff)
	assert.Equal(t, Color(0x101010), cfg.Colors.Locked)
	assert.Equal(t, Color(0x4e7aa7), cfg.Colors.Input)
	assert.Equal(t, Color(0x9c3200), cfg.Colors.Failed)
	assert.Equal(t, AuthShadow, cfg.Auth.Method)
	assert.Equal(t, "alice", cfg.Auth.User)
	assert.Equal(t, "/etc/shadow", cfg.Auth.ShadowPath)
	assert.Equal(t, "/etc/passwd", cfg.Auth.PasswdPath)
	assert.True(t, cfg.Auth.SuFallback)
	assert.Equal(t, 6*time.Second, cfg.Auth.SuTimeout)
	assert.Equal(t, "3", cfg.Session.ID)
	assert.True(t, cfg.Session.LockedHint)
	assert.True(t, cfg.Session.InhibitSleep)
	assert.True(t, cfg.Session.BlankOnLock)
	assert.True(t, cfg.Session.DPMSOnIdle)
	assert.Empty(t, cfg.Session.SecretCollections)
	assert.NoError(t, cfg.Validate())
}

func TestReadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
idle: 30s
colors:
  locked: "#000000"
  failed: 0xff0000
auth:
  method: passwd
  user: bob
session:
  blank_on_lock: false
  secret_collections: [default, work]
`)

	cfg := Default()
	require.NoError(t, cfg.ReadFile(path))

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Idle)
	assert.Equal(t, Color(0), cfg.Colors.Locked)
	assert.Equal(t, Color(0x4e7aa7), cfg.Colors.Input, "absent keys keep their default")
	assert.Equal(t, Color(0xff0000), cfg.Colors.Failed)
	assert.Equal(t, AuthPasswd, cfg.Auth.Method)
	assert.Equal(t, "bob", cfg.Auth.User)
	assert.Equal(t, "/etc/shadow", cfg.Auth.ShadowPath)
	assert.False(t, cfg.Session.BlankOnLock)
	assert.True(t, cfg.Session.DPMSOnIdle)
	assert.Equal(t, []string{"default", "work"}, cfg.Session.SecretCollections)
}

func TestReadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "colour: red\n"},
		{"invalid color", "colors:\n  input: blue\n"},
		{"invalid duration", "idle: soon\n"},
		{"not a mapping", "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			assert.Error(t, cfg.ReadFile(writeConfig(t, tt.content)))
		})
	}
}

func TestReadFile_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ReadFile(writeConfig(t, "")))
	assert.Equal(t, Default().Idle, cfg.Idle)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name     string
		environ  map[string]string
		expected func(*Config)
	}{
		{
			name:    "log level",
			environ: map[string]string{"SCREENLOCK_LOG_LEVEL": "warn"},
			expected: func(cfg *Config) {
				assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
			},
		},
		{
			name: "timers",
			environ: map[string]string{
				"SCREENLOCK_IDLE":             "1m",
				"SCREENLOCK_FAIL_FLASH":       "500ms",
				"SCREENLOCK_TIMER_RESOLUTION": "10ms",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, time.Minute, cfg.Idle)
				assert.Equal(t, 500*time.Millisecond, cfg.FailFlash)
				assert.Equal(t, 10*time.Millisecond, cfg.TimerResolution)
			},
		},
		{
			name: "grab",
			environ: map[string]string{
				"SCREENLOCK_GRAB_ATTEMPTS": "5",
				"SCREENLOCK_GRAB_BACKOFF":  "20ms",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, 5, cfg.Grab.Attempts)
				assert.Equal(t, 20*time.Millisecond, cfg.Grab.Backoff)
			},
		},
		{
			name:    "color",
			environ: map[string]string{"SCREENLOCK_COLOR_INPUT": "#abcdef"},
			expected: func(cfg *Config) {
				assert.Equal(t, Color(0xabcdef), cfg.Colors.Input)
			},
		},
		{
			name: "auth",
			environ: map[string]string{
				"SCREENLOCK_AUTH_METHOD":      "su",
				"SCREENLOCK_AUTH_USER":        "carol",
				"SCREENLOCK_AUTH_SU_TIMEOUT":  "2s",
				"SCREENLOCK_AUTH_SU_FALLBACK": "false",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, AuthSu, cfg.Auth.Method)
				assert.Equal(t, "carol", cfg.Auth.User)
				assert.Equal(t, 2*time.Second, cfg.Auth.SuTimeout)
				assert.False(t, cfg.Auth.SuFallback)
			},
		},
		{
			name: "session",
			environ: map[string]string{
				"SCREENLOCK_SESSION_ID":                 "c2",
				"SCREENLOCK_SESSION_LOCKED_HINT":        "false",
				"SCREENLOCK_SESSION_SECRET_COLLECTIONS": "default,login",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, "c2", cfg.Session.ID)
				assert.False(t, cfg.Session.LockedHint)
				assert.Equal(t, []string{"default", "login"}, cfg.Session.SecretCollections)
			},
		},
		{
			name:    "unprefixed variables are ignored",
			environ: map[string]string{"IDLE": "1h", "AUTH_METHOD": "su"},
			expected: func(cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Idle)
				assert.Equal(t, AuthShadow, cfg.Auth.Method)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.ApplyEnv(tt.environ))
			tt.expected(&cfg)
		})
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ApplyEnv(map[string]string{"SCREENLOCK_GRAB_ATTEMPTS": "many"}))
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "idle: 30s\nauth:\n  user: bob\n")
	t.Setenv("SCREENLOCK_IDLE", "45s")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Idle)
	assert.Equal(t, "bob", cfg.Auth.User)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("USER", "alice")
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing, true)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Auth.User)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "auth:\n  method: pam\n  user: bob\n")

	_, err := Load(path, true)
	assert.ErrorContains(t, err, `unknown auth method "pam"`)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.User = ""
	cfg.Grab.Attempts = 0
	cfg.Idle = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$USER is empty")
	assert.Contains(t, err.Error(), "grab attempts")
	assert.Contains(t, err.Error(), "idle")
}

func TestColor_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "#4e7aa7", want: 0x4e7aa7},
		{in: "0x9C3200", want: 0x9c3200},
		{in: "101010", want: 0x101010},
		{in: "#fff", wantErr: true},
		{in: "#gggggg", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c Color
			err := c.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestColor_String(t *testing.T) {
	assert.Equal(t, "#00a0ff", Color(0x00a0ff).String())
}

func TestRequireSystemCredentials(t *testing.T) {
	tests := []struct {
		name    string
		shadow  string
		passwd  string
		wantErr bool
	}{
		{name: "defaults", shadow: "/etc/shadow", passwd: "/etc/passwd"},
		{name: "uncleaned system path", shadow: "/etc//shadow", passwd: "/etc/./passwd"},
		{name: "custom shadow", shadow: "/root/.ssh/id_ed25519", passwd: "/etc/passwd", wantErr: true},
		{name: "custom passwd", shadow: "/etc/shadow", passwd: "/home/alice/passwd", wantErr: true},
		{name: "relative", shadow: "shadow", passwd: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.ShadowPath = tt.shadow
			cfg.Auth.PasswdPath = tt.passwd

			err := cfg.RequireSystemCredentials()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCustomCredentialPath)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequireSystemCredentials_FromEnvironment(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(map[string]string{"SCREENLOCK_AUTH_SHADOW_PATH": "/etc/sudoers"}))
	assert.ErrorIs(t, cfg.RequireSystemCredentials(), ErrCustomCredentialPath)
}
