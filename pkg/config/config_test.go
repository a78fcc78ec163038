package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 300*time.Millisecond, cfg.Scanner.SampleInterval)
	assert.Equal(t, time.Second, cfg.Scanner.Cooldown)
	assert.Equal(t, 5*time.Second, cfg.Scanner.StartTimeout)
	assert.Equal(t, 2*time.Second, cfg.Scanner.RestartDelay)
	assert.Equal(t, 180*time.Second, cfg.Payment.Deadline)
	assert.Equal(t, 11350.0, cfg.Payment.DisplayRate)
	assert.Equal(t, 10, cfg.Payment.CommissionPercent)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("QRPAY_API", "https://pay.example.org")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api:\n  base_url: ${QRPAY_API}\nscanner:\n  cooldown: 0s\njournal:\n  driver: postgres\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.org", cfg.API.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Scanner.Cooldown)
	assert.Equal(t, "postgres", cfg.Journal.Driver)
	// untouched keys keep their defaults
	assert.Equal(t, 300*time.Millisecond, cfg.Scanner.SampleInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "empty base url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: "api.base_url"},
		{name: "zero sample interval", mutate: func(c *Config) { c.Scanner.SampleInterval = 0 }, wantErr: "sample_interval"},
		{name: "negative cooldown", mutate: func(c *Config) { c.Scanner.Cooldown = -time.Second }, wantErr: "cooldown"},
		{name: "deadline shorter than interval", mutate: func(c *Config) { c.Payment.Deadline = time.Millisecond }, wantErr: "deadline"},
		{name: "bad rate", mutate: func(c *Config) { c.Payment.DisplayRate = 0 }, wantErr: "display_rate"},
		{name: "bad driver", mutate: func(c *Config) { c.Journal.Driver = "mysql" }, wantErr: "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
