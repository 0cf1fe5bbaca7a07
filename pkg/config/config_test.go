package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, DefaultAttachTabPath, cfg.AttachTab.Path)
	assert.Equal(t, DefaultMountRoot, cfg.Mount.Root)
	assert.Equal(t, DefaultAFSRoot, cfg.AFS.Root)
	assert.Equal(t, DefaultQuotaTimeout, cfg.Quota.Timeout)
	assert.Equal(t, DefaultQuotaWorkers, cfg.Quota.Workers)
	assert.Empty(t, cfg.Fsid.ExtraCells)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: DEBUG
attachtab:
  path: /tmp/attachtab-test
mount:
  root: /remote
quota:
  timeout: 2s
  workers: 8
fsid:
  extra_cells: [sipb.mit.edu, dev.mit.edu]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "/tmp/attachtab-test", cfg.AttachTab.Path)
	assert.Equal(t, "/remote", cfg.Mount.Root)
	assert.Equal(t, 2*time.Second, cfg.Quota.Timeout)
	assert.Equal(t, 8, cfg.Quota.Workers)
	assert.Equal(t, []string{"sipb.mit.edu", "dev.mit.edu"}, cfg.Fsid.ExtraCells)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOCKER_LOGGING_LEVEL", "ERROR")
	t.Setenv("LOCKER_MOUNT_ROOT", "/lockers")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, "/lockers", cfg.Mount.Root)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero quota workers", func(c *Config) { c.Quota.Workers = 0 }},
		{"relative mount root", func(c *Config) { c.Mount.Root = "mit" }},
		{"relative afs root", func(c *Config) { c.AFS.Root = "afs" }},
		{"empty attachtab path", func(c *Config) { c.AttachTab.Path = "" }},
		{"bad logging level", func(c *Config) { c.Logging.Level = "LOUD" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
