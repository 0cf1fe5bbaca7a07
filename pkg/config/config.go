// Package config loads and validates the locker tool configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the locker configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (LOCKER_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// AttachTab configures the persisted attachment table shared by all
	// locker invocations on this machine.
	AttachTab AttachTabConfig `mapstructure:"attachtab" yaml:"attachtab"`

	// Mount configures where lockers may be attached.
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// AFS configures the AFS client view.
	AFS AFSConfig `mapstructure:"afs" yaml:"afs"`

	// Kerberos configures how user credentials are located for AFS
	// authentication.
	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos"`

	// NFS configures the SunRPC client used for NFS mount validation,
	// UID mapping and remote quota.
	NFS NFSConfig `mapstructure:"nfs" yaml:"nfs"`

	// Quota configures the quota aggregator.
	Quota QuotaConfig `mapstructure:"quota" yaml:"quota"`

	// Fsid configures the authentication mapper.
	Fsid FsidConfig `mapstructure:"fsid" yaml:"fsid"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

// AttachTabConfig locates the shared attachment table.
type AttachTabConfig struct {
	// Path is the attachtab file. The lock file lives next to it.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`
}

// MountConfig controls attachment points.
type MountConfig struct {
	// Root is the directory under which lockers are attached.
	// Attach refuses mount points outside this hierarchy.
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
}

// AFSConfig controls the AFS view of the world.
type AFSConfig struct {
	// Root is where the AFS cache manager exposes the global namespace.
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
}

// KerberosConfig locates user credentials for AFS authentication.
type KerberosConfig struct {
	// Krb5Conf is the Kerberos configuration file.
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf"`

	// CCache is the credential cache path. Empty means KRB5CCNAME, then
	// the default per-UID cache.
	CCache string `mapstructure:"ccache" yaml:"ccache"`
}

// NFSConfig controls the SunRPC client.
type NFSConfig struct {
	// Timeout bounds a single RPC exchange with one server.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`

	// MountPort is the mountd port. Zero means query the portmapper.
	MountPort int `mapstructure:"mount_port" validate:"gte=0,lte=65535" yaml:"mount_port"`
}

// QuotaConfig controls the quota aggregator.
type QuotaConfig struct {
	// Timeout bounds a single backend quota query.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`

	// Workers bounds concurrent backend queries.
	Workers int `mapstructure:"workers" validate:"required,gte=1" yaml:"workers"`
}

// FsidConfig controls the authentication mapper.
type FsidConfig struct {
	// Timeout bounds a single per-target authentication call.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0" yaml:"timeout"`

	// ExtraCells are additional AFS cells included under -a for map and
	// unmap operations, merged with the FSID_EXTRA_CELLS environment
	// variable.
	ExtraCells []string `mapstructure:"extra_cells" yaml:"extra_cells"`
}

// DefaultConfigPath returns the default configuration file location.
// System-wide config wins over the per-user one, matching the fact that the
// attachtab is machine state rather than user state.
func DefaultConfigPath() string {
	if _, err := os.Stat(systemConfigFile); err == nil {
		return systemConfigFile
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return systemConfigFile
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "locker", "config.yaml")
}

// Load reads configuration from the given file (empty means the default
// location), applies LOCKER_* environment overrides and defaults, and
// validates the result. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultConfigPath())
	}

	v.SetEnvPrefix("LOCKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: field %s failed %q validation", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if !filepath.IsAbs(cfg.Mount.Root) {
		return fmt.Errorf("invalid config: mount.root must be an absolute path, got %q", cfg.Mount.Root)
	}
	if !filepath.IsAbs(cfg.AFS.Root) {
		return fmt.Errorf("invalid config: afs.root must be an absolute path, got %q", cfg.AFS.Root)
	}

	return nil
}
