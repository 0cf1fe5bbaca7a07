package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	systemConfigFile = "/etc/locker/config.yaml"

	// DefaultAttachTabPath is the machine-wide attachment table.
	DefaultAttachTabPath = "/var/lib/locker/attachtab"

	// DefaultMountRoot is the hierarchy under which lockers attach.
	DefaultMountRoot = "/mit"

	// DefaultAFSRoot is where the AFS cache manager lives.
	DefaultAFSRoot = "/afs"

	// DefaultKrb5Conf is the standard Kerberos configuration file.
	DefaultKrb5Conf = "/etc/krb5.conf"

	// DefaultRPCTimeout bounds one SunRPC exchange.
	DefaultRPCTimeout = 10 * time.Second

	// DefaultQuotaTimeout bounds one backend quota query.
	DefaultQuotaTimeout = 5 * time.Second

	// DefaultQuotaWorkers bounds concurrent quota queries.
	DefaultQuotaWorkers = 4

	// DefaultFsidTimeout bounds one per-target authentication call.
	DefaultFsidTimeout = 5 * time.Second
)

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("attachtab.path", DefaultAttachTabPath)

	v.SetDefault("mount.root", DefaultMountRoot)
	v.SetDefault("afs.root", DefaultAFSRoot)

	v.SetDefault("kerberos.krb5_conf", DefaultKrb5Conf)
	v.SetDefault("kerberos.ccache", "")

	v.SetDefault("nfs.timeout", DefaultRPCTimeout)
	v.SetDefault("nfs.mount_port", 0)

	v.SetDefault("quota.timeout", DefaultQuotaTimeout)
	v.SetDefault("quota.workers", DefaultQuotaWorkers)

	v.SetDefault("fsid.timeout", DefaultFsidTimeout)
	v.SetDefault("fsid.extra_cells", []string{})
}
