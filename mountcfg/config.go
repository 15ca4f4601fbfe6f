// Package mountcfg defines MountConfig, the full set of settings a mount
// needs: the §3 core fields (account/container/subfolder/mount point) plus
// the ambient fields every real deployment of this adapter also needs
// (logging, caching, rate limiting, the optional coordinator and metrics
// endpoints).
package mountcfg

import "time"

// MountConfig is the complete configuration for one mount.
type MountConfig struct {
	// Core (spec §3)
	AccountName   string `koanf:"account_name"`
	AccountKey    string `koanf:"account_key"`
	ContainerName string `koanf:"container_name"`
	Subfolder     string `koanf:"subfolder"`
	MountPoint    string `koanf:"mount_point"`
	ReadOnly      bool   `koanf:"read_only"`

	// Backend selection
	Backend  string `koanf:"backend"`  // "s3" (minio-go) or "awss3" (aws-sdk-go)
	Endpoint string `koanf:"endpoint"` // non-empty for non-AWS S3-compatible endpoints
	Region   string `koanf:"region"`   // awss3 only; defaults to us-east-1
	UseSSL   bool   `koanf:"use_ssl"`

	// Ambient: logging
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`
	LogJSON  bool   `koanf:"log_json"`

	// Ambient: caching (§4.3)
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	CacheBackend string        `koanf:"cache_backend"` // "memory", "redis" or "postgres"
	RedisAddr    string        `koanf:"redis_addr"`
	RedisDB      int           `koanf:"redis_db"`
	PostgresDSN  string        `koanf:"postgres_dsn"`

	// Ambient: file content spilling (§4.4)
	SpillDir            string `koanf:"spill_dir"`
	SpillThresholdBytes int64  `koanf:"spill_threshold_bytes"`

	// Ambient: outgoing request throttling
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Ambient: metrics HTTP endpoint (§6.2)
	MetricsAddr string `koanf:"metrics_addr"`

	// Ambient: mount-exclusivity coordinator (§6.1). Empty disables it.
	CoordinatorAddr string `koanf:"coordinator_addr"`

	// Ambient: sticky-error journal (§7)
	JournalPath string `koanf:"journal_path"`
}
