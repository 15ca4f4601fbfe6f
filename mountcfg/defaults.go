package mountcfg

import "time"

// Default returns a MountConfig with sensible defaults; callers layer a
// config file and environment variables over this via Load.
func Default() MountConfig {
	return MountConfig{
		Backend:  "s3",
		Region:   "us-east-1",
		UseSSL:   true,
		LogLevel: "info",
		LogJSON:  false,

		CacheTTL:     30 * time.Second,
		CacheBackend: "memory",
		RedisAddr:    "localhost:6379",

		SpillDir:            "",
		SpillThresholdBytes: 100 * 1024 * 1024,

		RequestsPerSecond: 0, // disabled

		MetricsAddr:     "",
		CoordinatorAddr: "",
		JournalPath:     "",
	}
}
