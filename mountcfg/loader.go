package mountcfg

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Load builds a MountConfig with strict priority, highest first:
//  1. environment variables prefixed BLOBMOUNT_
//  2. configFilePath, if non-empty
//  3. Default()
func Load(configFilePath string) (MountConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return MountConfig{}, fmt.Errorf("mountcfg: loading defaults: %w", err)
	}

	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err != nil {
			return MountConfig{}, fmt.Errorf("mountcfg: config file %s not found: %w", configFilePath, err)
		}

		var parser koanf.Parser
		if strings.HasSuffix(configFilePath, ".yaml") || strings.HasSuffix(configFilePath, ".yml") {
			parser = yaml.Parser()
		}

		if err := k.Load(file.Provider(configFilePath), parser); err != nil {
			return MountConfig{}, fmt.Errorf("mountcfg: loading config file %s: %w", configFilePath, err)
		}
	}

	if err := k.Load(env.Provider("BLOBMOUNT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "BLOBMOUNT_")), "_", ".")
	}), nil); err != nil {
		return MountConfig{}, fmt.Errorf("mountcfg: loading environment variables: %w", err)
	}

	var cfg MountConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return MountConfig{}, fmt.Errorf("mountcfg: unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return MountConfig{}, fmt.Errorf("mountcfg: validation failed: %w", err)
	}

	return cfg, nil
}

func validate(cfg *MountConfig) error {
	if cfg.ContainerName == "" {
		return fmt.Errorf("container_name is required")
	}
	if cfg.MountPoint == "" {
		return fmt.Errorf("mount_point is required")
	}
	if cfg.Backend != "s3" && cfg.Backend != "awss3" {
		return fmt.Errorf("backend must be \"s3\" or \"awss3\", got %q", cfg.Backend)
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" && cfg.CacheBackend != "postgres" {
		return fmt.Errorf("cache_backend must be \"memory\", \"redis\" or \"postgres\", got %q", cfg.CacheBackend)
	}
	return nil
}
