package mountcfg

import "testing"

func TestValidateRequiresContainerName(t *testing.T) {
	cfg := Default()
	cfg.MountPoint = "/mnt/data"
	cfg.CacheBackend = "memory"

	if err := validate(&cfg); err == nil {
		t.Fatalf("expected error for missing container_name")
	}
}

func TestValidateRequiresMountPoint(t *testing.T) {
	cfg := Default()
	cfg.ContainerName = "data"
	cfg.CacheBackend = "memory"

	if err := validate(&cfg); err == nil {
		t.Fatalf("expected error for missing mount_point")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.ContainerName = "data"
	cfg.MountPoint = "/mnt/data"
	cfg.Backend = "azure"

	if err := validate(&cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := Default()
	cfg.ContainerName = "data"
	cfg.MountPoint = "/mnt/data"

	if err := validate(&cfg); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatalf("expected error loading missing config file")
	}
}
