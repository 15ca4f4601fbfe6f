package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andybochmann/blob-mounter/adapter"
	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/blobstore/awss3"
	blobs3 "github.com/andybochmann/blob-mounter/blobstore/s3"
	"github.com/andybochmann/blob-mounter/coordinator"
	"github.com/andybochmann/blob-mounter/journal"
	"github.com/andybochmann/blob-mounter/log"
	"github.com/andybochmann/blob-mounter/metacache"
	metapg "github.com/andybochmann/blob-mounter/metacache/postgres"
	metaredis "github.com/andybochmann/blob-mounter/metacache/redis"
	"github.com/andybochmann/blob-mounter/metrics"
	"github.com/andybochmann/blob-mounter/mountcfg"
	"github.com/andybochmann/blob-mounter/pathmap"
)

var configPath string

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount a container at a local directory",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := mountcfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New("blobmount", log.ParseLevel(cfg.LogLevel), cfg.LogFile, false)
	logger.JSON = cfg.LogJSON

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("building blob store: %w", err)
	}
	store = blobstore.NewInstrumented(store)

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelProbe()
	if err := store.Probe(probeCtx); err != nil {
		return fmt.Errorf("probing container: %w", err)
	}

	if cfg.RequestsPerSecond > 0 {
		store = blobstore.NewRateLimited(store, cfg.RequestsPerSecond)
	}

	cache, err := buildCache(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("building metadata cache: %w", err)
	}
	cache = metacache.NewInstrumented(cache)

	var j *journal.Journal
	if cfg.JournalPath != "" {
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("opening sticky-error journal: %w", err)
		}
		defer j.Close()
	}

	var coord *coordinator.Coordinator
	if cfg.CoordinatorAddr != "" {
		lockKey := cfg.ContainerName + "/" + cfg.Subfolder
		coord, err = coordinator.Acquire(cfg.CoordinatorAddr, lockKey)
		if err != nil {
			return fmt.Errorf("acquiring mount lock: %w", err)
		}
		defer coord.Release()
		logger.Info("acquired mount lock", log.F("key", lockKey))

		go func() {
			<-coord.Lost()
			logger.Fatal("lost mount-exclusivity lock, exiting", log.F("key", lockKey))
		}()
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := <-metricsServer.Start(); err != nil {
				logger.Error("metrics server failed", log.F("error", err))
			}
		}()
		logger.Info("metrics server listening", log.F("addr", cfg.MetricsAddr))
	}

	mountOpts := &adapter.Options{
		Store:               store,
		Cache:               cache,
		Mapper:              pathmap.New(cfg.Subfolder),
		Journal:             j,
		ReadOnly:            cfg.ReadOnly,
		SpillDir:            cfg.SpillDir,
		SpillThresholdBytes: cfg.SpillThresholdBytes,
		Logger:              logger,
	}
	server, err := adapter.Mount(cfg.MountPoint, mountOpts)
	if err != nil {
		return fmt.Errorf("mounting: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", log.F("mountpoint", cfg.MountPoint))
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}
		if err := adapter.Unmount(server, mountOpts); err != nil {
			logger.Error("unmount failed", log.F("error", err))
		}
	}()

	server.Wait()
	return nil
}

func buildStore(cfg mountcfg.MountConfig) (blobstore.Store, error) {
	switch cfg.Backend {
	case "awss3":
		return awss3.New(awss3.Config{
			Region:     cfg.Region,
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccountName,
			SecretKey:  cfg.AccountKey,
			Bucket:     cfg.ContainerName,
			PathStyle:  cfg.Endpoint != "",
			DisableSSL: !cfg.UseSSL,
		})
	case "s3", "":
		return blobs3.New(blobs3.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccountName,
			SecretKey: cfg.AccountKey,
			Bucket:    cfg.ContainerName,
			UseSSL:    cfg.UseSSL,
			PathStyle: true,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func buildCache(ctx context.Context, cfg mountcfg.MountConfig) (metacache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		return metaredis.New(cfg.RedisAddr, "", cfg.RedisDB, "blobmount", cfg.CacheTTL)
	case "postgres":
		return metapg.New(ctx, cfg.PostgresDSN, cfg.CacheTTL)
	case "memory", "":
		return metacache.New(cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
