// Package adapter implements the FileSystemAdapter (§4.5): the tree of
// go-fuse inodes that bridges OS callbacks to a blobstore.Store through a
// pathmap.Mapper, a metacache.Cache and filecontext.Context handles.
package adapter

import (
	"fmt"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/journal"
	"github.com/andybochmann/blob-mounter/log"
	"github.com/andybochmann/blob-mounter/metacache"
	"github.com/andybochmann/blob-mounter/pathmap"
)

// Options configures one mount.
type Options struct {
	Store    blobstore.Store
	Cache    metacache.Cache
	Mapper   *pathmap.Mapper
	Journal  *journal.Journal // nil disables sticky-error checks
	ReadOnly bool

	SpillDir            string
	SpillThresholdBytes int64

	Logger *log.Logger
}

// Mount mounts the adapter's filesystem at mountpoint. The caller must
// call Unmount on the returned server when done; the mountpoint directory
// is created if it does not exist.
func Mount(mountpoint string, opts *Options) (*fuse.Server, error) {
	if mountpoint == "" {
		return nil, fmt.Errorf("adapter: mountpoint is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("adapter: store is required")
	}
	if opts.Cache == nil {
		opts.Cache = metacache.New(0)
	}
	if opts.Mapper == nil {
		opts.Mapper = pathmap.New("")
	}
	if opts.Logger == nil {
		opts.Logger = log.New("adapter", log.Info, "", false)
	}

	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("adapter: creating mountpoint %s: %w", mountpoint, err)
	}

	root := &dirNode{opts: opts, key: opts.Mapper.Prefix()}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:  "blobmount",
			Name:    "blobmount",
			Options: mountOptions(opts.ReadOnly),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("adapter: mounting at %s: %w", mountpoint, err)
	}

	opts.Logger.Info("mounted", log.F("mountpoint", mountpoint), log.F("read_only", opts.ReadOnly))
	return server, nil
}

// Unmount unmounts server, then clears opts.Cache so a future remount of
// the same mountpoint (or the same backing container under a different
// mountpoint) never serves metadata cached from before the unmount (§4.5,
// §5).
func Unmount(server *fuse.Server, opts *Options) error {
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("adapter: unmounting: %w", err)
	}
	opts.Cache.Clear()
	opts.Logger.Info("unmounted")
	return nil
}

func mountOptions(readOnly bool) []string {
	if readOnly {
		return []string{"ro"}
	}
	return nil
}
