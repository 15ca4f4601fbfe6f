package adapter

import (
	"context"
	"io"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/pathmap"
)

// dirNode represents one directory, identified by its blob listing
// prefix (empty for the mount root, otherwise always "/"-terminated).
type dirNode struct {
	gofuse.Inode
	opts *Options
	key  string
}

var (
	_ gofuse.InodeEmbedder = (*dirNode)(nil)
	_ gofuse.NodeLookuper  = (*dirNode)(nil)
	_ gofuse.NodeReaddirer = (*dirNode)(nil)
	_ gofuse.NodeGetattrer = (*dirNode)(nil)
	_ gofuse.NodeCreater   = (*dirNode)(nil)
	_ gofuse.NodeMkdirer   = (*dirNode)(nil)
	_ gofuse.NodeUnlinker  = (*dirNode)(nil)
	_ gofuse.NodeRmdirer   = (*dirNode)(nil)
	_ gofuse.NodeRenamer   = (*dirNode)(nil)
	_ gofuse.NodeStatfser  = (*dirNode)(nil)
)

func (d *dirNode) childKey(name string) string {
	return d.key + name
}

// Lookup resolves name within this directory by checking, in order:
// a file object at childKey, then a directory marker or any listing
// entries under childKey + "/".
func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (node *gofuse.Inode, ret syscall.Errno) {
	defer instrumentCallback("lookup", time.Now(), &ret)

	childKey := d.childKey(name)

	if info, ok := d.opts.Cache.GetItem(childKey); ok {
		return d.makeFileInode(ctx, childKey, info, out), 0
	}

	info, err := d.opts.Store.GetProperties(ctx, childKey)
	if err == nil {
		d.opts.Cache.SetItem(childKey, info)
		return d.makeFileInode(ctx, childKey, info, out), 0
	}
	if blobstore.Classify(err) != blobstore.KindNotFound {
		return nil, errno(err)
	}

	dirPrefix := childKey + "/"
	children, err := d.opts.Store.ListByHierarchy(ctx, dirPrefix)
	if err != nil {
		return nil, errno(err)
	}
	if len(children) == 0 {
		return nil, syscall.ENOENT
	}

	child := d.NewPersistentInode(ctx, &dirNode{opts: d.opts, key: dirPrefix}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	out.Mode = syscall.S_IFDIR | 0o755
	return child, 0
}

func (d *dirNode) makeFileInode(ctx context.Context, key string, info blobstore.BlobItemInfo, out *fuse.EntryOut) *gofuse.Inode {
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(info.Size)
	out.SetTimes(nil, &info.LastModified, nil)

	node := &fileNode{opts: d.opts, key: key, size: info.Size, modTime: info.LastModified}
	return d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
}

// Readdir lists the immediate children of this directory (§4.5
// enumerate), listing-cached for CacheTTL.
func (d *dirNode) Readdir(ctx context.Context) (stream gofuse.DirStream, ret syscall.Errno) {
	defer instrumentCallback("readdir", time.Now(), &ret)

	items, ok := d.opts.Cache.GetListing(d.key)
	if !ok {
		var err error
		items, err = d.opts.Store.ListByHierarchy(ctx, d.key)
		if err != nil {
			return nil, errno(err)
		}
		d.opts.Cache.SetListing(d.key, items)
	}

	entries := make([]fuse.DirEntry, 0, len(items))
	for _, item := range items {
		name := pathmap.LeafName(item.Key)
		if name == "" {
			continue
		}
		mode := uint32(syscall.S_IFREG)
		if item.IsPrefix {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}

	return gofuse.NewListDirStream(entries), 0
}

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) (ret syscall.Errno) {
	defer instrumentCallback("dir_getattr", time.Now(), &ret)

	out.Mode = syscall.S_IFDIR | 0o755
	out.SetTimes(nil, nil, nil)
	return 0
}

// Create makes a new, empty file and opens it for writing. go-fuse only
// dispatches Create after its own Lookup found no existing entry, so the
// non-overwrite upload in createBlob is never expected to observe an
// existing object - it still guards against the race of a concurrent
// creator winning between that Lookup and this call, surfacing EEXIST
// instead of silently clobbering the winner's content.
func (d *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (inode *gofuse.Inode, handle gofuse.FileHandle, fuseFlags uint32, ret syscall.Errno) {
	defer instrumentCallback("create", time.Now(), &ret)

	node, errno := d.createBlob(ctx, name)
	if errno != 0 {
		return nil, nil, 0, errno
	}

	newInode := d.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})

	h, ferr := node.openHandle(ctx, true, false)
	if ferr != 0 {
		return nil, nil, 0, ferr
	}

	out.Mode = syscall.S_IFREG | 0o644
	return newInode, h, 0, 0
}

// createBlob does the actual create-new-object work (§8 scenario 1): a
// non-overwriting upload of an empty object, invalidate and refresh
// caches, and return a fileNode for it. The non-overwrite upload is the
// single atomic check-and-create call (§4.2, §6); no separate
// GetProperties pre-check is needed or raced against. Split out from
// Create so it can be exercised without a live go-fuse inode tree.
func (d *dirNode) createBlob(ctx context.Context, name string) (*fileNode, syscall.Errno) {
	if d.opts.ReadOnly {
		return nil, syscall.EROFS
	}

	childKey := d.childKey(name)

	now := time.Now()
	if err := d.opts.Store.Upload(ctx, childKey, emptyReader{}, 0, false); err != nil {
		return nil, errno(err)
	}
	d.opts.Cache.InvalidatePrefix(childKey)

	info := blobstore.BlobItemInfo{Key: childKey, Size: 0, LastModified: now}
	d.opts.Cache.SetItem(childKey, info)

	return &fileNode{opts: d.opts, key: childKey, size: 0, modTime: now}, 0
}

// Mkdir creates a synthetic directory marker object (§4.2).
func (d *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (node *gofuse.Inode, ret syscall.Errno) {
	defer instrumentCallback("mkdir", time.Now(), &ret)

	if d.opts.ReadOnly {
		return nil, syscall.EROFS
	}

	dirPrefix := d.childKey(name) + "/"
	if err := d.opts.Store.Upload(ctx, dirPrefix, emptyReader{}, 0, false); err != nil {
		return nil, errno(err)
	}
	d.opts.Cache.InvalidatePrefix(dirPrefix)

	out.Mode = syscall.S_IFDIR | 0o755
	return d.NewPersistentInode(ctx, &dirNode{opts: d.opts, key: dirPrefix}, gofuse.StableAttr{Mode: syscall.S_IFDIR}), 0
}

// Unlink deletes a file.
func (d *dirNode) Unlink(ctx context.Context, name string) (ret syscall.Errno) {
	defer instrumentCallback("unlink", time.Now(), &ret)

	if d.opts.ReadOnly {
		return syscall.EROFS
	}

	childKey := d.childKey(name)
	if err := d.opts.Store.Delete(ctx, childKey); err != nil {
		return errno(err)
	}

	d.opts.Cache.InvalidatePrefix(childKey)
	if d.opts.Journal != nil {
		d.opts.Journal.Resolve(childKey)
	}
	return 0
}

// Rmdir deletes a directory, recursively removing everything under it
// (§4.5, non-atomic per-key delete loop).
func (d *dirNode) Rmdir(ctx context.Context, name string) (ret syscall.Errno) {
	defer instrumentCallback("rmdir", time.Now(), &ret)

	if d.opts.ReadOnly {
		return syscall.EROFS
	}

	dirPrefix := d.childKey(name) + "/"
	items, err := d.opts.Store.ListAll(ctx, dirPrefix)
	if err != nil {
		return errno(err)
	}

	for _, item := range items {
		if err := d.opts.Store.Delete(ctx, item.Key); err != nil {
			return errno(err)
		}
	}
	if err := d.opts.Store.Delete(ctx, dirPrefix); err != nil && blobstore.Classify(err) != blobstore.KindNotFound {
		return errno(err)
	}

	d.opts.Cache.InvalidatePrefix(dirPrefix)
	return 0
}

// renameNoReplace is the renameat2 RENAME_NOREPLACE bit: the kernel sets it
// on the rename callback's flags when the caller asked not to clobber an
// existing destination (§8 scenario 3).
const renameNoReplace = 1

// Rename moves or renames a file or directory by copying every key under
// the source prefix to the destination prefix and deleting the source
// (§4.5; non-atomic, per spec.md's accepted limitation - every key is
// copied before any source key is deleted, so a crash mid-move can leave
// both sides present).
func (d *dirNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) (ret syscall.Errno) {
	defer instrumentCallback("rename", time.Now(), &ret)

	destDir, ok := newParent.(*dirNode)
	if !ok {
		return syscall.EINVAL
	}
	replace := flags&renameNoReplace == 0

	_, err := d.opts.Store.GetProperties(ctx, d.childKey(name))
	switch {
	case err == nil:
		return d.renameNonDirectory(ctx, name, destDir, newName, replace)
	case blobstore.Classify(err) == blobstore.KindNotFound:
		return d.renameDirectory(ctx, name, destDir, newName, replace)
	default:
		return errno(err)
	}
}

// renameNonDirectory handles moving a single object key (§8 scenarios 3
// and, implicitly, the replacing case of a plain file move).
func (d *dirNode) renameNonDirectory(ctx context.Context, name string, destDir *dirNode, newName string, replace bool) syscall.Errno {
	if d.opts.ReadOnly {
		return syscall.EROFS
	}

	srcKey := d.childKey(name)
	dstKey := destDir.childKey(newName)

	if !replace {
		if _, err := d.opts.Store.GetProperties(ctx, dstKey); err == nil {
			return syscall.EEXIST
		}
	}

	info, err := d.opts.Store.GetProperties(ctx, srcKey)
	if err != nil {
		return errno(err)
	}
	if err := d.opts.Store.Copy(ctx, srcKey, dstKey); err != nil {
		return errno(err)
	}
	if err := d.opts.Store.Delete(ctx, srcKey); err != nil {
		return errno(err)
	}

	d.opts.Cache.InvalidatePrefix(srcKey)
	d.opts.Cache.InvalidatePrefix(dstKey)
	d.opts.Cache.SetItem(dstKey, info)
	return 0
}

// renameDirectory handles moving everything under a directory prefix.
func (d *dirNode) renameDirectory(ctx context.Context, name string, destDir *dirNode, newName string, replace bool) syscall.Errno {
	if d.opts.ReadOnly {
		return syscall.EROFS
	}

	srcPrefix := d.childKey(name) + "/"
	dstPrefix := destDir.childKey(newName) + "/"

	if !replace {
		if children, err := d.opts.Store.ListByHierarchy(ctx, dstPrefix); err == nil && len(children) > 0 {
			return syscall.EEXIST
		}
	}

	items, err := d.opts.Store.ListAll(ctx, srcPrefix)
	if err != nil {
		return errno(err)
	}

	for _, item := range items {
		suffix := item.Key[len(srcPrefix):]
		if err := d.opts.Store.Copy(ctx, item.Key, dstPrefix+suffix); err != nil {
			return errno(err)
		}
	}
	for _, item := range items {
		if err := d.opts.Store.Delete(ctx, item.Key); err != nil {
			return errno(err)
		}
	}
	d.opts.Store.Delete(ctx, srcPrefix)

	d.opts.Cache.InvalidatePrefix(srcPrefix)
	d.opts.Cache.InvalidatePrefix(dstPrefix)
	return 0
}

func (d *dirNode) Statfs(ctx context.Context, out *fuse.StatfsOut) (ret syscall.Errno) {
	defer instrumentCallback("statfs", time.Now(), &ret)

	// Object storage has no meaningful block/inode budget to report;
	// report generous placeholder values so df doesn't show 0 space.
	out.Blocks = 1 << 30
	out.Bfree = 1 << 30
	out.Bavail = 1 << 30
	out.Bsize = 4096
	out.Files = 1 << 20
	out.Ffree = 1 << 20
	return 0
}

type emptyReader struct{}

func (emptyReader) Read(p []byte) (int, error) { return 0, io.EOF }
