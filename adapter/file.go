package adapter

import (
	"context"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/filecontext"
	"github.com/andybochmann/blob-mounter/log"
	"github.com/andybochmann/blob-mounter/metrics"
)

// fileNode represents one blob key that holds content rather than acting
// as a directory prefix.
type fileNode struct {
	gofuse.Inode
	opts *Options
	key  string

	mu      sync.Mutex
	size    int64
	modTime time.Time
}

var (
	_ gofuse.InodeEmbedder = (*fileNode)(nil)
	_ gofuse.NodeGetattrer = (*fileNode)(nil)
	_ gofuse.NodeOpener    = (*fileNode)(nil)
	_ gofuse.NodeSetattrer = (*fileNode)(nil)
)

func (n *fileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) (ret syscall.Errno) {
	defer instrumentCallback("file_getattr", time.Now(), &ret)

	n.mu.Lock()
	defer n.mu.Unlock()
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(n.size)
	out.SetTimes(nil, &n.modTime, nil)
	return 0
}

// Open checks the sticky-error journal (§7 open question resolution)
// before allowing a previously-failed key to be opened again, then
// hands back a handle whose content is loaded lazily (openHandle).
func (n *fileNode) Open(ctx context.Context, flags uint32) (handle gofuse.FileHandle, fuseFlags uint32, ret syscall.Errno) {
	defer instrumentCallback("open", time.Now(), &ret)

	if n.opts.Journal != nil {
		if op, message, found, err := n.opts.Journal.Check(n.key); err == nil && found {
			n.opts.Logger.Error("refusing open on key with unresolved sticky error",
				log.F("key", n.key), log.F("op", op), log.F("message", message))
			return nil, 0, syscall.EIO
		}
	}

	writable := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	truncate := flags&syscall.O_TRUNC != 0
	h, errno := n.openHandle(ctx, writable, truncate)
	if errno != 0 {
		return nil, 0, errno
	}
	return h, 0, 0
}

// openHandle constructs a fileHandle without downloading anything (§4.4,
// §4.5's "leave the buffer unloaded (lazy)" requirement): a handle opened
// for O_TRUNC starts as an already-loaded, empty, dirty buffer, since its
// content is replaced outright; a handle over empty content also starts
// loaded; any other handle is marked not-yet-loaded and the first Read, Write, Allocate or truncating Setattr against it
// triggers ensureLoaded, which streams the blob's current content
// straight into memory or a spill file via filecontext.Load instead of
// buffering a second full-size copy first.
func (n *fileNode) openHandle(ctx context.Context, writable, truncate bool) (*fileHandle, syscall.Errno) {
	handleID := uuid.Must(uuid.NewV7()).String()
	n.opts.Logger.Debug("handle opened", log.F("key", n.key), log.F("handle_id", handleID), log.F("writable", writable))

	h := &fileHandle{
		node:   n,
		ctx:    filecontext.InitializeEmpty(n.opts.SpillDir, n.opts.SpillThresholdBytes),
		id:     handleID,
		loaded: true,
	}

	if truncate {
		n.mu.Lock()
		n.size = 0
		n.modTime = time.Now()
		n.mu.Unlock()
		h.dirty = true
	} else {
		n.mu.Lock()
		size := n.size
		n.mu.Unlock()
		h.loaded = size == 0
	}

	metrics.OpenHandles.Inc()
	return h, 0
}

// Setattr handles truncate (the only attribute change the adapter acts
// on; ownership/mode bits are accepted and ignored).
func (n *fileNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) (ret syscall.Errno) {
	defer instrumentCallback("setattr", time.Now(), &ret)

	if size, ok := in.GetSize(); ok {
		if n.opts.ReadOnly {
			return syscall.EROFS
		}
		if fh, ok := f.(*fileHandle); ok {
			if errno := fh.ensureLoaded(ctx); errno != 0 {
				return errno
			}
			if err := fh.ctx.SetLength(int64(size)); err != nil {
				return syscall.EIO
			}
			fh.markDirty()
		} else {
			if err := n.opts.Store.Upload(ctx, n.key, emptyReader{}, 0, true); err != nil {
				return errno(err)
			}
		}
		n.mu.Lock()
		n.size = int64(size)
		n.mu.Unlock()
	}

	n.mu.Lock()
	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(n.size)
	out.SetTimes(nil, &n.modTime, nil)
	n.mu.Unlock()
	return 0
}

// storeReader adapts blobstore.Store's offset-addressed Download into an
// io.Reader, so filecontext.Load can stream a blob's content straight into
// a handle's buffer or spill file without an intermediate full-size copy.
type storeReader struct {
	ctx   context.Context
	store blobstore.Store
	key   string
	off   int64
}

func (r *storeReader) Read(p []byte) (int, error) {
	n, err := r.store.Download(r.ctx, r.key, r.off, p)
	r.off += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// fileHandle is the per-open-call state: a local content buffer plus
// enough bookkeeping to upload it back on Flush if it was modified (§4.5
// open/read/write/truncate/close state machine).
type fileHandle struct {
	node *fileNode
	ctx  *filecontext.Context
	id   string // correlation id for log lines spanning open/flush/release

	mu     sync.Mutex
	dirty  bool
	loaded bool
}

var (
	_ gofuse.FileReader    = (*fileHandle)(nil)
	_ gofuse.FileWriter    = (*fileHandle)(nil)
	_ gofuse.FileFlusher   = (*fileHandle)(nil)
	_ gofuse.FileReleaser  = (*fileHandle)(nil)
	_ gofuse.FileGetattrer = (*fileHandle)(nil)
	_ gofuse.FileAllocater = (*fileHandle)(nil)
)

func (h *fileHandle) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

// ensureLoaded performs the deferred download+load on first access to a
// handle opened against existing content (spec.md:150/155). It is a no-op
// once loaded, so repeated reads/writes over the same handle cost nothing
// beyond the first.
func (h *fileHandle) ensureLoaded(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return 0
	}

	h.node.mu.Lock()
	size := h.node.size
	h.node.mu.Unlock()

	loaded, err := filecontext.Load(h.node.opts.SpillDir, h.node.opts.SpillThresholdBytes,
		io.LimitReader(&storeReader{ctx: ctx, store: h.node.opts.Store, key: h.node.key}, size), size)
	if err != nil {
		return errno(err)
	}

	stale := h.ctx
	h.ctx = loaded
	stale.Dispose()
	h.loaded = true
	return 0
}

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (result fuse.ReadResult, ret syscall.Errno) {
	defer instrumentCallback("read", time.Now(), &ret)

	if errno := h.ensureLoaded(ctx); errno != 0 {
		return fuse.ReadResultData(dest[:0]), errno
	}

	n, err := h.ctx.Read(dest, off)
	if err != nil && n == 0 {
		return fuse.ReadResultData(dest[:0]), 0
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (written uint32, ret syscall.Errno) {
	defer instrumentCallback("write", time.Now(), &ret)

	if h.node.opts.ReadOnly {
		return 0, syscall.EROFS
	}
	if errno := h.ensureLoaded(ctx); errno != 0 {
		return 0, errno
	}

	n, err := h.ctx.Write(data, off)
	if err != nil {
		return 0, syscall.EIO
	}
	h.markDirty()
	return uint32(n), 0
}

func (h *fileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) (ret syscall.Errno) {
	defer instrumentCallback("handle_getattr", time.Now(), &ret)

	h.mu.Lock()
	loaded := h.loaded
	h.mu.Unlock()

	h.node.mu.Lock()
	defer h.node.mu.Unlock()

	size := h.node.size
	if loaded {
		size = h.ctx.Len()
	}

	out.Mode = syscall.S_IFREG | 0o644
	out.Size = uint64(size)
	out.SetTimes(nil, &h.node.modTime, nil)
	return 0
}

// Flush uploads the handle's buffered content back to the store if it
// was modified since the last flush, recording a sticky error on failure
// so later opens of this key surface the problem instead of silently
// returning stale content (§7). Flush can run more than once over a
// handle's lifetime (one per dup'd descriptor close), so it relies solely
// on the dirty flag rather than a one-shot latch.
func (h *fileHandle) Flush(ctx context.Context) (ret syscall.Errno) {
	defer instrumentCallback("flush", time.Now(), &ret)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty || h.node.opts.ReadOnly {
		return 0
	}

	stream, err := h.ctx.ReadStream()
	if err != nil {
		return syscall.EIO
	}

	if err := h.node.opts.Store.Upload(ctx, h.node.key, stream, h.ctx.Len(), true); err != nil {
		h.node.opts.Logger.Error("flush upload failed",
			log.F("key", h.node.key), log.F("handle_id", h.id), log.F("error", err))
		if h.node.opts.Journal != nil {
			h.node.opts.Journal.RecordFailure(h.node.key, "flush", err)
		}
		return errno(err)
	}

	if h.node.opts.Journal != nil {
		h.node.opts.Journal.Resolve(h.node.key)
	}

	h.node.opts.Cache.InvalidatePrefix(h.node.key)

	now := time.Now()
	h.node.mu.Lock()
	h.node.size = h.ctx.Len()
	h.node.modTime = now
	h.node.mu.Unlock()

	h.node.opts.Cache.SetItem(h.node.key, blobstore.BlobItemInfo{
		Key:          h.node.key,
		Size:         h.ctx.Len(),
		LastModified: now,
	})

	h.ctx.ClearDirty()
	h.dirty = false
	return 0
}

// Release disposes the handle's local buffer (or spill file). The kernel
// always calls Flush before Release for a dirty handle, so no upload
// happens here.
func (h *fileHandle) Release(ctx context.Context) (ret syscall.Errno) {
	defer instrumentCallback("release", time.Now(), &ret)

	h.ctx.Dispose()
	metrics.OpenHandles.Dec()
	return 0
}

// Allocate implements the allocation-hint operation: grows the handle's
// backing capacity when off+size exceeds the current length, without
// changing the logical length or marking the handle dirty.
func (h *fileHandle) Allocate(ctx context.Context, off uint64, size uint64, mode uint32) (ret syscall.Errno) {
	defer instrumentCallback("allocate", time.Now(), &ret)

	if errno := h.ensureLoaded(ctx); errno != 0 {
		return errno
	}

	want := int64(off + size)
	if want <= h.ctx.Len() {
		return 0
	}
	if err := h.ctx.Reserve(want); err != nil {
		return syscall.EIO
	}
	return 0
}
