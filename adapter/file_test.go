package adapter

import (
	"bytes"
	"context"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/filecontext"
)

// scenario 2: read an existing blob, no upload happens on cleanup since
// nothing was written.
func TestReadExistingFile(t *testing.T) {
	store := newFakeStore()
	store.objects["x.txt"] = []byte("hello")
	opts := newTestOptions(store, false)

	node := &fileNode{opts: opts, key: "x.txt", size: 5}
	handle, errno := node.openHandle(context.Background(), false, false)
	if errno != 0 {
		t.Fatalf("openHandle: errno %v", errno)
	}
	if handle.loaded {
		t.Fatal("a fresh handle over existing content must start unloaded")
	}
	if store.downloads != 0 {
		t.Fatalf("openHandle must not download; downloads = %d", store.downloads)
	}

	buf := make([]byte, 5)
	result, errno := handle.Read(context.Background(), buf, 0)
	if errno != 0 {
		t.Fatalf("Read: errno %v", errno)
	}
	out, _ := result.Bytes(buf)
	if string(out) != "hello" {
		t.Fatalf("Read = %q, want hello", out)
	}
	if store.downloads != 1 {
		t.Fatalf("first Read must trigger exactly one download; downloads = %d", store.downloads)
	}
	if _, errno := handle.Read(context.Background(), buf, 0); errno != 0 {
		t.Fatalf("second Read: errno %v", errno)
	}
	if store.downloads != 1 {
		t.Fatalf("a second Read on an already-loaded handle must not re-download; downloads = %d", store.downloads)
	}

	if errno := handle.Flush(context.Background()); errno != 0 {
		t.Fatalf("Flush: errno %v", errno)
	}
	if !bytes.Equal(store.objects["x.txt"], []byte("hello")) {
		t.Fatal("a read-only handle must not have re-uploaded its content")
	}
}

// scenario 5: a file over the spill threshold loads into a temp-file
// backed context, and a read at an offset into it returns the right bytes.
func TestOpenLargeFileSpillsToDisk(t *testing.T) {
	const size = 4096
	const threshold = 1024

	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	store := newFakeStore()
	store.objects["big.bin"] = content

	opts := newTestOptions(store, false)
	opts.SpillThresholdBytes = threshold

	node := &fileNode{opts: opts, key: "big.bin", size: int64(size)}
	handle, errno := node.openHandle(context.Background(), false, false)
	if errno != 0 {
		t.Fatalf("openHandle: errno %v", errno)
	}
	defer handle.ctx.Dispose()

	buf := make([]byte, 16)
	result, errno := handle.Read(context.Background(), buf, 2000)
	if errno != 0 {
		t.Fatalf("Read: errno %v", errno)
	}
	out, _ := result.Bytes(buf)
	if !bytes.Equal(out, content[2000:2016]) {
		t.Fatalf("Read at offset 2000 = %v, want %v", out, content[2000:2016])
	}
	if handle.ctx.Mode() != filecontext.Spilled {
		t.Fatalf("content over the spill threshold must load straight into a spill file, got mode %v", handle.ctx.Mode())
	}
}

// scenario 6: a read-only mount rejects writes and truncation, but still
// allows opening and reading.
func TestReadOnlyMountRejectsWriteAndTruncate(t *testing.T) {
	store := newFakeStore()
	store.objects["a.txt"] = []byte("hello")
	opts := newTestOptions(store, true)

	node := &fileNode{opts: opts, key: "a.txt", size: 5}
	handle, errno := node.openHandle(context.Background(), false, false)
	if errno != 0 {
		t.Fatalf("openHandle: errno %v", errno)
	}

	if _, errno := handle.Write(context.Background(), []byte("x"), 0); errno != syscall.EROFS {
		t.Fatalf("Write errno = %v, want EROFS", errno)
	}

	var in fuse.SetAttrIn
	in.Valid |= fuse.FATTR_SIZE
	in.Size = 0
	var out fuse.AttrOut
	if errno := node.Setattr(context.Background(), handle, &in, &out); errno != syscall.EROFS {
		t.Fatalf("Setattr(size) errno = %v, want EROFS", errno)
	}
}

// An O_TRUNC open must not download the blob it's about to discard: the
// handle starts already loaded, empty, and dirty.
func TestOpenWithTruncateSkipsDownload(t *testing.T) {
	store := newFakeStore()
	store.objects["big.bin"] = make([]byte, 4096)
	opts := newTestOptions(store, false)

	node := &fileNode{opts: opts, key: "big.bin", size: 4096}
	handle, errno := node.openHandle(context.Background(), true, true)
	if errno != 0 {
		t.Fatalf("openHandle: errno %v", errno)
	}

	if !handle.loaded {
		t.Fatal("a truncating open must produce an already-loaded handle")
	}
	if !handle.dirty {
		t.Fatal("a truncating open must mark the handle dirty so Flush uploads the (now empty) content")
	}
	if handle.ctx.Len() != 0 {
		t.Fatalf("ctx length after truncate = %d, want 0", handle.ctx.Len())
	}
	if store.downloads != 0 {
		t.Fatalf("truncating open must not download; downloads = %d", store.downloads)
	}
	node.mu.Lock()
	size := node.size
	node.mu.Unlock()
	if size != 0 {
		t.Fatalf("node size after truncating open = %d, want 0", size)
	}
}

func TestCacheInvalidatedAndItemRefreshedOnFlush(t *testing.T) {
	store := newFakeStore()
	opts := newTestOptions(store, false)

	node := &fileNode{opts: opts, key: "note.txt"}
	handle, errno := node.openHandle(context.Background(), true, false)
	if errno != 0 {
		t.Fatalf("openHandle: errno %v", errno)
	}

	if _, errno := handle.Write(context.Background(), []byte("abc"), 0); errno != 0 {
		t.Fatalf("Write: errno %v", errno)
	}
	opts.Cache.SetItem("note.txt", blobstore.BlobItemInfo{Key: "note.txt", Size: 0})

	if errno := handle.Flush(context.Background()); errno != 0 {
		t.Fatalf("Flush: errno %v", errno)
	}

	info, ok := opts.Cache.GetItem("note.txt")
	if !ok {
		t.Fatal("expected item cache to be repopulated after flush")
	}
	if info.Size != 3 {
		t.Fatalf("cached size = %d, want 3", info.Size)
	}
	if string(store.objects["note.txt"]) != "abc" {
		t.Fatalf("uploaded content = %q, want abc", store.objects["note.txt"])
	}
}
