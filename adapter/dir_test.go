package adapter

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/andybochmann/blob-mounter/log"
	"github.com/andybochmann/blob-mounter/metacache"
)

func newTestOptions(store *fakeStore, readOnly bool) *Options {
	return &Options{
		Store:    store,
		Cache:    metacache.New(5 * time.Minute),
		ReadOnly: readOnly,
		Logger:   log.New("adapter-test", log.Debug, "", true),
	}
}

// scenario 1: create-new under a subfolder.
func TestCreateNewUnderSubfolder(t *testing.T) {
	store := newFakeStore()
	opts := newTestOptions(store, false)

	folder := &dirNode{opts: opts, key: "data/folder/"}
	node, errno := folder.createBlob(context.Background(), "new.txt")
	if errno != 0 {
		t.Fatalf("createBlob: errno %v", errno)
	}
	if node.key != "data/folder/new.txt" {
		t.Fatalf("key = %q, want data/folder/new.txt", node.key)
	}

	data, ok := store.objects["data/folder/new.txt"]
	if !ok || len(data) != 0 {
		t.Fatalf("expected empty object uploaded, got %v ok=%v", data, ok)
	}

	if _, ok := opts.Cache.GetItem("data/folder/new.txt"); !ok {
		t.Fatal("expected item cache to be populated after create")
	}
}

func TestCreateNewFailsIfAlreadyExists(t *testing.T) {
	store := newFakeStore()
	store.objects["a/b.txt"] = []byte("x")
	opts := newTestOptions(store, false)
	dir := &dirNode{opts: opts, key: "a/"}

	if _, errno := dir.createBlob(context.Background(), "b.txt"); errno != syscall.EEXIST {
		t.Fatalf("errno = %v, want EEXIST", errno)
	}
}

func TestCreateNewRejectedOnReadOnlyMount(t *testing.T) {
	store := newFakeStore()
	opts := newTestOptions(store, true)
	dir := &dirNode{opts: opts, key: ""}

	if _, errno := dir.createBlob(context.Background(), "new.txt"); errno != syscall.EROFS {
		t.Fatalf("errno = %v, want EROFS", errno)
	}
}

// scenario 3: rename non-replacing onto an existing destination fails
// without touching the store or the cache.
func TestRenameNonReplacingOntoExistingFails(t *testing.T) {
	store := newFakeStore()
	store.objects["a.txt"] = []byte("aaa")
	store.objects["b.txt"] = []byte("bbb")
	opts := newTestOptions(store, false)
	dir := &dirNode{opts: opts, key: ""}

	errno := dir.renameNonDirectory(context.Background(), "a.txt", dir, "b.txt", false)
	if errno != syscall.EEXIST {
		t.Fatalf("errno = %v, want EEXIST", errno)
	}
	if string(store.objects["a.txt"]) != "aaa" || string(store.objects["b.txt"]) != "bbb" {
		t.Fatal("store objects must be untouched on a rejected non-replacing rename")
	}
}

func TestRenameReplacesWhenFlagSet(t *testing.T) {
	store := newFakeStore()
	store.objects["a.txt"] = []byte("aaa")
	store.objects["b.txt"] = []byte("bbb")
	opts := newTestOptions(store, false)
	dir := &dirNode{opts: opts, key: ""}

	if errno := dir.renameNonDirectory(context.Background(), "a.txt", dir, "b.txt", true); errno != 0 {
		t.Fatalf("errno = %v, want success", errno)
	}
	if _, ok := store.objects["a.txt"]; ok {
		t.Fatal("source key should be gone after rename")
	}
	if string(store.objects["b.txt"]) != "aaa" {
		t.Fatalf("destination content = %q, want aaa", store.objects["b.txt"])
	}
}

// scenario 4: recursive directory delete.
func TestRmdirRecursivelyDeletesEverythingUnderPrefix(t *testing.T) {
	store := newFakeStore()
	store.objects["photos/a.jpg"] = []byte("1")
	store.objects["photos/b/c.jpg"] = []byte("2")
	store.objects["photos/"] = nil
	opts := newTestOptions(store, false)

	opts.Cache.SetListing("photos/", nil)
	root := &dirNode{opts: opts, key: ""}

	if errno := root.Rmdir(context.Background(), "photos"); errno != 0 {
		t.Fatalf("Rmdir: errno %v", errno)
	}

	for _, key := range []string{"photos/a.jpg", "photos/b/c.jpg", "photos/"} {
		if _, ok := store.objects[key]; ok {
			t.Fatalf("key %q should have been deleted", key)
		}
	}
	if _, ok := opts.Cache.GetListing("photos/"); ok {
		t.Fatal("listing cache for photos/ should be invalidated")
	}
}

// scenario 6: read-only mount rejects writes.
func TestReadOnlyMountRejectsUnlinkAndMkdir(t *testing.T) {
	store := newFakeStore()
	store.objects["a.txt"] = []byte("x")
	opts := newTestOptions(store, true)
	dir := &dirNode{opts: opts, key: ""}

	if errno := dir.Unlink(context.Background(), "a.txt"); errno != syscall.EROFS {
		t.Fatalf("Unlink errno = %v, want EROFS", errno)
	}

	var out fuse.EntryOut
	if _, errno := dir.Mkdir(context.Background(), "sub", 0o755, &out); errno != syscall.EROFS {
		t.Fatalf("Mkdir errno = %v, want EROFS", errno)
	}
}
