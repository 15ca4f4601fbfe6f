package adapter

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// fakeStore is an in-memory blobstore.Store used to exercise the adapter's
// node logic without a real backing object store or a live FUSE mount.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	downloads int // counts calls to Download, so tests can assert lazy-load behavior
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Probe(ctx context.Context) error { return nil }

func (s *fakeStore) ListByHierarchy(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []blobstore.BlobItemInfo
	for key, data := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			child := prefix + rest[:idx+1]
			if !seen[child] {
				seen[child] = true
				out = append(out, blobstore.BlobItemInfo{Key: child, IsPrefix: true})
			}
			continue
		}
		out = append(out, blobstore.BlobItemInfo{Key: key, Size: int64(len(data))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) ListAll(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []blobstore.BlobItemInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) && key != prefix {
			out = append(out, blobstore.BlobItemInfo{Key: key, Size: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) GetProperties(ctx context.Context, key string) (blobstore.BlobItemInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[key]
	if !ok {
		return blobstore.BlobItemInfo{}, &blobstore.RemoteError{Op: "get_properties", Key: key, StatusCode: 404}
	}
	return blobstore.BlobItemInfo{Key: key, Size: int64(len(data)), LastModified: time.Now()}, nil
}

func (s *fakeStore) Download(ctx context.Context, key string, offset int64, dst []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.downloads++
	data, ok := s.objects[key]
	if !ok {
		return 0, &blobstore.RemoteError{Op: "download", Key: key, StatusCode: 404}
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(dst, data[offset:])
	return n, nil
}

func (s *fakeStore) Upload(ctx context.Context, key string, r io.Reader, size int64, overwrite bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !overwrite {
		if _, exists := s.objects[key]; exists {
			return &blobstore.RemoteError{Op: "upload", Key: key, StatusCode: 409}
		}
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[srcKey]
	if !ok {
		return &blobstore.RemoteError{Op: "copy", Key: srcKey, StatusCode: 404}
	}
	dup := make([]byte, len(data))
	copy(dup, data)
	s.objects[dstKey] = dup
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}
