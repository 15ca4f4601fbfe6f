package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/andybochmann/blob-mounter/metrics"
)

// Instrumented wraps a Store so every call observes the metrics package's
// BlobStoreOpsTotal counter and BlobStoreOpDuration histogram, labeled by
// operation and the ErrorKind the call resulted in.
type Instrumented struct {
	inner Store
}

// NewInstrumented wraps inner so every call it makes is observed.
func NewInstrumented(inner Store) Store {
	return &Instrumented{inner: inner}
}

func observe(op string, start time.Time, err error) {
	metrics.BlobStoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.BlobStoreOpsTotal.WithLabelValues(op, Classify(err).String()).Inc()
}

func (s *Instrumented) Probe(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Probe(ctx)
	observe("probe", start, err)
	return err
}

func (s *Instrumented) ListByHierarchy(ctx context.Context, prefix string) ([]BlobItemInfo, error) {
	start := time.Now()
	items, err := s.inner.ListByHierarchy(ctx, prefix)
	observe("list_by_hierarchy", start, err)
	return items, err
}

func (s *Instrumented) ListAll(ctx context.Context, prefix string) ([]BlobItemInfo, error) {
	start := time.Now()
	items, err := s.inner.ListAll(ctx, prefix)
	observe("list_all", start, err)
	return items, err
}

func (s *Instrumented) GetProperties(ctx context.Context, key string) (BlobItemInfo, error) {
	start := time.Now()
	info, err := s.inner.GetProperties(ctx, key)
	observe("get_properties", start, err)
	return info, err
}

func (s *Instrumented) Download(ctx context.Context, key string, offset int64, dst []byte) (int, error) {
	start := time.Now()
	n, err := s.inner.Download(ctx, key, offset, dst)
	observe("download", start, err)
	return n, err
}

func (s *Instrumented) Upload(ctx context.Context, key string, r io.Reader, size int64, overwrite bool) error {
	start := time.Now()
	err := s.inner.Upload(ctx, key, r, size, overwrite)
	observe("upload", start, err)
	return err
}

func (s *Instrumented) Copy(ctx context.Context, srcKey, dstKey string) error {
	start := time.Now()
	err := s.inner.Copy(ctx, srcKey, dstKey)
	observe("copy", start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	observe("delete", start, err)
	return err
}

func (s *Instrumented) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.inner.Exists(ctx, key)
	observe("exists", start, err)
	return ok, err
}
