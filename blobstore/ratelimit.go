package blobstore

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Store so every call blocks on a shared token bucket
// before reaching the underlying backend. Mounts configured with a
// RequestsPerSecond budget (MountConfig) use this to stay under a backing
// store's throttling threshold instead of discovering it via 429s.
type RateLimited struct {
	inner   Store
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token bucket allowing rps requests per
// second and a burst of the same size. rps <= 0 disables limiting and
// returns inner unwrapped.
func NewRateLimited(inner Store, rps float64) Store {
	if rps <= 0 {
		return inner
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

func (r *RateLimited) Probe(ctx context.Context) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Probe(ctx)
}

func (r *RateLimited) ListByHierarchy(ctx context.Context, prefix string) ([]BlobItemInfo, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.ListByHierarchy(ctx, prefix)
}

func (r *RateLimited) ListAll(ctx context.Context, prefix string) ([]BlobItemInfo, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.ListAll(ctx, prefix)
}

func (r *RateLimited) GetProperties(ctx context.Context, key string) (BlobItemInfo, error) {
	if err := r.wait(ctx); err != nil {
		return BlobItemInfo{}, err
	}
	return r.inner.GetProperties(ctx, key)
}

func (r *RateLimited) Download(ctx context.Context, key string, offset int64, dst []byte) (int, error) {
	if err := r.wait(ctx); err != nil {
		return 0, err
	}
	return r.inner.Download(ctx, key, offset, dst)
}

func (r *RateLimited) Upload(ctx context.Context, key string, src io.Reader, size int64, overwrite bool) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Upload(ctx, key, src, size, overwrite)
}

func (r *RateLimited) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Copy(ctx, srcKey, dstKey)
}

func (r *RateLimited) Delete(ctx context.Context, key string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.inner.Delete(ctx, key)
}

func (r *RateLimited) Exists(ctx context.Context, key string) (bool, error) {
	if err := r.wait(ctx); err != nil {
		return false, err
	}
	return r.inner.Exists(ctx, key)
}
