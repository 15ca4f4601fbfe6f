// Package s3 implements blobstore.Store against any S3-compatible
// endpoint (AWS S3, MinIO, Azure Blob's S3 gateway, etc.) using minio-go.
package s3

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// Config holds the connection parameters for a Store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PathStyle bool
}

// Store is a blobstore.Store backed by an S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New dials endpoint and returns a Store bound to the given bucket. It does
// not verify the bucket exists; call Probe for that.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	return &blobstore.RemoteError{Op: op, Key: key, StatusCode: resp.StatusCode, Err: err}
}

func toItemInfo(key string, info minio.ObjectInfo) blobstore.BlobItemInfo {
	isPrefix := strings.HasSuffix(info.Key, "/") && info.Size == 0
	return blobstore.BlobItemInfo{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
		IsPrefix:     isPrefix,
	}
}

func (s *Store) Probe(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return wrap("probe", s.bucket, err)
	}
	if !ok {
		return &blobstore.RemoteError{Op: "probe", Key: s.bucket, StatusCode: 404}
	}
	return nil
}

func (s *Store) ListByHierarchy(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})

	var items []blobstore.BlobItemInfo
	for obj := range objectsCh {
		if obj.Err != nil {
			return nil, wrap("list", prefix, obj.Err)
		}
		if obj.Key == prefix {
			continue
		}
		items = append(items, toItemInfo(obj.Key, obj))
	}
	return items, nil
}

func (s *Store) ListAll(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	objectsCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var items []blobstore.BlobItemInfo
	for obj := range objectsCh {
		if obj.Err != nil {
			return nil, wrap("list", prefix, obj.Err)
		}
		items = append(items, toItemInfo(obj.Key, obj))
	}
	return items, nil
}

func (s *Store) GetProperties(ctx context.Context, key string) (blobstore.BlobItemInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return blobstore.BlobItemInfo{}, wrap("get_properties", key, err)
	}
	return toItemInfo(key, info), nil
}

func (s *Store) Download(ctx context.Context, key string, offset int64, dst []byte) (int, error) {
	opts := minio.GetObjectOptions{}
	if len(dst) > 0 {
		if err := opts.SetRange(offset, offset+int64(len(dst))-1); err != nil {
			return 0, wrap("download", key, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return 0, wrap("download", key, err)
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, wrap("download", key, err)
	}
	return n, nil
}

func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, overwrite bool) error {
	if !overwrite {
		// minio-go's PutObject has no conditional-write option, so the
		// closest this backend gets to an atomic create-if-absent is a
		// StatObject immediately before the PUT; a concurrent writer
		// between the two calls can still win the race.
		if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
			return &blobstore.RemoteError{Op: "upload", Key: key, StatusCode: 409}
		}
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{})
	return wrap("upload", key, err)
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	return wrap("copy", srcKey, err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == 404 {
			return nil
		}
		return wrap("delete", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 404 {
		return false, nil
	}
	return false, wrap("exists", key, err)
}
