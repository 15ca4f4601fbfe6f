// Package awss3 implements blobstore.Store against AWS S3 (or any endpoint
// speaking its API) using aws-sdk-go, as an alternate to the minio-go based
// blobstore/s3 implementation.
package awss3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// Config holds the connection parameters for a Store.
type Config struct {
	Region     string
	Endpoint   string // non-empty for MinIO/non-AWS endpoints
	AccessKey  string
	SecretKey  string
	Bucket     string
	PathStyle  bool
	DisableSSL bool
}

// Store is a blobstore.Store backed by an AWS S3 (or S3-API-compatible)
// bucket via aws-sdk-go.
type Store struct {
	client *s3.S3
	bucket string
}

// New opens a session against cfg and returns a Store bound to the bucket.
// It does not verify the bucket exists; call Probe for that.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("awss3: bucket name is required")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey, cfg.SecretKey, "",
		),
		DisableSSL: aws.Bool(cfg.DisableSSL),
	}

	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(cfg.PathStyle)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("awss3: creating session: %w", err)
	}

	return &Store{client: s3.New(sess), bucket: cfg.Bucket}, nil
}

func statusCode(err error) int {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return 404
		case "AccessDenied":
			return 403
		case "PreconditionFailed":
			return 412
		case "InvalidRange":
			return 416
		}
	}
	return 500
}

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &blobstore.RemoteError{Op: op, Key: key, StatusCode: statusCode(err), Err: err}
}

func isNotFound(err error) bool {
	return statusCode(err) == 404
}

func (s *Store) Probe(ctx context.Context) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return wrap("probe", s.bucket, err)
}

func (s *Store) list(ctx context.Context, prefix string, recursive bool) ([]blobstore.BlobItemInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var items []blobstore.BlobItemInfo
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if key == prefix {
				continue
			}
			items = append(items, blobstore.BlobItemInfo{
				Key:          key,
				Size:         aws.Int64Value(obj.Size),
				LastModified: aws.TimeValue(obj.LastModified),
				ETag:         strings.Trim(aws.StringValue(obj.ETag), `"`),
			})
		}
		if !recursive {
			for _, common := range page.CommonPrefixes {
				items = append(items, blobstore.BlobItemInfo{
					Key:      aws.StringValue(common.Prefix),
					IsPrefix: true,
				})
			}
		}
		return true
	})
	if err != nil {
		return nil, wrap("list", prefix, err)
	}
	return items, nil
}

func (s *Store) ListByHierarchy(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	return s.list(ctx, prefix, false)
}

func (s *Store) ListAll(ctx context.Context, prefix string) ([]blobstore.BlobItemInfo, error) {
	return s.list(ctx, prefix, true)
}

func (s *Store) GetProperties(ctx context.Context, key string) (blobstore.BlobItemInfo, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return blobstore.BlobItemInfo{}, wrap("get_properties", key, err)
	}

	return blobstore.BlobItemInfo{
		Key:          key,
		Size:         aws.Int64Value(out.ContentLength),
		LastModified: aws.TimeValue(out.LastModified),
		ETag:         strings.Trim(aws.StringValue(out.ETag), `"`),
	}, nil
}

func (s *Store) Download(ctx context.Context, key string, offset int64, dst []byte) (int, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if len(dst) > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(dst))-1))
	}

	out, err := s.client.GetObjectWithContext(ctx, input)
	if err != nil {
		return 0, wrap("download", key, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, wrap("download", key, err)
	}
	return n, nil
}

func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, overwrite bool) error {
	// PutObject over the aws-sdk-go v1 API needs a ReadSeeker for
	// signing, so buffer the content once here.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("awss3: reading upload body: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if !overwrite {
		// S3's conditional-write support rejects the PUT server-side
		// with PreconditionFailed if key already has an object, no
		// separate existence check needed.
		input.IfNoneMatch = aws.String("*")
	}

	_, err = s.client.PutObjectWithContext(ctx, input)
	if err != nil && !overwrite && statusCode(err) == 412 {
		return &blobstore.RemoteError{Op: "upload", Key: key, StatusCode: 409, Err: err}
	}
	return wrap("upload", key, err)
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	return wrap("copy", srcKey, err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return wrap("delete", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, wrap("exists", key, err)
}
