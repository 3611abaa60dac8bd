// Package media mirrors stored images to the remote media host.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var ErrRemoteUpload = errors.New("media: remote upload failed")

// Result describes where an uploaded object lives.
type Result struct {
	Key  string
	URL  string
	Size int64
}

// Uploader copies a local file to the remote media host.
type Uploader interface {
	Upload(ctx context.Context, filePath string) (Result, error)
}

// objectStore is the part of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStorage uploads to an S3-compatible bucket.
type ObjectStorage struct {
	store   objectStore
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewObjectStorage creates a MinIO client for endpoint. The connection is not
// verified until EnsureBucket runs.
func NewObjectStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*ObjectStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return newObjectStorage(client, bucket, client.EndpointURL(), logger), nil
}

func newObjectStorage(store objectStore, bucket string, endpoint *url.URL, logger *zap.Logger) *ObjectStorage {
	base := ""
	if endpoint != nil {
		u := *endpoint
		u.Path = path.Join("/", u.Path, bucket)
		base = u.String()
	}
	return &ObjectStorage{store: store, bucket: bucket, baseURL: base, logger: logger}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (o *ObjectStorage) EnsureBucket(ctx context.Context) error {
	exists, err := o.store.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", o.bucket, err)
	}
	if exists {
		return nil
	}

	if err := o.store.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
		// Another replica may have won the race.
		exists, errExists := o.store.BucketExists(ctx, o.bucket)
		if errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", o.bucket, err)
	}
	o.logger.Info("created media bucket", zap.String("bucket", o.bucket))
	return nil
}

// Upload stores filePath under its base name.
func (o *ObjectStorage) Upload(ctx context.Context, filePath string) (Result, error) {
	key := filepath.Base(filePath)
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := o.store.FPutObject(ctx, o.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrRemoteUpload, key, err)
	}

	return Result{
		Key:  key,
		URL:  o.baseURL + "/" + key,
		Size: info.Size,
	}, nil
}

// Noop is used when no media host is configured.
type Noop struct{}

func (Noop) Upload(ctx context.Context, filePath string) (Result, error) {
	return Result{Key: filepath.Base(filePath)}, nil
}
