package artifact

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MinIOOptions configures an S3-compatible backend.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectAPI is the subset of *minio.Client the backend uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinIO stores artifacts as objects in one bucket. Single PutObject calls
// are atomic, so readers never see partial artifacts.
type MinIO struct {
	api    objectAPI
	bucket string
}

// OpenMinIO connects to the endpoint and creates the bucket if missing.
func OpenMinIO(ctx context.Context, opts MinIOOptions) (*MinIO, error) {
	if opts.Endpoint == "" {
		return nil, eris.New("artifact: minio endpoint is required")
	}
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "artifact: minio client")
	}

	m := &MinIO{api: cli, bucket: opts.Bucket}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	ok, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return eris.Wrapf(err, "artifact: check bucket %s", m.bucket)
	}
	if ok {
		return nil
	}
	if err := m.api.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrapf(err, "artifact: make bucket %s", m.bucket)
	}
	zap.L().Info("created bucket", zap.String("component", "artifact"), zap.String("bucket", m.bucket))
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// Exists stats the object.
func (m *MinIO) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.api.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "artifact: stat %s", key)
	}
	return true, nil
}

// Put uploads data as one object.
func (m *MinIO) Put(ctx context.Context, key string, data []byte) error {
	_, err := m.api.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(key)})
	if err != nil {
		return eris.Wrapf(err, "artifact: put %s", key)
	}
	return nil
}

// Get downloads the object, or returns ErrNotFound.
func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.api.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, eris.Wrapf(ErrNotFound, "artifact: get %s", key)
		}
		return nil, eris.Wrapf(err, "artifact: get %s", key)
	}
	defer obj.Close() //nolint:errcheck

	// GetObject is lazy; a missing key surfaces on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, eris.Wrapf(ErrNotFound, "artifact: get %s", key)
		}
		return nil, eris.Wrapf(err, "artifact: read %s", key)
	}
	return data, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".flag":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
