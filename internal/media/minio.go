package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Skufu/GoTriage/internal/config"
)

// ObjectStore uploads media to an S3-compatible bucket.
type ObjectStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return client, nil
}

// NewObjectStore wraps client. When publicURL is empty, object URLs are built
// from the client endpoint as <endpoint>/<bucket>/<object>.
func NewObjectStore(client *minio.Client, bucket, publicURL string) *ObjectStore {
	if publicURL == "" {
		publicURL = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + bucket
	}
	return &ObjectStore{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func (o *ObjectStore) Name() string { return "object-storage" }

func (o *ObjectStore) Save(ctx context.Context, name string, upload Upload) (string, error) {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := o.client.PutObject(ctx, o.bucket, name, bytes.NewReader(upload.Data), int64(len(upload.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", o.bucket, name, err)
	}
	return o.PublicURL(name), nil
}

func (o *ObjectStore) PublicURL(name string) string {
	return o.publicURL + "/" + name
}

// Ready reports whether the bucket exists and the credentials can see it.
func (o *ObjectStore) Ready(ctx context.Context) error {
	ok, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", o.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", o.bucket)
	}
	return nil
}
