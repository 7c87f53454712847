package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"docverify/pkg/platform/sentinel"
)

// GCSBackend stores objects in a Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS connects with explicit JSON credentials when given, otherwise with
// application default credentials.
func NewGCS(ctx context.Context, bucket, credentialsJSON string) (*GCSBackend, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q not accessible: %w", bucket, err)
	}
	return &GCSBackend{client: client, bucket: bucket, prefix: "verification-documents/"}, nil
}

func (b *GCSBackend) object(key string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.prefix + key)
}

func (b *GCSBackend) Write(ctx context.Context, key, contentType string, data []byte) error {
	// DoesNotExist makes a repeated upload of the same digest a no-op.
	wc := b.object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("uploading to gcs: %w", err)
	}
	if err := wc.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return fmt.Errorf("closing gcs writer: %w", err)
	}
	return nil
}

func (b *GCSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading from gcs: %w", err)
	}
	return rc, nil
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
