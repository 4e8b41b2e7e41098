package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// GCSArchive keeps a copy of every uploaded receipt image in a GCS bucket.
// Objects are laid out as receipts/YYYY/MM/DD/<uuid><ext> so a day's uploads
// are one prefix. It assumes Application Default Credentials are configured.
type GCSArchive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// New creates an archive writing into the given bucket.
func New(ctx context.Context, bucket string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket, now: time.Now}, nil
}

// Close releases the underlying client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// Store uploads the image and returns its gs:// URI.
func (a *GCSArchive) Store(ctx context.Context, userID string, image []byte, mimeType string) (string, error) {
	objectName := a.objectName(mimeType)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType
	w.Metadata = map[string]string{"user_id": userID}

	if _, err := io.Copy(w, bytes.NewReader(image)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy receipt to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

func (a *GCSArchive) objectName(mimeType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("receipts/%s/%s%s", a.now().Format("2006/01/02"), uuid.NewString(), ext)
}

// ListDay returns the URIs of every receipt archived on the given day.
func (a *GCSArchive) ListDay(ctx context.Context, day time.Time) ([]string, error) {
	prefix := fmt.Sprintf("receipts/%s/", day.Format("2006/01/02"))
	it := a.client.Bucket(a.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var uris []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list receipts under %q: %w", prefix, err)
		}
		uris = append(uris, fmt.Sprintf("gs://%s/%s", a.bucket, attrs.Name))
	}
	return uris, nil
}
