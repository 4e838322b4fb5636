// Package upload stores image attachments in an object storage bucket and
// hands back publicly fetchable URLs for embedding in messages.
package upload

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const objectPrefix = "conversations"

// Uploader writes attachment blobs into one bucket.
type Uploader struct {
	client *storage.Client
	bucket string
}

// New creates an uploader using application default credentials.
func New(ctx context.Context, bucket string) (*Uploader, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	return &Uploader{client: client, bucket: bucket}, nil
}

// Upload stores one blob under a fresh object name namespaced by the
// conversation and returns its public URL. The write either completes or
// fails as a whole; there is no partial-object state to clean up.
func (u *Uploader) Upload(ctx context.Context, conversationID, contentType string, data []byte) (string, error) {
	if conversationID == "" {
		return "", errors.New("conversation_id is required")
	}
	if len(data) == 0 {
		return "", errors.New("upload payload is empty")
	}

	object := ObjectPath(conversationID)
	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %q: %w", object, err)
	}

	return PublicURL(u.bucket, object), nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}

// ObjectPath builds a fresh object name under the conversation's namespace.
func ObjectPath(conversationID string) string {
	return fmt.Sprintf("%s/%s/%s", objectPrefix, conversationID, uuid.NewString())
}

// PublicURL is the fetchable address of an uploaded object.
func PublicURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}
