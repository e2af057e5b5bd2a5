package pipeline

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/bookkeeper/internal/store/gcs"
)

// Fetcher loads the bytes of a statement document.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// SourceFetcher reads gs://bucket/object URIs from Cloud Storage and
// anything else from the local filesystem.
type SourceFetcher struct{}

// Fetch implements Fetcher.
func (SourceFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "gs://") {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, fmt.Errorf("Fetch: read %s: %w", uri, err)
		}
		return data, nil
	}

	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("Fetch: invalid GCS URI: %s", uri)
	}
	blobs, err := gcs.NewBlobStore(ctx, bucket, "")
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	defer blobs.Close()

	data, err := blobs.Get(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("Fetch: get %s: %w", uri, err)
	}
	return data, nil
}

// FilenameFromURI returns the last path element of a local path or a
// gs://bucket/path URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	if strings.HasPrefix(uri, "gs://") {
		trimmed := strings.TrimPrefix(uri, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return filepath.Base(uri)
}

// DetectMIMEType guesses the document type from its extension, falling back
// to sniffing the content.
func DetectMIMEType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		mt, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mt
		}
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// isText reports whether a MIME type should be sent to the model as text
// rather than as an attachment.
func isText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || mimeType == "application/json"
}
