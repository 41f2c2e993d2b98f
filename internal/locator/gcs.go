package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/joseph-ayodele/shipdocs/internal/common"
)

const gsScheme = "gs://"

// ParseGSRef splits "gs://bucket/object" into bucket and object. The object may be empty
// for a bucket-level ref.
func ParseGSRef(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, gsScheme) {
		return "", "", fmt.Errorf("%w: %q is not a gs:// ref", common.ErrInvalidInput, ref)
	}
	rest := strings.TrimPrefix(ref, gsScheme)
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", common.ErrInvalidInput, ref)
	}
	return bucket, object, nil
}

// GCS reads order documents and emails from Cloud Storage.
type GCS struct {
	client *storage.Client
	logger *slog.Logger
}

// NewGCS opens a storage client with application default credentials.
func NewGCS(ctx context.Context, logger *slog.Logger) (*GCS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, logger: logger}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Read(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := ParseGSRef(ref)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, fmt.Errorf("%w: %q names no object", common.ErrInvalidInput, ref)
	}
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", ref, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return b, nil
}

// List returns the order and email objects under the ref's prefix.
func (g *GCS) List(ctx context.Context, dir string) ([]Entry, error) {
	bucket, prefix, err := ParseGSRef(dir)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []Entry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			g.logger.Error("locator.gcs.list.failed", "bucket", bucket, "prefix", prefix, "error", err)
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		if e, ok := objectEntry(bucket, attrs.Name, attrs.Size, attrs.Updated); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}
