package fitmetrics

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Object is one entry in the object store, keyed relative to the store's
// configured prefix.
type Object struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// UploadURL is a presigned request callers can use to upload a data file
// without credentials.
type UploadURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStore is the authoritative home of metric data files. Production
// uses the S3 implementation; the file implementation backs development
// and tests.
type ObjectStore interface {
	// List returns the objects under the store's prefix
	List(ctx context.Context) ([]Object, error)

	// Get opens the object at key for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Download copies the object at key to the local path
	Download(ctx context.Context, key, localPath string) error

	// Put writes the object at key from r, replacing any previous content
	Put(ctx context.Context, key string, r io.Reader) error

	// PresignUpload mints a presigned upload request for the given key
	PresignUpload(ctx context.Context, key string, expiry time.Duration) (*UploadURL, error)
}

// OpenStore opens the object store named by the config's store URL.
// Supported schemes are "s3" (s3://bucket/prefix) and "file" (file:///dir).
func OpenStore(ctx context.Context, config *Config) (ObjectStore, error) {
	if config.Store == "" {
		return nil, fmt.Errorf("no object store configured, set store in the config file or AWS_S3_BUCKET_NAME")
	}

	parsed, err := url.Parse(config.Store)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL %q: %w", config.Store, err)
	}

	switch parsed.Scheme {
	case "s3":
		bucket := parsed.Host
		if bucket == "" {
			return nil, fmt.Errorf("invalid store URL %q: missing bucket name", config.Store)
		}
		prefix := strings.Trim(parsed.Path, "/")
		return openS3Store(ctx, config, bucket, prefix)
	case "file":
		dir := parsed.Path
		if parsed.Host != "" {
			// file://relative/path parses the first segment as a host
			dir = filepath.Join(parsed.Host, parsed.Path)
		}
		if dir == "" {
			return nil, fmt.Errorf("invalid store URL %q: missing directory", config.Store)
		}
		return newFSStore(ExpandPath(dir)), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q, expected s3:// or file://", parsed.Scheme)
	}
}

// fsStore serves objects out of a plain directory. It exists for local
// development and tests; presigned uploads are not supported.
type fsStore struct {
	dir string
}

func newFSStore(dir string) *fsStore {
	return &fsStore{dir: dir}
}

func (s *fsStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		objects = append(objects, Object{
			Key:        entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *fsStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

func (s *fsStore) Download(ctx context.Context, key, localPath string) error {
	src, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", key, err)
	}
	return dst.Close()
}

// Put is the file store's upload path, presigning being unsupported.
func (s *fsStore) Put(ctx context.Context, key string, r io.Reader) error {
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return f.Close()
}

func (s *fsStore) PresignUpload(ctx context.Context, key string, expiry time.Duration) (*UploadURL, error) {
	return nil, fmt.Errorf("presigned uploads are not supported by the file store")
}
