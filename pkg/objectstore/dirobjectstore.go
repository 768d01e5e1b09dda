package objectstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	. "github.com/weberc2/konixfs/pkg/types"
)

const InvalidObjectNameErr ConstError = "invalid object name"

// DirObjectStore keeps each bucket as a directory under `Root` and each key
// as a file path within it.
type DirObjectStore struct {
	Root string
}

func (store *DirObjectStore) path(bucket, key string) (string, error) {
	if bucket == "" || strings.Contains(bucket, "/") || bucket == ".." {
		return "", fmt.Errorf("bucket `%s`: %w", bucket, InvalidObjectNameErr)
	}
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("key `%s`: %w", key, InvalidObjectNameErr)
	}
	return filepath.Join(store.Root, bucket, filepath.FromSlash(clean)), nil
}

func (store *DirObjectStore) PutObject(
	bucket string,
	key string,
	data io.ReadSeeker,
) error {
	path, err := store.path(bucket, key)
	if err != nil {
		return fmt.Errorf("putting object: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("putting object `%s/%s`: %w", bucket, key, err)
	}

	// readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return fmt.Errorf("putting object `%s/%s`: %w", bucket, key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("putting object `%s/%s`: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("putting object `%s/%s`: %w", bucket, key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("putting object `%s/%s`: %w", bucket, key, err)
	}
	return nil
}

func (store *DirObjectStore) GetObject(
	bucket string,
	key string,
) (io.ReadCloser, error) {
	path, err := store.path(bucket, key)
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf("getting object `%s/%s`: %w", bucket, key, err)
	}
	return file, nil
}

// ListObjects returns the keys under `prefix` in lexical order.
func (store *DirObjectStore) ListObjects(
	bucket string,
	prefix string,
) ([]string, error) {
	root := filepath.Join(store.Root, bucket)
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(
			"listing objects in bucket `%s` with prefix `%s`: %w",
			bucket,
			prefix,
			err,
		)
	}
	sort.Strings(keys)
	return keys, nil
}

func (store *DirObjectStore) DeleteObject(bucket, key string) error {
	path, err := store.path(bucket, key)
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return fmt.Errorf("deleting object `%s/%s`: %w", bucket, key, err)
	}
	return nil
}
