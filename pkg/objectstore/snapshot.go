package objectstore

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	. "github.com/weberc2/konixfs/pkg/types"
)

const snapshotSuffix = ".img.zst"

// SnapshotKey names a volume image snapshot: `<slug(label)>/<id>.img.zst`.
func SnapshotKey(label string, id uuid.UUID) string {
	return SnapshotPrefix(label) + id.String() + snapshotSuffix
}

func SnapshotPrefix(label string) string { return slug.Make(label) + "/" }

// Snapshots stores compressed volume images under a label.
type Snapshots struct {
	Store  ObjectStore
	Bucket string
}

func NewSnapshots(store ObjectStore, bucket string) *Snapshots {
	return &Snapshots{Store: &ZstdObjectStore{store}, Bucket: bucket}
}

// Put stores `image` under a fresh id and returns its key.
func (s *Snapshots) Put(label string, image []byte) (string, error) {
	key := SnapshotKey(label, uuid.New())
	if err := s.Store.PutObject(
		s.Bucket,
		key,
		bytes.NewReader(image),
	); err != nil {
		return "", fmt.Errorf("putting snapshot of `%s`: %w", label, err)
	}
	return key, nil
}

func (s *Snapshots) Get(key string) ([]byte, error) {
	body, err := s.Store.GetObject(s.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("getting snapshot `%s`: %w", key, err)
	}
	defer body.Close()
	image, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot `%s`: %w", key, err)
	}
	return image, nil
}

// List returns the keys of the snapshots taken under `label`.
func (s *Snapshots) List(label string) ([]string, error) {
	keys, err := s.Store.ListObjects(s.Bucket, SnapshotPrefix(label))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots of `%s`: %w", label, err)
	}
	out := keys[:0]
	for _, key := range keys {
		if strings.HasSuffix(key, snapshotSuffix) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *Snapshots) Delete(key string) error {
	if err := s.Store.DeleteObject(s.Bucket, key); err != nil {
		return fmt.Errorf("deleting snapshot `%s`: %w", key, err)
	}
	return nil
}
