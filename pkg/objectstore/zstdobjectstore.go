package objectstore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	. "github.com/weberc2/konixfs/pkg/types"
)

// ZstdObjectStore compresses objects on their way into the wrapped store and
// decompresses them on the way out.
type ZstdObjectStore struct {
	ObjectStore
}

func (os *ZstdObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	var b bytes.Buffer
	w, err := zstd.NewWriter(&b, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("compressing data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return os.ObjectStore.PutObject(bucket, key, bytes.NewReader(b.Bytes()))
}

type zstdReadCloser struct {
	body    io.ReadCloser
	decoder *zstd.Decoder
}

func (zrc *zstdReadCloser) Read(data []byte) (int, error) {
	return zrc.decoder.Read(data)
}

func (zrc *zstdReadCloser) Close() error {
	zrc.decoder.Close()
	return zrc.body.Close()
}

func (os *ZstdObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	body, err := os.ObjectStore.GetObject(bucket, key)
	if err != nil {
		return nil, fmt.Errorf("getting object from storage: %w", err)
	}
	decoder, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	return &zstdReadCloser{body: body, decoder: decoder}, nil
}
