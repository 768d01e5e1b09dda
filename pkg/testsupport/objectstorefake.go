package testsupport

import (
	"bytes"
	"io"
	"sort"
	"strings"

	. "github.com/weberc2/konixfs/pkg/types"
)

// ObjectStoreFake keeps objects in memory, keyed by bucket and key.
type ObjectStoreFake map[[2]string][]byte

func (osf ObjectStoreFake) PutObject(
	bucket string,
	key string,
	data io.ReadSeeker,
) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	osf[[2]string{bucket, key}] = b
	return nil
}

func (osf ObjectStoreFake) GetObject(
	bucket string,
	key string,
) (io.ReadCloser, error) {
	data, found := osf[[2]string{bucket, key}]
	if !found {
		return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListObjects returns the matching keys in lexical order.
func (osf ObjectStoreFake) ListObjects(
	bucket string,
	prefix string,
) ([]string, error) {
	var out []string
	for k := range osf {
		if k[0] == bucket && strings.HasPrefix(k[1], prefix) {
			out = append(out, k[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (osf ObjectStoreFake) DeleteObject(bucket, key string) error {
	k := [2]string{bucket, key}
	if _, found := osf[k]; !found {
		return &ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	delete(osf, k)
	return nil
}
