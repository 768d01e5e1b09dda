package objectstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	. "github.com/weberc2/konixfs/pkg/types"
)

type S3ObjectStore struct {
	Client *s3.S3
}

// NewS3ObjectStore creates a store from the shared AWS configuration. A
// non-empty `endpoint` selects an S3-compatible service, addressed by path.
func NewS3ObjectStore(region, endpoint string) (*S3ObjectStore, error) {
	config := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		config = config.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("creating s3 object store: %w", err)
	}
	return &S3ObjectStore{Client: s3.New(sess)}, nil
}

func (os *S3ObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	if _, err := os.Client.PutObject(&s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   data,
	}); err != nil {
		return fmt.Errorf(
			"putting object in bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}

func (os *S3ObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	rsp, err := os.Client.GetObject(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf(
			"getting object from bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return rsp.Body, nil
}

func (os *S3ObjectStore) ListObjects(bucket, prefix string) ([]string, error) {
	var keys []string
	if err := os.Client.ListObjectsV2Pages(
		&s3.ListObjectsV2Input{
			Bucket: &bucket,
			Prefix: &prefix,
		},
		func(rsp *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, object := range rsp.Contents {
				keys = append(keys, aws.StringValue(object.Key))
			}
			return true
		},
	); err != nil {
		return keys, fmt.Errorf(
			"listing objects in bucket `%s` with prefix `%s`: %w",
			bucket,
			prefix,
			err,
		)
	}
	return keys, nil
}

// DeleteObject removes `key`. S3 doesn't report missing keys on delete, so
// the key's existence is checked first.
func (os *S3ObjectStore) DeleteObject(bucket, key string) error {
	if _, err := os.Client.HeadObject(&s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		if isNoSuchKey(err) {
			return &ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return fmt.Errorf("deleting object `%s/%s`: %w", bucket, key, err)
	}
	if _, err := os.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("deleting object `%s/%s`: %w", bucket, key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	// HEAD responses carry no body, so a missing key shows up as `NotFound`
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}
