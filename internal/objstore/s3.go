package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"salesetl/internal/config"
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 is a Store rooted at s3://bucket/prefix.
type S3 struct {
	client s3API
	bucket string
	base   string
}

// ParseS3 splits "s3://bucket/some/prefix" into bucket and prefix.
func ParseS3(location string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %q", location)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 location %q has no bucket", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// NewS3 builds an S3 store from the default AWS credential chain, optionally
// pinned to a shared-config profile and region.
func NewS3(ctx context.Context, location string, cfg config.AWS) (*S3, error) {
	bucket, base, err := ParseS3(location)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3(client, bucket, base), nil
}

func newS3(client s3API, bucket, base string) *S3 {
	return &S3{client: client, bucket: bucket, base: strings.Trim(base, "/")}
}

func (s *S3) String() string {
	if s.base == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.base
}

func (s *S3) fullKey(key string) string { return Join(s.base, key) }

func (s *S3) relKey(full string) string {
	if s.base == "" {
		return full
	}
	return strings.TrimPrefix(full, s.base+"/")
}

// List pages through ListObjectsV2. Only exact matches and keys below
// prefix+"/" are returned, so "sales" does not match "sales_archive/x.csv".
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.fullKey(prefix)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects under s3://%s/%s: %w", s.bucket, full, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if full != "" && k != full && !strings.HasPrefix(k, full+"/") {
				continue
			}
			if strings.HasSuffix(k, "/") {
				continue
			}
			keys = append(keys, s.relKey(k))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Open returns the object body. The caller closes it.
func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full := s.fullKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, full, ErrNotFound)
		}
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, full, err)
	}
	return out.Body, nil
}

// Put uploads data in a single PutObject call.
func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	full := s.fullKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading to s3://%s/%s: %w", s.bucket, full, err)
	}
	return nil
}

// DeletePrefix deletes every object List(prefix) returns, one DeleteObjects
// call per 1000 keys.
func (s *S3) DeletePrefix(ctx context.Context, prefix string) error {
	if Join(prefix) == "" {
		return errors.New("delete: refusing to delete store root")
	}
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	const batch = 1000
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		objects := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(s.fullKey(k))})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting objects under s3://%s/%s: %w", s.bucket, s.fullKey(prefix), err)
		}
	}
	return nil
}
