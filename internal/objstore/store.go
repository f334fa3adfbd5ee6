// Package objstore abstracts the locations the job reads raw files from and
// writes outputs to: a local directory or an S3 bucket prefix.
//
// Keys are slash-separated and relative to the store root, e.g.
// "sales/2024-01.csv" or "fact_sales/order_year=2024/order_month=1/part-00000.parquet".
package objstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"salesetl/internal/config"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a flat key space of byte objects.
type Store interface {
	// List returns the keys under prefix in lexical order. A prefix that
	// names a single object lists just that object. A prefix with no
	// objects yields an empty list and no error.
	List(ctx context.Context, prefix string) ([]string, error)

	// Open returns a reader for key. Missing keys yield ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes data under key, replacing any previous object.
	Put(ctx context.Context, key string, data []byte) error

	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// String describes the store root for logs, e.g. "s3://bucket/raw".
	String() string
}

// Source is anything that yields one stream of raw bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Object binds a Store and a key into a Source.
type Object struct {
	Store Store
	Key   string
}

// Open implements Source.
func (o Object) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.Store.Open(ctx, o.Key)
}

func (o Object) String() string { return o.Store.String() + "/" + o.Key }

// Open returns the Store for location: "s3://bucket/prefix" selects S3 and
// anything else is treated as a local directory.
func Open(ctx context.Context, location string, aws config.AWS) (Store, error) {
	if IsS3(location) {
		return NewS3(ctx, location, aws)
	}
	return NewLocal(location), nil
}

// IsS3 reports whether location is an s3:// URL.
func IsS3(location string) bool { return strings.HasPrefix(location, "s3://") }

// Join joins key elements with slashes, dropping empty ones.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return path.Join(parts...)
}

// Filter keeps the keys with the given extension (case-insensitive), e.g.
// ".csv". Hidden objects ("_SUCCESS", ".tmp") are skipped.
func Filter(keys []string, ext string) []string {
	var out []string
	for _, k := range keys {
		base := path.Base(k)
		if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
			continue
		}
		if strings.EqualFold(path.Ext(base), ext) {
			out = append(out, k)
		}
	}
	return out
}
