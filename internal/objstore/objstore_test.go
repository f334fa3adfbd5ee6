package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func readAll(t *testing.T, s Store, key string) string {
	t.Helper()
	rc, err := s.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open(%s): %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(b)
}

// exercise runs the same contract checks against any Store.
func exercise(t *testing.T, s Store) {
	ctx := context.Background()
	for k, v := range map[string]string{
		"sales/a.csv":           "A",
		"sales/b.csv":           "B",
		"sales_archive/x.csv":   "X",
		"products.csv":          "P",
		"fact/y=1/part.parquet": "F",
	} {
		if err := s.Put(ctx, k, []byte(v)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	got, err := s.List(ctx, "sales")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"sales/a.csv", "sales/b.csv"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List(sales) = %v, want %v", got, want)
	}

	got, err = s.List(ctx, "products.csv")
	if err != nil || !reflect.DeepEqual(got, []string{"products.csv"}) {
		t.Fatalf("List(products.csv) = %v, %v", got, err)
	}

	got, err = s.List(ctx, "missing")
	if err != nil || len(got) != 0 {
		t.Fatalf("List(missing) = %v, %v; want empty", got, err)
	}

	if got := readAll(t, s, "sales/b.csv"); got != "B" {
		t.Fatalf("Open(sales/b.csv) = %q", got)
	}
	if _, err := s.Open(ctx, "nope.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open(missing) err = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, "sales/a.csv", []byte("A2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := readAll(t, s, "sales/a.csv"); got != "A2" {
		t.Fatalf("after overwrite = %q", got)
	}

	if err := s.DeletePrefix(ctx, "fact"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if got, _ := s.List(ctx, "fact"); len(got) != 0 {
		t.Fatalf("after delete List(fact) = %v", got)
	}
	if err := s.DeletePrefix(ctx, ""); err == nil {
		t.Fatal("DeletePrefix(\"\") should refuse")
	}
}

func TestLocal_Contract(t *testing.T) {
	t.Parallel()
	exercise(t, NewLocal(t.TempDir()))
}

func TestLocal_OpenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal(t.TempDir()).Open(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLocal_PutLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewLocal(dir)
	if err := s.Put(context.Background(), "a/b.txt", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "b.txt" {
		t.Fatalf("entries = %v, want only b.txt", entries)
	}
}

// fakeS3 is an in-memory s3API. It pages ListObjectsV2 two keys at a time
// so the paginator path is exercised.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	for _, o := range in.Delete.Objects {
		delete(f.objects, aws.ToString(o.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3_Contract(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	s := newS3(fake, "bucket", "raw/")
	exercise(t, s)

	if _, ok := fake.objects["raw/sales/a.csv"]; !ok {
		t.Fatalf("keys not stored under base prefix: %v", fake.objects)
	}
	if s.String() != "s3://bucket/raw" {
		t.Fatalf("String() = %q", s.String())
	}
}

func TestParseS3(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in             string
		bucket, prefix string
		wantErr        bool
	}{
		{in: "s3://b", bucket: "b"},
		{in: "s3://b/raw/sales/", bucket: "b", prefix: "raw/sales"},
		{in: "s3:///x", wantErr: true},
		{in: "/tmp/data", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			b, p, err := ParseS3(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if b != tc.bucket || p != tc.prefix {
				t.Fatalf("got (%q,%q), want (%q,%q)", b, p, tc.bucket, tc.prefix)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	in := []string{"s/a.csv", "s/B.CSV", "s/_SUCCESS", "s/.x.csv", "s/c.json"}
	got := Filter(in, ".csv")
	if want := []string{"s/a.csv", "s/B.CSV"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter = %v, want %v", got, want)
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	if got := Join("", "/a/", "b", ""); got != "a/b" {
		t.Fatalf("Join = %q, want a/b", got)
	}
}
