package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/newthinker/swingsim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	listErr      error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	s, err := NewS3(S3Config{Bucket: "b", Endpoint: "http://localhost:9000", Prefix: "/swingsim/"})
	require.NoError(t, err)
	assert.Equal(t, "swingsim", s.prefix)
}

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.txt", "file.txt"},
		{"archive", "file.txt", "archive/file.txt"},
		{"archive/", "/file.txt", "archive/file.txt"},
	}

	for _, tt := range tests {
		s := newS3WithClient(nil, "b", tt.prefix)
		assert.Equal(t, tt.want, s.key(tt.path), "prefix %q path %q", tt.prefix, tt.path)
	}
}

func TestS3Storage_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	s := newS3WithClient(fake, "bucket", "swingsim")
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "runs/VRT/r1/report.json", []byte(`{"ok":true}`)))
	assert.Contains(t, fake.objects, "swingsim/runs/VRT/r1/report.json")
	assert.Equal(t, "application/json", fake.contentTypes["swingsim/runs/VRT/r1/report.json"])

	got, err := s.Read(ctx, "runs/VRT/r1/report.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	exists, err := s.Exists(ctx, "runs/VRT/r1/report.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "runs/VRT/r1/report.json"))
	exists, err = s.Exists(ctx, "runs/VRT/r1/report.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Read(ctx, "runs/VRT/r1/report.json")
	assert.ErrorIs(t, err, core.ErrLookupFailure)
}

func TestS3Storage_ListStripsPrefixAndSorts(t *testing.T) {
	fake := newFakeS3()
	s := newS3WithClient(fake, "bucket", "swingsim")
	ctx := context.Background()

	for _, p := range []string{"runs/VRT/a.txt", "runs/VRT/b.txt", "runs/NVDA/c.txt"} {
		require.NoError(t, s.Write(ctx, p, []byte("x")))
	}

	paths, err := s.List(ctx, "runs/VRT")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/VRT/a.txt", "runs/VRT/b.txt"}, paths)

	fake.listErr = errors.New("boom")
	_, err = s.List(ctx, "runs")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/trades.csv"))
	assert.Equal(t, "application/yaml", contentType("a/report.yaml"))
	assert.Equal(t, "text/plain; charset=utf-8", contentType("summary.txt"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
