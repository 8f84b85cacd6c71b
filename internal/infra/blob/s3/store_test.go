package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmgraph/internal/blob/core"
)

// fakeBucket answers the subset of the S3 REST API the store uses.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	failPut bool
}

type fakeObject struct {
	body        []byte
	contentType string
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: make(map[string]fakeObject)} }

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, nil, objectHeaders(obj)), nil
	case http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, obj.body, objectHeaders(obj)), nil
	case http.MethodPut:
		if f.failPut {
			return respond(http.StatusForbidden, []byte("<Error><Code>AccessDenied</Code><Message>denied</Message></Error>"), http.Header{"Content-Type": {"application/xml"}}), nil
		}
		body, _ := io.ReadAll(req.Body)
		if decoded, ok := decodeChunked(body); ok {
			body = decoded
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeBucket) list(prefix string) *http.Response {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func objectHeaders(obj fakeObject) http.Header {
	return http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Content-Type":   {obj.contentType},
		"Etag":           {`"etag123"`},
		"Last-Modified":  {time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
	}
}

func respond(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader(body)),
		Header:        header,
		ContentLength: int64(len(body)),
	}
}

// decodeChunked unwraps a single chunk aws-chunked payload.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n || parts[2] != "0" {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeStore(t *testing.T, bucket *fakeBucket) *Store {
	t.Helper()
	st, err := New(context.Background(), Config{
		Bucket:          "farm-exports",
		Endpoint:        "https://fake.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: bucket},
	})
	require.NoError(t, err)
	return st
}

func TestStoreRoundTrip(t *testing.T) {
	st := newFakeStore(t, newFakeBucket())
	ctx := context.Background()
	assert.Equal(t, core.DriverS3, st.Driver())
	assert.Equal(t, "farm-exports", st.Bucket())

	info, err := st.Put(ctx, "exports/facts.jsonl", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "exports/facts.jsonl", info.Key)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, "etag123", info.ETag)

	_, err = st.Put(ctx, "exports/facts.jsonl", bytes.NewReader([]byte("again")), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	_, rc, err := st.Get(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	list, err := st.List(ctx, "exports/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "exports/facts.jsonl", list[0].Key)

	empty, err := st.List(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, empty)

	deleted, err := st.Delete(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = st.Delete(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStoreMissingKeys(t *testing.T) {
	st := newFakeStore(t, newFakeBucket())
	ctx := context.Background()

	_, err := st.Head(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = st.Get(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStorePutErrors(t *testing.T) {
	bucket := newFakeBucket()
	bucket.failPut = true
	st := newFakeStore(t, bucket)
	ctx := context.Background()

	_, err := st.Put(ctx, "/abs", strings.NewReader("x"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidKey)

	_, err = st.Put(ctx, "denied", bytes.NewReader([]byte("x")), core.PutOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object denied")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.EqualError(t, err, "s3 bucket required")
}

func TestDecodeChunked(t *testing.T) {
	_, ok := decodeChunked([]byte("plain"))
	assert.False(t, ok)
	_, ok = decodeChunked([]byte("5\r\nabc\r\n0\r\n"))
	assert.False(t, ok)
	got, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))
}
