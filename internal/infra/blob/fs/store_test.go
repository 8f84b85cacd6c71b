package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmgraph/internal/blob/core"
)

func TestStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, st.Driver())
	assert.Equal(t, root, st.Root())

	ctx := context.Background()
	meta := map[string]string{"facts": "4"}
	info, err := st.Put(ctx, "exports/facts.jsonl", strings.NewReader("line\n"), core.PutOptions{ContentType: "application/x-ndjson", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Len(t, info.ETag, 64)
	meta["facts"] = "mutated"
	assert.Equal(t, "4", info.Metadata["facts"])

	_, err = os.Stat(filepath.Join(root, "exports", "facts.jsonl"))
	require.NoError(t, err)

	got, rc, err := st.Get(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(body))
	assert.Equal(t, info.ETag, got.ETag)
	assert.Equal(t, "application/x-ndjson", got.ContentType)

	head, err := st.Head(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	assert.Equal(t, info.Size, head.Size)

	_, err = st.Put(ctx, "exports/facts.jsonl", strings.NewReader("again"), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	deleted, err := st.Delete(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = st.Delete(ctx, "exports/facts.jsonl")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = st.Head(ctx, "exports/facts.jsonl")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = st.Get(ctx, "exports/facts.jsonl")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for _, key := range []string{"", " ", "/abs", "..", "a/../b"} {
		_, err := st.Put(ctx, key, strings.NewReader("x"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
}

func TestStoreListOrdersByKey(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for _, key := range []string{"exports/b", "exports/a", "other/c"} {
		_, err := st.Put(ctx, key, strings.NewReader(key), core.PutOptions{})
		require.NoError(t, err)
	}

	all, err := st.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	exports, err := st.List(ctx, "exports/")
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "exports/a", exports[0].Key)
	assert.Equal(t, "exports/b", exports[1].Key)
}

func TestStoreListReportsCorruptSidecar(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.meta"), []byte("not-json"), 0o600))

	_, err = st.List(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode sidecar")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStorePutPropagatesReadError(t *testing.T) {
	st, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = st.Put(context.Background(), "k", failingReader{}, core.PutOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	_, err = st.Head(context.Background(), "k")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNewDefaultsRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	st, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRoot, st.Root())
}
