package mediastore

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, *FileSink) {
	t.Helper()
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	catalog, err := OpenCatalog(":memory:", sink)
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	return catalog, sink
}

func TestCatalog_SaveGet(t *testing.T) {
	ctx := context.Background()
	catalog, _ := newTestCatalog(t)

	entry, err := catalog.Save(ctx, Request{DisplayName: "a", MIMEType: "image/jpeg", RelativePath: ImageCollection}, strings.NewReader("abc"))
	require.NoError(t, err)

	got, err := catalog.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.URI, got.URI)
	assert.Equal(t, entry.Size, got.Size)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))

	rc, err := catalog.Open(ctx, got)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestCatalog_GetMissing(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	_, err := catalog.Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestCatalog_List(t *testing.T) {
	ctx := context.Background()
	catalog, _ := newTestCatalog(t)

	_, err := catalog.Save(ctx, Request{DisplayName: "p1", MIMEType: "image/jpeg", RelativePath: ImageCollection}, strings.NewReader("1"))
	require.NoError(t, err)
	_, err = catalog.Save(ctx, Request{DisplayName: "v1", MIMEType: MIMEVideoMP4, RelativePath: VideoCollection}, strings.NewReader("2"))
	require.NoError(t, err)
	_, err = catalog.Save(ctx, Request{DisplayName: "p2", MIMEType: "image/png", RelativePath: ImageCollection}, strings.NewReader("3"))
	require.NoError(t, err)

	all, err := catalog.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	photos, err := catalog.List(ctx, "image/")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	for _, p := range photos {
		assert.True(t, strings.HasPrefix(p.MIMEType, "image/"))
	}

	videos, err := catalog.List(ctx, "video/")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "v1", videos[0].DisplayName)

	none, err := catalog.List(ctx, "image/%")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCatalog_SinkErrorNotRecorded(t *testing.T) {
	ctx := context.Background()
	catalog, _ := newTestCatalog(t)

	_, err := catalog.Save(ctx, Request{DisplayName: "bad", MIMEType: "text/plain"}, strings.NewReader("x"))
	require.Error(t, err)

	all, err := catalog.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCatalog_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	dsn := filepath.Join(t.TempDir(), "db", "catalog.db")

	catalog, err := OpenCatalog(dsn, sink)
	require.NoError(t, err)
	entry, err := catalog.Save(ctx, Request{DisplayName: "a", MIMEType: "image/jpeg"}, strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, catalog.Close())

	reopened, err := OpenCatalog(dsn, sink)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.DisplayName)
}

func TestOpenCatalog_NilSink(t *testing.T) {
	_, err := OpenCatalog(":memory:", nil)
	assert.Error(t, err)
}
