package processedcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/radar"
)

// fakeStore is a minimal in-memory objectstore.Store, used to test the
// remote tier of the tiercache composition without a real backend.
type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotExist
	}
	return data, nil
}

func (f *fakeStore) Head(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func testFrame(ts string) *radar.Frame {
	return &radar.Frame{
		Data: []float32{1, 2, 3, 4},
		Dims: radar.Dimensions{Height: 2, Width: 2},
		Bounds: radar.Bounds{West: 10, East: 11, South: 50, North: 51},
		Metadata: radar.Metadata{
			Product:  "reflectivity",
			Source:   "dwd",
			Quantity: "DBZH",
			Units:    "dBZ",
		},
		Timestamp: radar.Timestamp(ts),
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	got, err := NormalizeTimestamp("20260731143000")
	require.NoError(t, err)
	assert.Equal(t, "202607311430", got)

	got2, err := NormalizeTimestamp("202607311430")
	require.NoError(t, err)
	assert.Equal(t, "202607311430", got2)

	_, err = NormalizeTimestamp("not-a-timestamp")
	assert.Error(t, err)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	frame := testFrame("20260731143000")
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", frame, false))

	got, ok, err := c.Get(ctx, "dwd", "202607311430", "reflectivity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, frame.Data, got.Data)
	assert.Equal(t, frame.Dims, got.Dims)
}

func TestGetMissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	_, ok, err := c.Get(context.Background(), "dwd", "202607311430", "reflectivity")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	frame := testFrame("20260731143000")
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", frame, false))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "dwd", "202607311430", "reflectivity")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutWithoutForceNoOpsOnExistingEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	frame1 := testFrame("20260731143000")
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", frame1, false))

	frame2 := testFrame("20260731143000")
	frame2.Data = []float32{9, 9, 9, 9}
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", frame2, false))

	got, ok, err := c.Get(ctx, "dwd", "202607311430", "reflectivity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, frame1.Data, got.Data)
}

func TestListTimestampsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731140000"), false))
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731143000"), false))
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731141500"), false))

	ts, err := c.ListTimestamps(ctx, "dwd", "reflectivity")
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, []string{"202607311430", "202607311415", "202607311400"}, ts)
}

func TestCleanupExpiredRemovesOldEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731143000"), false))
	time.Sleep(5 * time.Millisecond)

	n, err := c.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ts, err := c.ListTimestamps(ctx, "dwd", "reflectivity")
	require.NoError(t, err)
	assert.Empty(t, ts)
}

func TestClearRemovesAllEntriesForSource(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731143000"), false))
	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731141500"), false))

	n, err := c.Clear(ctx, "dwd")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ts, err := c.ListTimestamps(ctx, "dwd", "reflectivity")
	require.NoError(t, err)
	assert.Empty(t, ts)
}

// TestPutWritesThroughTheSharedTiercacheLayout confirms Put composes
// tiercache.Cache[*Entry] rather than hand-rolling its own local
// layout: a single flat "{key}.rfentry" file, not a per-source
// subdirectory with separate .npz/.json files.
func TestPutWritesThroughTheSharedTiercacheLayout(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "dwd", "reflectivity", testFrame("20260731143000"), false))

	want := filepath.Join(dir, "dwd_reflectivity_202607311430"+entryExt)
	_, statErr := os.Stat(want)
	assert.NoError(t, statErr, "expected tiercache-style flat entry file at %s", want)
}

// TestGetFallsBackToRemoteTier covers the remote tier of the shared
// composition: a local-only cache wiped of its disk tier still serves
// an entry that was published to object store by Put.
func TestGetFallsBackToRemoteTier(t *testing.T) {
	remote := newFakeStore()
	dir := t.TempDir()
	ctx := context.Background()

	writer, err := New(dir, remote, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, writer.Put(ctx, "dwd", "reflectivity", testFrame("20260731143000"), false))

	reader, err := New(t.TempDir(), remote, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	got, ok, err := reader.Get(ctx, "dwd", "202607311430", "reflectivity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3, 4}, got.Data)
}
