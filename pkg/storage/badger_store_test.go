package storage

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-crawler/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T, ttl time.Duration) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(ttl, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStore_PutGet(t *testing.T) {
	store := newTestStore(t, time.Minute)

	size, found, err := store.GetSize("https://example.com/a.png")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.SizeUnknown, size)

	require.NoError(t, store.PutSize("https://example.com/a.png", 2_000_000))
	size, found, err = store.GetSize("https://example.com/a.png")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2_000_000), size)
}

func TestBadgerStore_ZeroSizeIsKnown(t *testing.T) {
	store := newTestStore(t, time.Minute)

	require.NoError(t, store.PutSize("https://example.com/empty.gif", 0))
	size, found, err := store.GetSize("https://example.com/empty.gif")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(0), size)
}

func TestBadgerStore_UnknownNotStored(t *testing.T) {
	store := newTestStore(t, time.Minute)

	require.NoError(t, store.PutSize("https://example.com/a.png", models.SizeUnknown))
	_, found, err := store.GetSize("https://example.com/a.png")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBadgerStore_KeysNormalized(t *testing.T) {
	store := newTestStore(t, time.Minute)

	require.NoError(t, store.PutSize("HTTPS://Example.COM:443/a.png#frag", 42))
	size, found, err := store.GetSize("https://example.com/a.png")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), size)

	_, found, err = store.GetSize("https://example.com/a.png?w=1")
	require.NoError(t, err)
	assert.False(t, found, "query distinguishes resources")
}

func TestBadgerStore_TTLExpiry(t *testing.T) {
	store := newTestStore(t, time.Second)

	require.NoError(t, store.PutSize("https://example.com/a.png", 10))
	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Badger TTL has one-second granularity
	time.Sleep(2100 * time.Millisecond)

	_, found, err := store.GetSize("https://example.com/a.png")
	require.NoError(t, err)
	assert.False(t, found)
	n, err = store.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBadgerStore_ConcurrentWrites(t *testing.T) {
	store := newTestStore(t, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.PutSize("https://example.com/same.png", 99))
		}()
	}
	wg.Wait()

	size, found, err := store.GetSize("https://example.com/same.png")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(99), size)
}

func TestBadgerStore_CloseIdempotent(t *testing.T) {
	store, err := NewBadgerStore(time.Minute, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
