package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/fs"
)

func mkFs(t *testing.T) *fs.Fs {
	fsys, err := fs.MkFs(disk.NewMemDisk(1000), fs.DefaultOpts())
	require.NoError(t, err)
	return fsys
}

func TestIncoherentCache(t *testing.T) {
	fsys := mkFs(t)
	c1 := NewClient(fsys, CacheIncoherent)
	c2 := NewClient(fsys, CacheIncoherent)
	assert.NotEqual(t, c1.ID, c2.ID)

	inum, err := c1.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	_, ok := c1.Cached(common.ROOTINUM, "a")
	assert.False(t, ok, "mknod does not populate")

	got, err := c1.Lookup(common.ROOTINUM, "a")
	require.NoError(t, err)
	assert.Equal(t, inum, got)

	require.NoError(t, c2.Unlink(common.ROOTINUM, "a"))
	_, err = c2.Lookup(common.ROOTINUM, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err = c1.Lookup(common.ROOTINUM, "a")
	assert.NoError(t, err, "stale entry is still served")
	assert.Equal(t, inum, got)
}

func TestIncoherentOwnUnlink(t *testing.T) {
	fsys := mkFs(t)
	c := NewClient(fsys, CacheIncoherent)
	inum, err := c.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	_, err = c.Lookup(common.ROOTINUM, "a")
	require.NoError(t, err)
	require.NoError(t, c.Unlink(common.ROOTINUM, "a"))
	got, err := c.Lookup(common.ROOTINUM, "a")
	assert.NoError(t, err)
	assert.Equal(t, inum, got)
}

func TestOwnWrites(t *testing.T) {
	fsys := mkFs(t)
	c := NewClient(fsys, CacheOwnWrites)
	inum, err := c.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	cached, ok := c.Cached(common.ROOTINUM, "a")
	assert.True(t, ok)
	assert.Equal(t, inum, cached)

	require.NoError(t, c.Rename(common.ROOTINUM, "a", common.ROOTINUM, "b"))
	_, err = c.Lookup(common.ROOTINUM, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	got, err := c.Lookup(common.ROOTINUM, "b")
	require.NoError(t, err)
	assert.Equal(t, inum, got)

	require.NoError(t, c.Unlink(common.ROOTINUM, "b"))
	_, err = c.Lookup(common.ROOTINUM, "b")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCacheNone(t *testing.T) {
	fsys := mkFs(t)
	c1 := NewClient(fsys, CacheNone)
	c2 := NewClient(fsys, CacheNone)
	_, err := c1.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	_, err = c1.Lookup(common.ROOTINUM, "a")
	require.NoError(t, err)
	_, ok := c1.Cached(common.ROOTINUM, "a")
	assert.False(t, ok)
	require.NoError(t, c2.Unlink(common.ROOTINUM, "a"))
	_, err = c1.Lookup(common.ROOTINUM, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNoNegativeCaching(t *testing.T) {
	fsys := mkFs(t)
	c1 := NewClient(fsys, CacheIncoherent)
	c2 := NewClient(fsys, CacheIncoherent)
	_, err := c1.Lookup(common.ROOTINUM, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
	inum, err := c2.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	got, err := c1.Lookup(common.ROOTINUM, "a")
	assert.NoError(t, err)
	assert.Equal(t, inum, got)
}

func TestParseCachePolicy(t *testing.T) {
	for _, p := range []CachePolicy{CacheIncoherent, CacheNone, CacheOwnWrites} {
		got, err := ParseCachePolicy(p.String())
		assert.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseCachePolicy("coherent")
	assert.ErrorIs(t, err, common.ErrInval)
}

func TestDfsRoutesToBoth(t *testing.T) {
	d := NewDfs(mkFs(t), 2, CacheIncoherent, 1)
	inum, err := d.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := d.Lookup(common.ROOTINUM, "a")
		require.NoError(t, err)
		assert.Equal(t, inum, got)
	}
	for _, c := range d.Clients() {
		assert.Greater(t, c.Requests(), uint64(0), "%v never picked", c)
	}
}

func TestDfsStaleAnswers(t *testing.T) {
	d := NewDfs(mkFs(t), 2, CacheIncoherent, 7)
	_, err := d.Mknod(common.ROOTINUM, "a", 0644, 1)
	require.NoError(t, err)
	for _, c := range d.Clients() {
		_, err := c.Lookup(common.ROOTINUM, "a")
		require.NoError(t, err)
	}
	require.NoError(t, d.Unlink(common.ROOTINUM, "a"))
	for i := 0; i < 20; i++ {
		_, err := d.Lookup(common.ROOTINUM, "a")
		assert.NoError(t, err, "both caches hold the old entry")
	}
	_, err = d.Fs().Lookup(common.ROOTINUM, "a")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDfsSerializes(t *testing.T) {
	d := NewDfs(mkFs(t), 2, CacheNone, 3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			_, err := d.Mknod(common.ROOTINUM, name, 0644, 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	ents, err := d.Readdir(common.ROOTINUM)
	require.NoError(t, err)
	assert.Len(t, ents, 8)
}
