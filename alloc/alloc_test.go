package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
)

func TestPopCnt(t *testing.T) {
	assert.Equal(t, uint64(0), popCnt(0))
	assert.Equal(t, uint64(1), popCnt(1))
	assert.Equal(t, uint64(1), popCnt(2))
	assert.Equal(t, uint64(2), popCnt(3))
	assert.Equal(t, uint64(8), popCnt(255))
}

func TestCursor(t *testing.T) {
	assert := assert.New(t)
	next := uint64(2)
	c := MkCursor(&next, 4)

	n, err := c.AllocNum()
	assert.NoError(err)
	assert.Equal(uint64(2), n)
	n, err = c.AllocNum()
	assert.NoError(err)
	assert.Equal(uint64(3), n)
	assert.Equal(uint64(4), next, "cursor advances in place")

	_, err = c.AllocNum()
	assert.ErrorIs(err, common.ErrNoSpace, "must not wrap")
	assert.Equal(uint64(4), next, "failed allocation leaves the cursor alone")
}

func TestBitmap(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(10)
	bm := MkBitmap(d, 2, 2)

	assert.Equal(2*common.NBITBLOCK, bm.Max())
	assert.True(bm.IsFree(5))
	bm.SetBit(5)
	bm.SetBit(common.NBITBLOCK + 1)
	assert.True(bm.IsSet(5))
	assert.False(bm.IsSet(4), "neighbouring bit untouched")
	assert.True(bm.IsSet(common.NBITBLOCK+1), "second bitmap block")
	assert.Equal(uint64(2), bm.Count())

	bm.UnsetBit(5)
	assert.True(bm.IsFree(5))
	assert.Equal(uint64(1), bm.Count())

	bm.Zero()
	assert.Equal(uint64(0), bm.Count())
	assert.Panics(func() { bm.IsSet(bm.Max()) })
}
