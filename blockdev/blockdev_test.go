package blockdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"
)

func block(b byte) disk.Block {
	blk := make(disk.Block, disk.BlockSize)
	blk[0] = b
	return blk
}

func TestFileDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := OpenFileDisk(path, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), d.Size())
	d.Write(3, block(42))
	d.Barrier()
	assert.Equal(t, byte(42), d.Read(3)[0])
	assert.Equal(t, byte(0), d.Read(9)[0])

	_, err = OpenFileDisk(path, 10)
	assert.Error(t, err, "second open must fail on the lock")
	d.Close()

	d, err = OpenFileDisk(path, 0)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, uint64(10), d.Size())
	assert.Equal(t, byte(42), d.Read(3)[0])
}

func TestFileDiskNoSize(t *testing.T) {
	_, err := OpenFileDisk(filepath.Join(t.TempDir(), "empty.img"), 0)
	assert.Error(t, err)
}

func TestAsyncCrash(t *testing.T) {
	assert := assert.New(t)
	d := NewAsyncDisk(4)
	d.Write(0, block(1))
	d.Mark()

	d.Write(1, block(2))
	d.Barrier()
	d.Write(2, block(3))
	d.Write(3, block(4))
	assert.Equal(3, d.Writes())
	assert.Equal(byte(4), d.Read(3)[0])

	img := d.Crash(0)
	assert.Equal(byte(1), img.Read(0)[0])
	assert.Equal(byte(0), img.Read(1)[0])

	img = d.Crash(2)
	assert.Equal(byte(2), img.Read(1)[0])
	assert.Equal(byte(3), img.Read(2)[0])
	assert.Equal(byte(0), img.Read(3)[0])

	img = d.CrashReorder(3, func(w int) bool { return w == 2 })
	assert.Equal(byte(2), img.Read(1)[0], "write before the barrier is durable")
	assert.Equal(byte(0), img.Read(2)[0])
	assert.Equal(byte(4), img.Read(3)[0])
}

func TestAsyncWritten(t *testing.T) {
	d := NewAsyncDisk(4)
	d.Write(0, block(9))
	d.Mark()
	d.Write(0, block(1))
	d.Write(1, block(2))
	d.Barrier()
	d.Write(0, block(3))

	blks := d.Written(0)
	if assert.Len(t, blks, 2) {
		assert.Equal(t, byte(1), blks[0][0])
		assert.Equal(t, byte(3), blks[1][0])
	}
	assert.Len(t, d.Written(1), 1)
	assert.Empty(t, d.Written(2))
}
