package timed_disk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"
)

func TestCounts(t *testing.T) {
	d := New(disk.NewMemDisk(4))
	b := make(disk.Block, disk.BlockSize)
	b[0] = 7
	d.Write(1, b)
	d.Barrier()
	assert.Equal(t, byte(7), d.Read(1)[0])

	r, w, f := d.Counts()
	assert.Equal(t, uint32(1), r)
	assert.Equal(t, uint32(1), w)
	assert.Equal(t, uint32(1), f)

	rb, wb := d.Bytes()
	assert.Equal(t, disk.BlockSize, rb)
	assert.Equal(t, disk.BlockSize, wb)

	buf := new(bytes.Buffer)
	d.WriteStats(buf)
	assert.Contains(t, buf.String(), "disk.Write")

	d.ResetStats()
	r, _, _ = d.Counts()
	assert.Equal(t, uint32(0), r)
}
