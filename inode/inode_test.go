package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
)

func TestEncodeDecode(t *testing.T) {
	assert := assert.New(t)
	ip := MkInode(3, 0644, 100, common.ROOTINUM)
	ip.Resize(5000)
	ip.SetBlk(0, 17)
	ip.SetBlk(1, 18)

	blk := ip.Encode()
	assert.Equal(disk.BlockSize, uint64(len(blk)))
	assert.Equal(byte(100), blk[0], "mtime is word 0")
	assert.Equal(byte(0644&0xff), blk[8], "mode is word 1")

	d := Decode(blk, 3)
	assert.Equal(ip.Attr, d.Attr)
	assert.Equal(uint64(2), d.Blocks)
	assert.Equal(common.Bnum(17), d.Blk(0))
	assert.Equal(common.Bnum(18), d.Blk(1))
	assert.Equal(common.NULLBNUM, d.Blk(2))
}

func TestNewInodeLinks(t *testing.T) {
	ip := MkInode(2, S_IFDIR|0755, 1, common.ROOTINUM)
	assert.Equal(t, uint64(2), ip.Nlink, "name plus self")
	assert.True(t, ip.IsDir())
	assert.False(t, MkInode(2, 0644, 1, common.ROOTINUM).IsDir())
}

func TestClone(t *testing.T) {
	ip := MkInode(2, 0644, 1, common.ROOTINUM)
	c := ip.Clone()
	c.SetBlk(0, 99)
	c.Nlink = 1
	assert.Equal(t, common.NULLBNUM, ip.Blk(0))
	assert.Equal(t, uint64(2), ip.Nlink)
}

func TestBlkRange(t *testing.T) {
	ip := MkInode(2, 0644, 1, common.ROOTINUM)
	assert.Panics(t, func() { ip.Blk(NBLKPTR) })
}
