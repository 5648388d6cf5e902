package alloc

import (
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
)

// Bitmap is a persistent bitmap occupying len blocks starting at start.
// Bit n set means number n is in use. Updates go straight to the device.
type Bitmap struct {
	d     disk.Disk
	start common.Bnum
	len   uint64
}

func MkBitmap(d disk.Disk, start common.Bnum, len uint64) *Bitmap {
	return &Bitmap{d: d, start: start, len: len}
}

func (bm *Bitmap) Max() uint64 {
	return bm.len * common.NBITBLOCK
}

func (bm *Bitmap) locate(n uint64) (common.Bnum, uint64, byte) {
	if n >= bm.Max() {
		panic("bitmap: number out of range")
	}
	blkno := bm.start + n/common.NBITBLOCK
	bit := n % common.NBITBLOCK
	return blkno, bit / 8, byte(1 << (bit % 8))
}

func (bm *Bitmap) IsSet(n uint64) bool {
	blkno, off, mask := bm.locate(n)
	blk := bm.d.Read(blkno)
	return blk[off]&mask != 0
}

func (bm *Bitmap) IsFree(n uint64) bool {
	return !bm.IsSet(n)
}

func (bm *Bitmap) write(n uint64, set bool) {
	blkno, off, mask := bm.locate(n)
	blk := bm.d.Read(blkno)
	if set {
		blk[off] = blk[off] | mask
	} else {
		blk[off] = blk[off] & ^mask
	}
	util.DPrintf(10, "bitmap %d: bit %d -> %v\n", bm.start, n, set)
	bm.d.Write(blkno, blk)
}

func (bm *Bitmap) SetBit(n uint64) {
	bm.write(n, true)
}

func (bm *Bitmap) UnsetBit(n uint64) {
	bm.write(n, false)
}

func popCnt(b byte) uint64 {
	var n uint64
	for b != 0 {
		n += uint64(b & 1)
		b = b >> 1
	}
	return n
}

// Count returns the number of set bits.
func (bm *Bitmap) Count() uint64 {
	var n uint64
	for i := uint64(0); i < bm.len; i++ {
		blk := bm.d.Read(bm.start + i)
		for _, b := range blk {
			n += popCnt(b)
		}
	}
	return n
}

// Zero clears the whole bitmap; used by mkfs.
func (bm *Bitmap) Zero() {
	for i := uint64(0); i < bm.len; i++ {
		bm.d.Write(bm.start+i, make(disk.Block, disk.BlockSize))
	}
}
