package orphan

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-lfs/common"
)

// Orphans is the in-memory copy of the orphan block: inodes whose last
// name is gone but whose storage has not been reclaimed yet. Slot 0 on
// disk holds the count, slots 1..NORPHAN the inode numbers; a cleared
// entry is 0.
type Orphans struct {
	n    uint64
	inos []uint64
}

func MkOrphans() *Orphans {
	return &Orphans{n: 0, inos: make([]uint64, common.NORPHAN)}
}

func Decode(blk disk.Block) *Orphans {
	dec := marshal.NewDec(blk)
	o := &Orphans{}
	o.n = dec.GetInt()
	o.inos = dec.GetInts(common.NORPHAN)
	if o.n > common.NORPHAN {
		panic(fmt.Sprintf("orphan: bad count %d", o.n))
	}
	return o
}

func (o *Orphans) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(o.n)
	enc.PutInts(o.inos)
	return enc.Finish()
}

func (o *Orphans) Size() uint64 {
	return o.n
}

func (o *Orphans) Full() bool {
	return o.n >= common.NORPHAN
}

// Index returns the inode at position idx, or NULLINUM for a cleared or
// unused position.
func (o *Orphans) Index(idx uint64) common.Inum {
	if idx >= o.n {
		return common.NULLINUM
	}
	return common.Inum(o.inos[idx])
}

func (o *Orphans) Append(inum common.Inum) error {
	if o.Full() {
		return common.ErrNoSpace
	}
	o.inos[o.n] = uint64(inum)
	o.n = o.n + 1
	return nil
}

func (o *Orphans) Clear(idx uint64) {
	if idx >= o.n {
		panic("orphan: clear past end")
	}
	o.inos[idx] = uint64(common.NULLINUM)
}

func (o *Orphans) Reset() {
	o.n = 0
	for i := range o.inos {
		o.inos[i] = 0
	}
}

// Live reports whether any position still names an inode.
func (o *Orphans) Live() bool {
	for i := uint64(0); i < o.n; i++ {
		if o.inos[i] != 0 {
			return true
		}
	}
	return false
}
