package imap

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-lfs/common"
)

// Imap maps inode numbers to the block currently holding the inode. A
// committed map is never modified; transactions work on a Clone and
// commit writes the clone to a fresh block.
type Imap struct {
	blks []common.Bnum
}

func MkImap() *Imap {
	return &Imap{blks: make([]common.Bnum, common.NINODE)}
}

func Decode(blk disk.Block) *Imap {
	dec := marshal.NewDec(blk)
	return &Imap{blks: dec.GetInts(common.NINODE)}
}

func (m *Imap) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInts(m.blks)
	return enc.Finish()
}

func (m *Imap) Clone() *Imap {
	blks := make([]common.Bnum, len(m.blks))
	copy(blks, m.blks)
	return &Imap{blks: blks}
}

func checkInum(inum common.Inum) {
	if uint64(inum) >= common.NINODE {
		panic("imap: inum out of range")
	}
}

func (m *Imap) Get(inum common.Inum) common.Bnum {
	checkInum(inum)
	return m.blks[inum]
}

func (m *Imap) Set(inum common.Inum, bn common.Bnum) {
	checkInum(inum)
	m.blks[inum] = bn
}

func (m *Imap) Unmap(inum common.Inum) {
	m.Set(inum, common.NULLBNUM)
}

// Mapped calls f for every inode with a location, in inode order.
func (m *Imap) Mapped(f func(inum common.Inum, bn common.Bnum)) {
	for i, bn := range m.blks {
		if bn != common.NULLBNUM {
			f(common.Inum(i), bn)
		}
	}
}
