package super

import (
	"fmt"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-lfs/common"
)

// FsSuper describes where things live on the device. Nothing in it is
// stored on disk; it is recomputed from the device size at mount.
type FsSuper struct {
	Disk         disk.Disk
	Size         uint64
	NBlockBitmap uint64
}

func MkFsSuper(d disk.Disk) *FsSuper {
	sz := d.Size()
	return &FsSuper{
		Disk:         d,
		Size:         sz,
		NBlockBitmap: util.RoundUp(sz, common.NBITBLOCK),
	}
}

func (fs *FsSuper) String() string {
	return fmt.Sprintf("sz %d bbitmap %d orphans %d data %d", fs.Size,
		fs.NBlockBitmap, fs.OrphanBlock(), fs.DataStart())
}

func (fs *FsSuper) MaxBnum() common.Bnum {
	return common.Bnum(fs.Size)
}

func (fs *FsSuper) NInode() common.Inum {
	return common.Inum(common.NINODE)
}

func (fs *FsSuper) BitmapInodeStart() common.Bnum {
	return common.INODEBITMAPBLK
}

func (fs *FsSuper) BitmapBlockStart() common.Bnum {
	return common.BLOCKBITMAPBLK
}

func (fs *FsSuper) OrphanBlock() common.Bnum {
	return fs.BitmapBlockStart() + common.Bnum(fs.NBlockBitmap)
}

// DataStart is the first block handed out by the block allocator.
func (fs *FsSuper) DataStart() common.Bnum {
	return fs.OrphanBlock() + 1
}

func (fs *FsSuper) ReadSuper() *Superblock {
	return Decode(fs.Disk.Read(common.SUPERBLOCK))
}

func (fs *FsSuper) WriteSuper(sb *Superblock) {
	fs.Disk.Write(common.SUPERBLOCK, sb.Encode())
}

// Superblock is block 0. The field order is fixed: block cursor, inode
// cursor, inode map location.
type Superblock struct {
	Balloc common.Bnum
	Ialloc uint64
	Imap   common.Bnum
}

func (sb *Superblock) String() string {
	return fmt.Sprintf("balloc %d ialloc %d imap %d", sb.Balloc, sb.Ialloc, sb.Imap)
}

// A formatted device never has a zero block cursor, since block 0 is the
// superblock itself.
func (sb *Superblock) Formatted() bool {
	return sb.Balloc != 0
}

func (sb *Superblock) Clone() *Superblock {
	c := *sb
	return &c
}

func (sb *Superblock) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(sb.Balloc)
	enc.PutInt(sb.Ialloc)
	enc.PutInt(sb.Imap)
	return enc.Finish()
}

func Decode(blk disk.Block) *Superblock {
	dec := marshal.NewDec(blk)
	sb := &Superblock{}
	sb.Balloc = dec.GetInt()
	sb.Ialloc = dec.GetInt()
	sb.Imap = dec.GetInt()
	return sb
}
