package inode

import (
	"fmt"

	"github.com/tchajed/goose/machine"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-lfs/common"
)

const (
	// mtime, mode, nlink, size+blocks, parent
	HDRSZ uint64 = 5 * common.WORDSZ
	DATASZ       = disk.BlockSize - HDRSZ

	// A regular file's data area is an array of block pointers.
	NBLKPTR = DATASZ / common.WORDSZ

	S_IFDIR uint64 = unix.S_IFDIR
)

// Attr is the fixed set of attributes stored in every inode.
type Attr struct {
	Mode   uint64
	Mtime  uint64
	Nlink  uint64
	Size   uint64 // bytes
	Blocks uint64
	Parent common.Inum
}

func (a Attr) IsDir() bool {
	return a.Mode&S_IFDIR != 0
}

// Inode is one block: a header of attributes and a data area holding
// either dentry slots (directories) or block pointers (regular files).
type Inode struct {
	Inum common.Inum
	Attr
	Data []byte
}

func MkInode(inum common.Inum, mode uint64, mtime uint64, parent common.Inum) *Inode {
	return &Inode{
		Inum: inum,
		Attr: Attr{
			Mode:   mode,
			Mtime:  mtime,
			Nlink:  2,
			Parent: parent,
		},
		Data: make([]byte, DATASZ),
	}
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d m %o n %d sz %d/%d p %d", ip.Inum, ip.Mode,
		ip.Nlink, ip.Size, ip.Blocks, ip.Parent)
}

func (ip *Inode) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(ip.Mtime)
	enc.PutInt(ip.Mode)
	enc.PutInt(ip.Nlink)
	enc.PutInt32(uint32(ip.Size))
	enc.PutInt32(uint32(ip.Blocks))
	enc.PutInt(uint64(ip.Parent))
	enc.PutBytes(ip.Data)
	return enc.Finish()
}

func Decode(blk disk.Block, inum common.Inum) *Inode {
	ip := &Inode{Inum: inum}
	dec := marshal.NewDec(blk)
	ip.Mtime = dec.GetInt()
	ip.Mode = dec.GetInt()
	ip.Nlink = dec.GetInt()
	ip.Size = uint64(dec.GetInt32())
	ip.Blocks = uint64(dec.GetInt32())
	ip.Parent = common.Inum(dec.GetInt())
	ip.Data = dec.GetBytes(DATASZ)
	return ip
}

func (ip *Inode) Clone() *Inode {
	c := *ip
	c.Data = make([]byte, len(ip.Data))
	copy(c.Data, ip.Data)
	return &c
}

// Blk returns the data block backing file block bn, NULLBNUM if none.
func (ip *Inode) Blk(bn uint64) common.Bnum {
	if bn >= NBLKPTR {
		panic("Blk: bn out of range")
	}
	return machine.UInt64Get(ip.Data[bn*common.WORDSZ:])
}

func (ip *Inode) SetBlk(bn uint64, blkno common.Bnum) {
	if bn >= NBLKPTR {
		panic("SetBlk: bn out of range")
	}
	machine.UInt64Put(ip.Data[bn*common.WORDSZ:], blkno)
}

// Resize records a byte size and the matching block count.
func (ip *Inode) Resize(sz uint64) {
	ip.Size = sz
	ip.Blocks = (sz + disk.BlockSize - 1) / disk.BlockSize
}
