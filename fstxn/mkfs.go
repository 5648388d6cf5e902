package fstxn

import (
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/imap"
	"github.com/mit-pdos/go-lfs/inode"
	"github.com/mit-pdos/go-lfs/orphan"
	"github.com/mit-pdos/go-lfs/super"
)

// Mkfs formats the device: empty bitmaps with the metadata region
// reserved, an empty orphan list, the root directory and the first inode
// map in the first two data blocks, and finally the superblock.
func Mkfs(fs *super.FsSuper, mtime uint64) error {
	start := fs.DataStart()
	if fs.Size < start+2 {
		return common.ErrNoSpace
	}
	st := MkFsState(fs)
	st.Ibm.Zero()
	st.Bbm.Zero()
	for bn := uint64(0); bn < start+2; bn++ {
		st.Bbm.SetBit(bn)
	}
	st.Ibm.SetBit(uint64(common.NULLINUM))
	st.Ibm.SetBit(uint64(common.ROOTINUM))
	fs.Disk.Write(fs.OrphanBlock(), orphan.MkOrphans().Encode())

	root := inode.MkInode(common.ROOTINUM, inode.S_IFDIR|0755, mtime, common.ROOTINUM)
	fs.Disk.Write(start, root.Encode())
	m := imap.MkImap()
	m.Set(common.ROOTINUM, start)
	fs.Disk.Write(start+1, m.Encode())
	fs.Disk.Barrier()

	sb := &super.Superblock{
		Balloc: start + 2,
		Ialloc: uint64(common.ROOTINUM) + 1,
		Imap:   start + 1,
	}
	fs.WriteSuper(sb)
	fs.Disk.Barrier()
	util.DPrintf(1, "Mkfs: %v; %v\n", fs, sb)
	return nil
}
