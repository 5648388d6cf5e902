package fstxn

import (
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/alloc"
	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/imap"
	"github.com/mit-pdos/go-lfs/inode"
	"github.com/mit-pdos/go-lfs/orphan"
	"github.com/mit-pdos/go-lfs/super"
)

// FsTxn holds the working copies of the superblock and inode map for one
// transaction. Inodes are cached and written out of place at commit; data
// blocks are written out of place immediately.
type FsTxn struct {
	st     *FsState
	sb     *super.Superblock
	imap   *imap.Imap
	icur   *alloc.Cursor
	bcur   *alloc.Cursor
	inodes map[common.Inum]*inode.Inode
	dirty  []common.Inum

	orphans      *orphan.Orphans
	orphansDirty bool

	allocInums []common.Inum
	allocBlks  []common.Bnum
	freeInums  []common.Inum
	freeBlks   []common.Bnum

	modified bool
	done     bool
}

func begin(st *FsState) *FsTxn {
	sb := st.Super.ReadSuper()
	if !sb.Formatted() {
		st.end()
		panic("Begin: unformatted device")
	}
	tx := &FsTxn{
		st:     st,
		sb:     sb,
		imap:   imap.Decode(st.Super.Disk.Read(sb.Imap)),
		inodes: make(map[common.Inum]*inode.Inode),
	}
	tx.icur = alloc.MkCursor(&tx.sb.Ialloc, common.NINODE)
	tx.bcur = alloc.MkCursor(&tx.sb.Balloc, st.Super.MaxBnum())
	util.DPrintf(5, "Begin: %v\n", tx.sb)
	return tx
}

func (tx *FsTxn) Super() *super.FsSuper {
	return tx.st.Super
}

func (tx *FsTxn) State() *FsState {
	return tx.st
}

// Superblock returns the working superblock.
func (tx *FsTxn) Superblock() *super.Superblock {
	return tx.sb
}

func (tx *FsTxn) Imap() *imap.Imap {
	return tx.imap
}

func allocFrom(cur *alloc.Cursor, bm *alloc.Bitmap) (uint64, error) {
	for {
		n, err := cur.AllocNum()
		if err != nil {
			return 0, err
		}
		if bm.IsFree(n) {
			bm.SetBit(n)
			return n, nil
		}
		util.DPrintf(1, "alloc: skip %d, still marked\n", n)
	}
}

func (tx *FsTxn) AllocInum() (common.Inum, error) {
	n, err := allocFrom(tx.icur, tx.st.Ibm)
	if err != nil {
		return common.NULLINUM, err
	}
	tx.modified = true
	tx.allocInums = append(tx.allocInums, common.Inum(n))
	return common.Inum(n), nil
}

func (tx *FsTxn) AllocBlock() (common.Bnum, error) {
	n, err := allocFrom(tx.bcur, tx.st.Bbm)
	if err != nil {
		return common.NULLBNUM, err
	}
	tx.modified = true
	tx.allocBlks = append(tx.allocBlks, n)
	return n, nil
}

// FreeBlock releases bn once the transaction commits.
func (tx *FsTxn) FreeBlock(bn common.Bnum) {
	if bn == common.NULLBNUM {
		return
	}
	tx.modified = true
	tx.freeBlks = append(tx.freeBlks, bn)
}

func (tx *FsTxn) ReadBlock(bn common.Bnum) disk.Block {
	return tx.st.Super.Disk.Read(bn)
}

// WriteBlock writes data to a freshly allocated block and returns it.
func (tx *FsTxn) WriteBlock(data disk.Block) (common.Bnum, error) {
	bn, err := tx.AllocBlock()
	if err != nil {
		return common.NULLBNUM, err
	}
	util.DPrintf(5, "WriteBlock: %d\n", bn)
	tx.st.Super.Disk.Write(bn, data)
	return bn, nil
}

// GetInode loads inum through the working inode map; nil if unmapped.
func (tx *FsTxn) GetInode(inum common.Inum) *inode.Inode {
	if inum == common.NULLINUM || uint64(inum) >= common.NINODE {
		return nil
	}
	if ip, ok := tx.inodes[inum]; ok {
		return ip
	}
	bn := tx.imap.Get(inum)
	if bn == common.NULLBNUM {
		return nil
	}
	ip := inode.Decode(tx.st.Super.Disk.Read(bn), inum)
	tx.inodes[inum] = ip
	return ip
}

// Allocated reports whether inum's bitmap bit is set.
func (tx *FsTxn) Allocated(inum common.Inum) bool {
	if uint64(inum) >= common.NINODE {
		return false
	}
	return tx.st.Ibm.IsSet(uint64(inum))
}

// PutInode schedules ip to be written at commit.
func (tx *FsTxn) PutInode(ip *inode.Inode) {
	tx.modified = true
	tx.inodes[ip.Inum] = ip
	for _, inum := range tx.dirty {
		if inum == ip.Inum {
			return
		}
	}
	tx.dirty = append(tx.dirty, ip.Inum)
}

// NewInode allocates an inode number and returns a fresh dirty inode.
func (tx *FsTxn) NewInode(mode uint64, mtime uint64, parent common.Inum) (*inode.Inode, error) {
	inum, err := tx.AllocInum()
	if err != nil {
		return nil, err
	}
	ip := inode.MkInode(inum, mode, mtime, parent)
	tx.PutInode(ip)
	return ip, nil
}

// FreeInode unmaps inum and releases its inode block and number at
// commit.
func (tx *FsTxn) FreeInode(inum common.Inum) {
	tx.modified = true
	tx.FreeBlock(tx.imap.Get(inum))
	tx.imap.Unmap(inum)
	delete(tx.inodes, inum)
	for i, d := range tx.dirty {
		if d == inum {
			tx.dirty = append(tx.dirty[:i], tx.dirty[i+1:]...)
			break
		}
	}
	tx.freeInums = append(tx.freeInums, inum)
}

func (tx *FsTxn) Orphans() *orphan.Orphans {
	if tx.orphans == nil {
		tx.orphans = orphan.Decode(tx.st.Super.Disk.Read(tx.st.Super.OrphanBlock()))
	}
	return tx.orphans
}

// PutOrphans schedules the orphan block to be written at commit.
func (tx *FsTxn) PutOrphans() {
	tx.modified = true
	tx.orphansDirty = true
}
