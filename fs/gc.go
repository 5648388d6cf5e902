package fs

import (
	"time"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/fstxn"
	"github.com/mit-pdos/go-lfs/inode"
)

// reclaimable returns the inode named by orphan entry idx if it is
// allocated and has no references left.
func reclaimable(tx *fstxn.FsTxn, idx uint64) *inode.Inode {
	inum := tx.Orphans().Index(idx)
	if inum == common.NULLINUM || !tx.Allocated(inum) {
		return nil
	}
	ip := tx.GetInode(inum)
	if ip == nil || ip.Nlink != 0 {
		return nil
	}
	return ip
}

func checkIndex(idx uint64) error {
	if idx >= common.NORPHAN {
		return common.ErrInval
	}
	return nil
}

// GcReclaimBlocks releases the last data block of orphan idx.
func (fs *Fs) GcReclaimBlocks(idx uint64) error {
	defer fs.recordOp(GC_RECLAIM, time.Now())
	_, err := fs.gcReclaim(idx)
	return err
}

func (fs *Fs) gcReclaim(idx uint64) (bool, error) {
	util.DPrintf(1, "GcReclaimBlocks %d\n", idx)
	if err := checkIndex(idx); err != nil {
		return false, err
	}
	tx := fs.st.Begin()
	ip := reclaimable(tx, idx)
	if ip == nil || ip.Blocks == 0 {
		tx.Abort()
		return false, nil
	}
	releaseLast(tx, ip)
	return true, tx.Commit(true)
}

// GcFreeInode frees orphan idx once all its blocks are gone.
func (fs *Fs) GcFreeInode(idx uint64) error {
	defer fs.recordOp(GC_FREE, time.Now())
	_, err := fs.gcFree(idx)
	return err
}

func (fs *Fs) gcFree(idx uint64) (bool, error) {
	util.DPrintf(1, "GcFreeInode %d\n", idx)
	if err := checkIndex(idx); err != nil {
		return false, err
	}
	tx := fs.st.Begin()
	ip := reclaimable(tx, idx)
	if ip == nil || ip.Size != 0 || ip.Blocks != 0 {
		tx.Abort()
		return false, nil
	}
	tx.Orphans().Clear(idx)
	tx.PutOrphans()
	tx.FreeInode(ip.Inum)
	return true, tx.Commit(true)
}

// GcReset empties the orphan list.
func (fs *Fs) GcReset() error {
	defer fs.recordOp(GC_RESET, time.Now())
	util.DPrintf(1, "GcReset\n")
	tx := fs.st.Begin()
	o := tx.Orphans()
	if o.Size() == 0 {
		tx.Abort()
		return nil
	}
	o.Reset()
	tx.PutOrphans()
	return tx.Commit(true)
}

func (fs *Fs) orphans() (uint64, bool) {
	tx := fs.st.Begin()
	defer tx.Abort()
	o := tx.Orphans()
	return o.Size(), o.Live()
}

// Gc reclaims every reclaimable orphan and empties the list once no
// entry is left. It returns the number of inodes freed.
func (fs *Fs) Gc() (uint64, error) {
	n, _ := fs.orphans()
	var freed uint64
	for idx := uint64(0); idx < n; idx++ {
		for {
			ok, err := fs.gcReclaim(idx)
			if err != nil {
				return freed, err
			}
			if !ok {
				break
			}
		}
		ok, err := fs.gcFree(idx)
		if err != nil {
			return freed, err
		}
		if ok {
			freed++
		}
	}
	if _, live := fs.orphans(); !live {
		if err := fs.GcReset(); err != nil {
			return freed, err
		}
	}
	util.DPrintf(1, "Gc: freed %d\n", freed)
	return freed, nil
}
