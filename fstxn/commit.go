package fstxn

import (
	"github.com/mit-pdos/go-journal/util"
)

// writeInodes relocates every dirty inode to a fresh block.
func (tx *FsTxn) writeInodes() error {
	for _, inum := range tx.dirty {
		ip := tx.inodes[inum]
		bn, err := tx.WriteBlock(ip.Encode())
		if err != nil {
			return err
		}
		tx.FreeBlock(tx.imap.Get(inum))
		tx.imap.Set(inum, bn)
		util.DPrintf(5, "commit: inode %v at %d\n", ip, bn)
	}
	return nil
}

func (tx *FsTxn) preCommit() error {
	if err := tx.writeInodes(); err != nil {
		return err
	}
	imapBlk, err := tx.WriteBlock(tx.imap.Encode())
	if err != nil {
		return err
	}
	// The orphan block is updated in place; nothing below can fail.
	if tx.orphansDirty {
		tx.st.Super.Disk.Write(tx.st.Super.OrphanBlock(), tx.Orphans().Encode())
	}
	tx.FreeBlock(tx.sb.Imap)
	tx.st.Super.Disk.Barrier()
	tx.sb.Imap = imapBlk
	return nil
}

func (tx *FsTxn) postCommit() {
	for _, bn := range tx.freeBlks {
		tx.st.Bbm.UnsetBit(bn)
	}
	for _, inum := range tx.freeInums {
		tx.st.Ibm.UnsetBit(uint64(inum))
	}
}

func (tx *FsTxn) postAbort() {
	for _, bn := range tx.allocBlks {
		tx.st.Bbm.UnsetBit(bn)
	}
	for _, inum := range tx.allocInums {
		tx.st.Ibm.UnsetBit(uint64(inum))
	}
}

func (tx *FsTxn) finish() {
	tx.done = true
	tx.inodes = nil
	tx.orphans = nil
	tx.st.end()
}

// Commit ends the transaction. With write set, the new inode map is made
// durable and the superblock repointed at it, superblock last; otherwise
// the working state is discarded. If the commit itself runs out of space
// the transaction is aborted and ErrNoSpace returned.
func (tx *FsTxn) Commit(write bool) error {
	if tx.done {
		panic("Commit: no open transaction")
	}
	defer tx.finish()
	if !write || !tx.modified {
		util.DPrintf(5, "Commit: discard\n")
		tx.postAbort()
		return nil
	}
	if err := tx.preCommit(); err != nil {
		util.DPrintf(1, "Commit: abort %v\n", err)
		tx.postAbort()
		return err
	}
	tx.st.Super.WriteSuper(tx.sb)
	tx.st.Super.Disk.Barrier()
	util.DPrintf(1, "Commit: %v\n", tx.sb)
	tx.postCommit()
	return nil
}

// Abort discards the transaction.
func (tx *FsTxn) Abort() {
	if err := tx.Commit(false); err != nil {
		panic(err)
	}
}
