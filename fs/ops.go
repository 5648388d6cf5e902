package fs

import (
	"time"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/fstxn"
	"github.com/mit-pdos/go-lfs/inode"
)

// getValid returns inum if it is allocated and still linked.
func getValid(tx *fstxn.FsTxn, inum common.Inum) (*inode.Inode, error) {
	ip := tx.GetInode(inum)
	if ip == nil || !tx.Allocated(inum) || ip.Nlink == 0 {
		return nil, common.ErrNotFound
	}
	return ip, nil
}

func getDir(tx *fstxn.FsTxn, inum common.Inum) (*inode.Inode, error) {
	dip, err := getValid(tx, inum)
	if err != nil {
		return nil, err
	}
	if !dip.IsDir() {
		return nil, common.ErrNotDir
	}
	return dip, nil
}

func getFile(tx *fstxn.FsTxn, inum common.Inum) (*inode.Inode, error) {
	ip, err := getValid(tx, inum)
	if err != nil {
		return nil, err
	}
	if ip.IsDir() {
		return nil, common.ErrIsDir
	}
	return ip, nil
}

// lookupChild resolves name in parent and loads the child inode.
func lookupChild(tx *fstxn.FsTxn, parent common.Inum, name string) (*inode.Inode, *inode.Inode, uint64, error) {
	if !dir.ValidName(name) {
		return nil, nil, 0, common.ErrInval
	}
	dip, err := getDir(tx, parent)
	if err != nil {
		return nil, nil, 0, err
	}
	inum, slot, ok := dir.LookupName(dip, name)
	if !ok {
		return nil, nil, 0, common.ErrNotFound
	}
	ip, err := getValid(tx, inum)
	if err != nil {
		return nil, nil, 0, err
	}
	return dip, ip, slot, nil
}

func (fs *Fs) Lookup(parent common.Inum, name string) (common.Inum, error) {
	defer fs.recordOp(LOOKUP, time.Now())
	util.DPrintf(1, "Lookup %d %q\n", parent, name)
	if !dir.ValidName(name) {
		return common.NULLINUM, common.ErrInval
	}
	tx := fs.st.Begin()
	defer tx.Abort()
	dip, err := getDir(tx, parent)
	if err != nil {
		return common.NULLINUM, err
	}
	inum, _, ok := dir.LookupName(dip, name)
	if !ok {
		return common.NULLINUM, common.ErrNotFound
	}
	return inum, nil
}

func (fs *Fs) GetAttr(inum common.Inum) (inode.Attr, error) {
	defer fs.recordOp(GETATTR, time.Now())
	util.DPrintf(1, "GetAttr %d\n", inum)
	tx := fs.st.Begin()
	defer tx.Abort()
	ip, err := getValid(tx, inum)
	if err != nil {
		return inode.Attr{}, err
	}
	return ip.Attr, nil
}

// SetAttr updates the permission bits and mtime; the file type, link
// count, size and parent are not settable.
func (fs *Fs) SetAttr(inum common.Inum, attr inode.Attr) error {
	defer fs.recordOp(SETATTR, time.Now())
	util.DPrintf(1, "SetAttr %d %+v\n", inum, attr)
	tx := fs.st.Begin()
	ip, err := getValid(tx, inum)
	if err == nil {
		ip.Mode = (attr.Mode &^ inode.S_IFDIR) | (ip.Mode & inode.S_IFDIR)
		ip.Mtime = attr.Mtime
		tx.PutInode(ip)
	}
	return finish(tx, err)
}

func (fs *Fs) Readdir(inum common.Inum) ([]dir.DirEnt, error) {
	defer fs.recordOp(READDIR, time.Now())
	util.DPrintf(1, "Readdir %d\n", inum)
	tx := fs.st.Begin()
	defer tx.Abort()
	dip, err := getDir(tx, inum)
	if err != nil {
		return nil, err
	}
	return dir.Entries(dip), nil
}

func (fs *Fs) Mknod(parent common.Inum, name string, mode uint64, mtime uint64) (common.Inum, error) {
	defer fs.recordOp(MKNOD, time.Now())
	util.DPrintf(1, "Mknod %d %q %o\n", parent, name, mode)
	tx := fs.st.Begin()
	inum, err := fs.mknod(tx, parent, name, mode, mtime)
	if err := finish(tx, err); err != nil {
		return common.NULLINUM, err
	}
	return inum, nil
}

func (fs *Fs) mknod(tx *fstxn.FsTxn, parent common.Inum, name string, mode uint64, mtime uint64) (common.Inum, error) {
	if !dir.ValidName(name) {
		return common.NULLINUM, common.ErrInval
	}
	dip, err := getDir(tx, parent)
	if err != nil {
		return common.NULLINUM, err
	}
	if _, _, ok := dir.LookupName(dip, name); ok {
		return common.NULLINUM, common.ErrExists
	}
	slot, ok := dir.FreeSlot(dip, fs.fanout)
	if !ok {
		return common.NULLINUM, common.ErrNoSpace
	}
	ip, err := tx.NewInode(mode, mtime, parent)
	if err != nil {
		return common.NULLINUM, err
	}
	dir.Set(dip, slot, ip.Inum, name)
	dip.Nlink++
	tx.PutInode(dip)
	return ip.Inum, nil
}

// Unlink removes a file's name. The inode keeps one reference for open
// handles until Forget and is queued for GC on the orphan list.
func (fs *Fs) Unlink(parent common.Inum, name string) error {
	defer fs.recordOp(UNLINK, time.Now())
	util.DPrintf(1, "Unlink %d %q\n", parent, name)
	tx := fs.st.Begin()
	return finish(tx, unlink(tx, parent, name))
}

func unlink(tx *fstxn.FsTxn, parent common.Inum, name string) error {
	dip, ip, slot, err := lookupChild(tx, parent, name)
	if err != nil {
		return err
	}
	if ip.IsDir() {
		return common.ErrIsDir
	}
	if err := orphan(tx, ip); err != nil {
		return err
	}
	dir.Clear(dip, slot)
	dip.Nlink--
	tx.PutInode(dip)
	return nil
}

func orphan(tx *fstxn.FsTxn, ip *inode.Inode) error {
	if err := tx.Orphans().Append(ip.Inum); err != nil {
		return err
	}
	tx.PutOrphans()
	ip.Nlink = 1
	tx.PutInode(ip)
	return nil
}

// Rmdir removes an empty directory and frees it immediately.
func (fs *Fs) Rmdir(parent common.Inum, name string) error {
	defer fs.recordOp(RMDIR, time.Now())
	util.DPrintf(1, "Rmdir %d %q\n", parent, name)
	tx := fs.st.Begin()
	return finish(tx, rmdir(tx, parent, name))
}

func emptyDir(ip *inode.Inode) bool {
	return ip.Nlink <= 2 && dir.IsEmpty(ip)
}

func rmdir(tx *fstxn.FsTxn, parent common.Inum, name string) error {
	dip, ip, slot, err := lookupChild(tx, parent, name)
	if err != nil {
		return err
	}
	if !ip.IsDir() {
		return common.ErrNotDir
	}
	if !emptyDir(ip) {
		return common.ErrNotEmpty
	}
	dir.Clear(dip, slot)
	dip.Nlink--
	tx.PutInode(dip)
	tx.FreeInode(ip.Inum)
	return nil
}

// isAncestor reports whether a is d or one of d's ancestors.
func isAncestor(tx *fstxn.FsTxn, a common.Inum, d common.Inum) bool {
	for i := uint64(0); i < common.NINODE; i++ {
		if d == a {
			return true
		}
		if d == common.ROOTINUM {
			return false
		}
		ip := tx.GetInode(d)
		if ip == nil {
			return false
		}
		d = ip.Parent
	}
	return false
}

func (fs *Fs) Rename(oparent common.Inum, oname string, nparent common.Inum, nname string) error {
	defer fs.recordOp(RENAME, time.Now())
	util.DPrintf(1, "Rename %d %q -> %d %q\n", oparent, oname, nparent, nname)
	tx := fs.st.Begin()
	return finish(tx, fs.rename(tx, oparent, oname, nparent, nname))
}

func (fs *Fs) rename(tx *fstxn.FsTxn, oparent common.Inum, oname string, nparent common.Inum, nname string) error {
	if !dir.ValidName(nname) {
		return common.ErrInval
	}
	odip, ip, oslot, err := lookupChild(tx, oparent, oname)
	if err != nil {
		return err
	}
	ndip, err := getDir(tx, nparent)
	if err != nil {
		return err
	}
	if oparent == nparent && oname == nname {
		return nil
	}
	if ip.IsDir() && isAncestor(tx, ip.Inum, nparent) {
		return common.ErrInval
	}

	dinum, dslot, replace := dir.LookupName(ndip, nname)
	if replace {
		vip, err := getValid(tx, dinum)
		if err != nil {
			return err
		}
		if err := replaceVictim(tx, ip, vip); err != nil {
			return err
		}
		dir.Clear(ndip, dslot)
		ndip.Nlink--
	}

	dir.Clear(odip, oslot)
	odip.Nlink--
	slot, ok := dslot, replace
	if !ok {
		slot, ok = dir.FreeSlot(ndip, fs.fanout)
		if !ok {
			return common.ErrNoSpace
		}
	}
	dir.Set(ndip, slot, ip.Inum, nname)
	ndip.Nlink++
	ip.Parent = nparent
	tx.PutInode(ip)
	tx.PutInode(odip)
	tx.PutInode(ndip)
	return nil
}

// replaceVictim disposes of the inode a rename overwrites: a file is
// orphaned like an unlink, an empty directory is freed like rmdir.
func replaceVictim(tx *fstxn.FsTxn, ip *inode.Inode, vip *inode.Inode) error {
	switch {
	case ip.IsDir() && !vip.IsDir():
		return common.ErrNotDir
	case !ip.IsDir() && vip.IsDir():
		return common.ErrIsDir
	case vip.IsDir():
		if !emptyDir(vip) {
			return common.ErrNotEmpty
		}
		tx.FreeInode(vip.Inum)
		return nil
	default:
		return orphan(tx, vip)
	}
}
