// Package fsck checks a raw image for consistency of everything
// reachable from the superblock.
package fsck

import (
	"fmt"
	"io"

	"github.com/mit-pdos/go-journal/alloc"
	"github.com/mit-pdos/go-journal/util"
	"github.com/rodaine/table"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/imap"
	"github.com/mit-pdos/go-lfs/inode"
	"github.com/mit-pdos/go-lfs/orphan"
	"github.com/mit-pdos/go-lfs/super"
)

// Report lists violations. Errors break an invariant; warnings are
// leaks a crash may legitimately leave behind.
type Report struct {
	Errors   []string
	Warnings []string

	Inodes     uint64
	Blocks     uint64 // referenced, including metadata
	BitmapUsed uint64
}

func (r *Report) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Report) errorf(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	util.DPrintf(1, "fsck: %s\n", msg)
	r.Errors = append(r.Errors, msg)
}

func (r *Report) warnf(format string, a ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, a...))
}

func (r *Report) Print(w io.Writer) {
	tbl := table.New("kind", "detail")
	tbl.WithWriter(w)
	for _, e := range r.Errors {
		tbl.AddRow("error", e)
	}
	for _, e := range r.Warnings {
		tbl.AddRow("warning", e)
	}
	tbl.AddRow("inodes", r.Inodes)
	tbl.AddRow("blocks", fmt.Sprintf("%d referenced, %d marked", r.Blocks, r.BitmapUsed))
	tbl.Print()
}

type checker struct {
	r     *Report
	fs    *super.FsSuper
	sb    *super.Superblock
	ibm   []byte
	bbm   []byte
	refs  *alloc.Alloc
	owner map[common.Bnum]common.Inum
	ips   map[common.Inum]*inode.Inode
}

func readBitmap(fs *super.FsSuper, start common.Bnum, len uint64) []byte {
	var bitmap []byte
	for i := uint64(0); i < len; i++ {
		bitmap = append(bitmap, fs.Disk.Read(start+i)...)
	}
	return bitmap
}

func isSet(bm []byte, n uint64) bool {
	return bm[n/8]&(1<<(n%8)) != 0
}

// ref records that owner references block bn.
func (c *checker) ref(bn common.Bnum, owner common.Inum, what string) bool {
	if bn < c.fs.DataStart() || bn >= c.sb.Balloc {
		c.r.errorf("%s of inode %d at %d outside log [%d,%d)", what, owner, bn,
			c.fs.DataStart(), c.sb.Balloc)
		return false
	}
	if o, ok := c.owner[bn]; ok {
		c.r.errorf("%s of inode %d at %d already used by inode %d", what, owner, bn, o)
		return false
	}
	c.owner[bn] = owner
	c.refs.MarkUsed(bn)
	if !isSet(c.bbm, bn) {
		c.r.errorf("%s of inode %d at %d not marked in block bitmap", what, owner, bn)
	}
	return true
}

// Check verifies d. It fails only if d is not formatted.
func Check(d disk.Disk) (*Report, error) {
	fs := super.MkFsSuper(d)
	sb := fs.ReadSuper()
	if !sb.Formatted() {
		return nil, fmt.Errorf("fsck: %w: unformatted", common.ErrInval)
	}
	r := &Report{}
	c := &checker{
		r:     r,
		fs:    fs,
		sb:    sb,
		ibm:   readBitmap(fs, fs.BitmapInodeStart(), 1),
		bbm:   readBitmap(fs, fs.BitmapBlockStart(), fs.NBlockBitmap),
		refs:  alloc.MkMaxAlloc(fs.NBlockBitmap * common.NBITBLOCK),
		owner: make(map[common.Bnum]common.Inum),
		ips:   make(map[common.Inum]*inode.Inode),
	}
	util.DPrintf(1, "fsck: %v; %v\n", fs, sb)
	if sb.Balloc > fs.Size || sb.Ialloc > common.NINODE {
		r.errorf("superblock cursors out of range: %v", sb)
		return r, nil
	}
	for bn := common.Bnum(0); bn < fs.DataStart(); bn++ {
		c.refs.MarkUsed(bn)
	}
	if !c.ref(sb.Imap, common.NULLINUM, "inode map") {
		return r, nil
	}
	m := imap.Decode(d.Read(sb.Imap))
	c.checkInodes(m)
	c.checkTree()
	c.checkOrphans()
	c.checkBitmaps()
	return r, nil
}

func (c *checker) checkInodes(m *imap.Imap) {
	m.Mapped(func(inum common.Inum, bn common.Bnum) {
		if inum == common.NULLINUM {
			c.r.errorf("null inode mapped at %d", bn)
			return
		}
		if uint64(inum) >= c.sb.Ialloc {
			c.r.errorf("inode %d beyond inode cursor %d", inum, c.sb.Ialloc)
		}
		if !isSet(c.ibm, uint64(inum)) {
			c.r.errorf("inode %d not marked in inode bitmap", inum)
		}
		if !c.ref(bn, inum, "inode") {
			return
		}
		ip := inode.Decode(c.fs.Disk.Read(bn), inum)
		c.ips[inum] = ip
		c.r.Inodes++
		if ip.IsDir() {
			return
		}
		if ip.Blocks != util.RoundUp(ip.Size, disk.BlockSize) {
			c.r.errorf("inode %d: size %d with %d blocks", inum, ip.Size, ip.Blocks)
		}
		for b := uint64(0); b < inode.NBLKPTR; b++ {
			blkno := ip.Blk(b)
			if blkno == common.NULLBNUM {
				continue
			}
			if b >= ip.Blocks {
				c.r.errorf("inode %d: block %d mapped past end", inum, b)
			}
			c.ref(blkno, inum, fmt.Sprintf("block %d", b))
		}
	})
	root, ok := c.ips[common.ROOTINUM]
	if !ok || !root.IsDir() {
		c.r.errorf("root directory missing")
	}
}

func (c *checker) checkTree() {
	named := make(map[common.Inum]common.Inum)
	for inum, dip := range c.ips {
		if !dip.IsDir() {
			continue
		}
		ents := dir.Entries(dip)
		if dip.Nlink != uint64(2+len(ents)) {
			c.r.errorf("directory %d: nlink %d with %d entries", inum, dip.Nlink, len(ents))
		}
		for _, de := range ents {
			ip, ok := c.ips[de.Inum]
			if !ok {
				c.r.errorf("directory %d: %q names missing inode %d", inum, de.Name, de.Inum)
				continue
			}
			if p, ok := named[de.Inum]; ok {
				c.r.errorf("inode %d named in %d and %d", de.Inum, p, inum)
			}
			named[de.Inum] = inum
			if ip.Parent != inum {
				c.r.errorf("inode %d: parent %d but named in %d", de.Inum, ip.Parent, inum)
			}
			if !ip.IsDir() && ip.Nlink != 2 {
				c.r.errorf("file %d: nlink %d with a name", de.Inum, ip.Nlink)
			}
		}
	}
	for inum, ip := range c.ips {
		if inum == common.ROOTINUM {
			continue
		}
		if _, ok := named[inum]; ok {
			continue
		}
		if ip.IsDir() {
			c.r.warnf("directory %d has no name", inum)
		} else if ip.Nlink > 1 {
			c.r.errorf("file %d: nlink %d without a name", inum, ip.Nlink)
		}
	}
}

func (c *checker) checkOrphans() {
	o := orphan.Decode(c.fs.Disk.Read(c.fs.OrphanBlock()))
	listed := make(map[common.Inum]bool)
	for i := uint64(0); i < o.Size(); i++ {
		inum := o.Index(i)
		if inum == common.NULLINUM {
			continue
		}
		listed[inum] = true
		ip, ok := c.ips[inum]
		if !ok {
			c.r.warnf("orphan %d: inode %d is gone", i, inum)
		} else if ip.Nlink > 1 {
			c.r.warnf("orphan %d: inode %d is still linked", i, inum)
		}
	}
	for inum, ip := range c.ips {
		if !ip.IsDir() && ip.Nlink <= 1 && !listed[inum] {
			c.r.warnf("unlinked inode %d is not on the orphan list", inum)
		}
	}
}

func (c *checker) checkBitmaps() {
	bbm := alloc.MkAlloc(c.bbm)
	max := c.fs.NBlockBitmap * common.NBITBLOCK
	c.r.Blocks = max - c.refs.NumFree()
	c.r.BitmapUsed = max - bbm.NumFree()
	if c.r.BitmapUsed > c.r.Blocks {
		c.r.warnf("%d blocks marked but unreferenced", c.r.BitmapUsed-c.r.Blocks)
	}
	ibm := alloc.MkAlloc(c.ibm)
	used := common.NBITBLOCK - ibm.NumFree()
	// inode 0 is always marked
	if used > c.r.Inodes+1 {
		c.r.warnf("%d inodes marked but unmapped", used-c.r.Inodes-1)
	}
}
