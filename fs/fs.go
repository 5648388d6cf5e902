package fs

import (
	"io"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/fstxn"
	"github.com/mit-pdos/go-lfs/super"
	"github.com/mit-pdos/go-lfs/util/stats"
)

const (
	LOOKUP = iota
	GETATTR
	SETATTR
	MKNOD
	UNLINK
	RMDIR
	RENAME
	WRITE
	READ
	TRUNCATE
	FORGET
	READDIR
	GC_RECLAIM
	GC_FREE
	GC_RESET
	NUM_OPS
)

var opNames = []string{
	"LOOKUP",
	"GETATTR",
	"SETATTR",
	"MKNOD",
	"UNLINK",
	"RMDIR",
	"RENAME",
	"WRITE",
	"READ",
	"TRUNCATE",
	"FORGET",
	"READDIR",
	"GC_RECLAIM",
	"GC_FREE",
	"GC_RESET",
}

type Opts struct {
	// Usable dentry slots per directory, at most dir.NDIRENT.
	Fanout uint64
}

func DefaultOpts() Opts {
	return Opts{Fanout: dir.NDIRENT}
}

// Fs runs one transaction per operation and is not safe for concurrent
// use.
type Fs struct {
	st     *fstxn.FsState
	fanout uint64
	stats  [NUM_OPS]stats.Op
}

// Mkfs formats d.
func Mkfs(d disk.Disk) error {
	return fstxn.Mkfs(super.MkFsSuper(d), uint64(time.Now().Unix()))
}

// Mount opens a formatted device. Nothing needs replaying: a crash
// leaves at worst bitmap bits for blocks no committed inode map
// references, and allocation skips those.
func Mount(d disk.Disk, opts Opts) (*Fs, error) {
	s := super.MkFsSuper(d)
	if !s.ReadSuper().Formatted() {
		return nil, common.ErrInval
	}
	fanout := opts.Fanout
	if fanout == 0 || fanout > dir.NDIRENT {
		fanout = dir.NDIRENT
	}
	util.DPrintf(1, "Mount: %v fanout %d\n", s, fanout)
	return &Fs{st: fstxn.MkFsState(s), fanout: fanout}, nil
}

// MkFs formats d if it is not formatted yet and mounts it.
func MkFs(d disk.Disk, opts Opts) (*Fs, error) {
	if !super.MkFsSuper(d).ReadSuper().Formatted() {
		if err := Mkfs(d); err != nil {
			return nil, err
		}
	}
	return Mount(d, opts)
}

func (fs *Fs) Disk() disk.Disk {
	return fs.st.Super.Disk
}

func (fs *Fs) Close() {
	fs.st.Super.Disk.Close()
}

func (fs *Fs) recordOp(op int, start time.Time) {
	fs.stats[op].Record(start)
}

// recordIO is recordOp for operations that move n bytes of file data.
func (fs *Fs) recordIO(op int, start time.Time, n uint64) {
	fs.stats[op].RecordBytes(start, n)
}

func (fs *Fs) WriteOpStats(w io.Writer) {
	stats.WriteTable(opNames, fs.stats[:], w)
}

func (fs *Fs) ResetOpStats() {
	for i := range fs.stats {
		fs.stats[i].Reset()
	}
}

// finish commits tx if the operation succeeded and aborts it otherwise.
func finish(tx *fstxn.FsTxn, err error) error {
	if err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit(true)
}

type Statfs struct {
	Blocks     uint64
	FreeBlocks uint64
	Inodes     uint64
	FreeInodes uint64
	NextBlock  common.Bnum
	NextInode  uint64
	Orphans    uint64
}

func (fs *Fs) Statfs() Statfs {
	tx := fs.st.Begin()
	defer tx.Abort()
	sb := tx.Superblock()
	return Statfs{
		Blocks:     fs.st.Super.Size,
		FreeBlocks: fs.st.Super.Size - fs.st.Bbm.Count(),
		Inodes:     common.NINODE,
		FreeInodes: common.NINODE - fs.st.Ibm.Count(),
		NextBlock:  sb.Balloc,
		NextInode:  sb.Ialloc,
		Orphans:    tx.Orphans().Size(),
	}
}
