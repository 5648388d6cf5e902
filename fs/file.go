package fs

import (
	"time"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/fstxn"
	"github.com/mit-pdos/go-lfs/inode"
)

const MAXFILESIZE = inode.NBLKPTR * disk.BlockSize

// readBlock returns file block bn with bytes past the file size zeroed.
func readBlock(tx *fstxn.FsTxn, ip *inode.Inode, bn uint64) disk.Block {
	if bn >= ip.Blocks || bn >= inode.NBLKPTR {
		return make(disk.Block, disk.BlockSize)
	}
	blkno := ip.Blk(bn)
	if blkno == common.NULLBNUM {
		return make(disk.Block, disk.BlockSize)
	}
	blk := tx.ReadBlock(blkno)
	if end := bn*disk.BlockSize + disk.BlockSize; end > ip.Size {
		for i := ip.Size - bn*disk.BlockSize; i < disk.BlockSize; i++ {
			blk[i] = 0
		}
	}
	return blk
}

// releaseLast drops the file's last block, clipping the size to it.
func releaseLast(tx *fstxn.FsTxn, ip *inode.Inode) {
	bn := ip.Blocks - 1
	tx.FreeBlock(ip.Blk(bn))
	ip.SetBlk(bn, common.NULLBNUM)
	ip.Blocks = bn
	ip.Size = util.Min(ip.Size, bn*disk.BlockSize)
	tx.PutInode(ip)
}

// Write stores data at the start of file block bn, out of place. A short
// write keeps the rest of the existing block.
func (fs *Fs) Write(inum common.Inum, bn uint64, data []byte) error {
	defer fs.recordIO(WRITE, time.Now(), uint64(len(data)))
	util.DPrintf(1, "Write %d bn %d len %d\n", inum, bn, len(data))
	if bn >= inode.NBLKPTR || len(data) == 0 || uint64(len(data)) > disk.BlockSize {
		return common.ErrInval
	}
	tx := fs.st.Begin()
	return finish(tx, write(tx, inum, bn, data))
}

func write(tx *fstxn.FsTxn, inum common.Inum, bn uint64, data []byte) error {
	ip, err := getFile(tx, inum)
	if err != nil {
		return err
	}
	var blk disk.Block
	if uint64(len(data)) == disk.BlockSize {
		blk = data
	} else {
		blk = readBlock(tx, ip, bn)
		copy(blk, data)
	}
	blkno, err := tx.WriteBlock(blk)
	if err != nil {
		return err
	}
	tx.FreeBlock(ip.Blk(bn))
	ip.SetBlk(bn, blkno)
	if sz := bn*disk.BlockSize + uint64(len(data)); sz > ip.Size {
		ip.Resize(sz)
	}
	tx.PutInode(ip)
	return nil
}

// Read returns file block bn; unwritten blocks read as zeros.
func (fs *Fs) Read(inum common.Inum, bn uint64) (disk.Block, error) {
	defer fs.recordIO(READ, time.Now(), disk.BlockSize)
	util.DPrintf(1, "Read %d bn %d\n", inum, bn)
	tx := fs.st.Begin()
	defer tx.Abort()
	ip, err := getFile(tx, inum)
	if err != nil {
		return nil, err
	}
	return readBlock(tx, ip, bn), nil
}

// Truncate sets the file size. Shrinking releases one trailing block per
// transaction, so a crash leaves a prefix of the file.
func (fs *Fs) Truncate(inum common.Inum, size uint64) error {
	defer fs.recordOp(TRUNCATE, time.Now())
	util.DPrintf(1, "Truncate %d %d\n", inum, size)
	if size > MAXFILESIZE {
		return common.ErrInval
	}
	for {
		tx := fs.st.Begin()
		done, err := truncateStep(tx, inum, size)
		if err := finish(tx, err); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func truncateStep(tx *fstxn.FsTxn, inum common.Inum, size uint64) (bool, error) {
	ip, err := getFile(tx, inum)
	if err != nil {
		return false, err
	}
	want := util.RoundUp(size, disk.BlockSize)
	if ip.Blocks > want {
		releaseLast(tx, ip)
		return false, nil
	}
	if ip.Size == size {
		return true, nil
	}
	if size < ip.Size && size%disk.BlockSize != 0 {
		if err := zeroTail(tx, ip, size); err != nil {
			return false, err
		}
	}
	ip.Resize(size)
	tx.PutInode(ip)
	return true, nil
}

// zeroTail rewrites the block holding byte size with everything from
// size on cleared, so a later extension reads zeros.
func zeroTail(tx *fstxn.FsTxn, ip *inode.Inode, size uint64) error {
	bn := size / disk.BlockSize
	old := ip.Blk(bn)
	if old == common.NULLBNUM {
		return nil
	}
	blk := tx.ReadBlock(old)
	for i := size % disk.BlockSize; i < disk.BlockSize; i++ {
		blk[i] = 0
	}
	blkno, err := tx.WriteBlock(blk)
	if err != nil {
		return err
	}
	tx.FreeBlock(old)
	ip.SetBlk(bn, blkno)
	return nil
}

// Forget drops the last reference of an unlinked file, making it
// reclaimable by GC. Anything else is left alone, including an inode
// that was already forgotten and not yet collected.
func (fs *Fs) Forget(inum common.Inum) error {
	defer fs.recordOp(FORGET, time.Now())
	util.DPrintf(1, "Forget %d\n", inum)
	tx := fs.st.Begin()
	ip := tx.GetInode(inum)
	if ip == nil || !tx.Allocated(inum) {
		tx.Abort()
		return common.ErrNotFound
	}
	if ip.IsDir() || ip.Nlink != 1 {
		tx.Abort()
		return nil
	}
	ip.Nlink = 0
	tx.PutInode(ip)
	return tx.Commit(true)
}
