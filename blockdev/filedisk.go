package blockdev

import (
	"fmt"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"
)

// FileDisk is a block device backed by a file or a raw device. The file
// is locked exclusively for as long as it is open.
type FileDisk struct {
	fd        int
	numBlocks uint64
}

var _ disk.Disk = (*FileDisk)(nil)

// OpenFileDisk opens path, creating it if necessary. A regular file
// shorter than numBlocks is extended; numBlocks 0 means use the file's
// current size.
func OpenFileDisk(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	cur := uint64(stat.Size) / disk.BlockSize
	if numBlocks == 0 {
		numBlocks = cur
	}
	if numBlocks == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: empty disk and no size given", path)
	}
	if stat.Mode&unix.S_IFMT == unix.S_IFREG && cur < numBlocks {
		if err := unix.Ftruncate(fd, int64(numBlocks*disk.BlockSize)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("extend %s: %w", path, err)
		}
	}
	util.DPrintf(1, "OpenFileDisk %s: %d blocks\n", path, numBlocks)
	return &FileDisk{fd: fd, numBlocks: numBlocks}, nil
}

func (d *FileDisk) ReadTo(a uint64, buf disk.Block) {
	if uint64(len(buf)) != disk.BlockSize {
		panic("buffer is not block-sized")
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	n, err := unix.Pread(d.fd, buf, int64(a*disk.BlockSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

func (d *FileDisk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *FileDisk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("v is not block sized (%d bytes)", len(v)))
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	if _, err := unix.Pwrite(d.fd, v, int64(a*disk.BlockSize)); err != nil {
		panic("write failed: " + err.Error())
	}
}

func (d *FileDisk) Size() uint64 {
	return d.numBlocks
}

func (d *FileDisk) Barrier() {
	if err := unix.Fsync(d.fd); err != nil {
		panic("file sync failed: " + err.Error())
	}
}

// Close releases the lock along with the descriptor.
func (d *FileDisk) Close() {
	if err := unix.Close(d.fd); err != nil {
		panic(err)
	}
}
