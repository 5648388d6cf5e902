package fuzz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/fs"
	"github.com/mit-pdos/go-lfs/fsck"
)

var DEBUG bool = false

const (
	DISK_SIZE uint64 = 4000
	NNAMES           = 4
	NBLOCKS          = 4
)

type mfile struct {
	inum common.Inum
	size uint64
	blks map[uint64]disk.Block
}

// model is a flat root directory of files.
type model struct {
	files map[string]*mfile
}

func (m *model) block(f *mfile, bn uint64) disk.Block {
	if b, ok := f.blks[bn]; ok {
		c := make(disk.Block, disk.BlockSize)
		copy(c, b)
		return c
	}
	return make(disk.Block, disk.BlockSize)
}

func (m *model) truncate(f *mfile, size uint64) {
	if size < f.size {
		for bn, b := range f.blks {
			start := bn * disk.BlockSize
			if start >= size {
				delete(f.blks, bn)
				continue
			}
			for i := size - start; i < disk.BlockSize; i++ {
				b[i] = 0
			}
		}
	}
	f.size = size
}

func (m *model) names() []string {
	var ns []string
	for n := range m.files {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}

func check(ok bool, format string, a ...interface{}) {
	if !ok {
		panic(fmt.Sprintf(format, a...))
	}
}

func checkErr(err error, want error, op string) {
	check(errors.Is(err, want) || (err == nil && want == nil),
		"%s: got %v, want %v", op, err, want)
}

// Fuzz runs the operations encoded in data against the file system and
// the model and panics on any divergence. It returns 1 for inputs that
// committed some writes and read something back.
func Fuzz(data []byte) int {
	dataptr := 0
	getByte := func() byte {
		if dataptr >= len(data) {
			return 0
		}
		res := data[dataptr]
		dataptr++
		return res
	}
	getUint16 := func() uint64 {
		var b [2]byte
		b[0] = getByte()
		b[1] = getByte()
		return uint64(binary.BigEndian.Uint16(b[:]))
	}
	getName := func() string {
		return string(rune('a' + getByte()%NNAMES))
	}

	fsys, err := fs.MkFs(disk.NewMemDisk(DISK_SIZE), fs.DefaultOpts())
	if err != nil {
		panic(err)
	}
	m := &model{files: make(map[string]*mfile)}
	numWrites := 0
	numReads := 0
	for dataptr < len(data) {
		cmd := getByte() % 7
		switch cmd {
		case 0:
			name := getName()
			if DEBUG {
				fmt.Printf("mknod %s\n", name)
			}
			inum, err := fsys.Mknod(common.ROOTINUM, name, 0644, 1)
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			if _, ok := m.files[name]; ok {
				checkErr(err, common.ErrExists, "mknod")
				continue
			}
			checkErr(err, nil, "mknod")
			m.files[name] = &mfile{inum: inum, blks: make(map[uint64]disk.Block)}
		case 1:
			name := getName()
			if DEBUG {
				fmt.Printf("unlink %s\n", name)
			}
			err := fsys.Unlink(common.ROOTINUM, name)
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			f, ok := m.files[name]
			if !ok {
				checkErr(err, common.ErrNotFound, "unlink")
				continue
			}
			checkErr(err, nil, "unlink")
			checkErr(fsys.Forget(f.inum), nil, "forget")
			delete(m.files, name)
		case 2:
			name := getName()
			bn := uint64(getByte() % NBLOCKS)
			n := getUint16()%disk.BlockSize + 1
			b := getByte()
			f, ok := m.files[name]
			if !ok {
				continue
			}
			if DEBUG {
				fmt.Printf("write %s %d %d\n", name, bn, n)
			}
			err := fsys.Write(f.inum, bn, bytes.Repeat([]byte{b}, int(n)))
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			checkErr(err, nil, "write")
			blk := m.block(f, bn)
			for i := uint64(0); i < n; i++ {
				blk[i] = b
			}
			f.blks[bn] = blk
			if sz := bn*disk.BlockSize + n; sz > f.size {
				f.size = sz
			}
			numWrites++
		case 3:
			name := getName()
			bn := uint64(getByte() % NBLOCKS)
			f, ok := m.files[name]
			if !ok {
				continue
			}
			if DEBUG {
				fmt.Printf("read %s %d\n", name, bn)
			}
			blk, err := fsys.Read(f.inum, bn)
			checkErr(err, nil, "read")
			check(bytes.Equal(blk, m.block(f, bn)), "read %s %d: contents differ", name, bn)
			a, err := fsys.GetAttr(f.inum)
			checkErr(err, nil, "getattr")
			check(a.Size == f.size, "size of %s: %d != %d", name, a.Size, f.size)
			numReads++
		case 4:
			name := getName()
			size := getUint16() % (NBLOCKS*disk.BlockSize + 1)
			f, ok := m.files[name]
			if !ok {
				continue
			}
			if DEBUG {
				fmt.Printf("truncate %s %d\n", name, size)
			}
			err := fsys.Truncate(f.inum, size)
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			checkErr(err, nil, "truncate")
			m.truncate(f, size)
		case 5:
			from := getName()
			to := getName()
			if DEBUG {
				fmt.Printf("rename %s %s\n", from, to)
			}
			err := fsys.Rename(common.ROOTINUM, from, common.ROOTINUM, to)
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			f, ok := m.files[from]
			if !ok {
				checkErr(err, common.ErrNotFound, "rename")
				continue
			}
			checkErr(err, nil, "rename")
			if from == to {
				continue
			}
			if victim, ok := m.files[to]; ok {
				checkErr(fsys.Forget(victim.inum), nil, "forget")
			}
			m.files[to] = f
			delete(m.files, from)
		case 6:
			if DEBUG {
				fmt.Printf("gc\n")
			}
			_, err := fsys.Gc()
			if errors.Is(err, common.ErrNoSpace) {
				return 0
			}
			checkErr(err, nil, "gc")
		}
	}

	ents, err := fsys.Readdir(common.ROOTINUM)
	checkErr(err, nil, "readdir")
	var names []string
	for _, de := range ents {
		names = append(names, de.Name)
	}
	sort.Strings(names)
	check(fmt.Sprint(names) == fmt.Sprint(m.names()), "names %v != %v", names, m.names())

	r, err := fsck.Check(fsys.Disk())
	checkErr(err, nil, "fsck")
	check(r.Ok(), "fsck: %v", r.Errors)

	if numWrites == 0 || numReads == 0 {
		return 0
	}
	return 1
}
