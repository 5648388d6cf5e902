package dir

import (
	"bytes"
	"strings"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/inode"
)

const (
	DIRENTSZ   uint64 = 64
	MAXNAMELEN        = DIRENTSZ - common.WORDSZ

	// Physical slots in a directory inode's data area.
	NDIRENT = inode.DATASZ / DIRENTSZ
)

type DirEnt struct {
	Inum common.Inum
	Name string
}

func ValidName(name string) bool {
	if len(name) == 0 || uint64(len(name)) > MAXNAMELEN {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

func slot(dip *inode.Inode, i uint64) []byte {
	off := i * DIRENTSZ
	return dip.Data[off : off+DIRENTSZ]
}

func decodeDirEnt(d []byte) DirEnt {
	inum := common.Inum(machine.UInt64Get(d[:common.WORDSZ]))
	name := d[common.WORDSZ:]
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	return DirEnt{Inum: inum, Name: string(name)}
}

func encodeDirEnt(d []byte, de DirEnt) {
	machine.UInt64Put(d[:common.WORDSZ], uint64(de.Inum))
	name := d[common.WORDSZ:]
	n := copy(name, de.Name)
	for i := n; i < len(name); i++ {
		name[i] = 0
	}
}

// Get returns the dentry in slot i; an empty slot has Inum NULLINUM.
func Get(dip *inode.Inode, i uint64) DirEnt {
	return decodeDirEnt(slot(dip, i))
}

// LookupName returns the first occupied slot holding name.
func LookupName(dip *inode.Inode, name string) (common.Inum, uint64, bool) {
	for i := uint64(0); i < NDIRENT; i++ {
		de := Get(dip, i)
		if de.Inum != common.NULLINUM && de.Name == name {
			return de.Inum, i, true
		}
	}
	return common.NULLINUM, 0, false
}

// FreeSlot returns the first empty slot among the first fanout slots.
func FreeSlot(dip *inode.Inode, fanout uint64) (uint64, bool) {
	n := util.Min(fanout, NDIRENT)
	for i := uint64(0); i < n; i++ {
		if Get(dip, i).Inum == common.NULLINUM {
			return i, true
		}
	}
	return 0, false
}

func Set(dip *inode.Inode, i uint64, inum common.Inum, name string) {
	util.DPrintf(5, "dir %d: slot %d = (%d, %q)\n", dip.Inum, i, inum, name)
	encodeDirEnt(slot(dip, i), DirEnt{Inum: inum, Name: name})
}

func Clear(dip *inode.Inode, i uint64) {
	util.DPrintf(5, "dir %d: clear slot %d\n", dip.Inum, i)
	encodeDirEnt(slot(dip, i), DirEnt{})
}

// Entries lists the occupied slots in slot order.
func Entries(dip *inode.Inode) []DirEnt {
	var ents []DirEnt
	for i := uint64(0); i < NDIRENT; i++ {
		de := Get(dip, i)
		if de.Inum != common.NULLINUM {
			ents = append(ents, de)
		}
	}
	return ents
}

func IsEmpty(dip *inode.Inode) bool {
	return len(Entries(dip)) == 0
}
