package fstxn

import (
	"sync/atomic"

	"github.com/mit-pdos/go-lfs/alloc"
	"github.com/mit-pdos/go-lfs/super"
)

// FsState is the mounted file system: geometry, the two persistent
// bitmaps and the single-open-transaction flag.
type FsState struct {
	Super *super.FsSuper
	Ibm   *alloc.Bitmap
	Bbm   *alloc.Bitmap
	open  uint32
}

func MkFsState(super *super.FsSuper) *FsState {
	return &FsState{
		Super: super,
		Ibm:   alloc.MkBitmap(super.Disk, super.BitmapInodeStart(), 1),
		Bbm: alloc.MkBitmap(super.Disk, super.BitmapBlockStart(),
			super.NBlockBitmap),
	}
}

// InTxn reports whether a transaction is open.
func (st *FsState) InTxn() bool {
	return atomic.LoadUint32(&st.open) != 0
}

func (st *FsState) Begin() *FsTxn {
	if !atomic.CompareAndSwapUint32(&st.open, 0, 1) {
		panic("Begin: transaction already open")
	}
	return begin(st)
}

func (st *FsState) end() {
	if !atomic.CompareAndSwapUint32(&st.open, 1, 0) {
		panic("end: no open transaction")
	}
}
