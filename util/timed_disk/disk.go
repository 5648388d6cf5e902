package timed_disk

import (
	"io"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/util/stats"
)

type Disk struct {
	d   disk.Disk
	ops [3]stats.Op
}

func New(d disk.Disk) *Disk {
	return &Disk{d: d}
}

const (
	readOp int = iota
	writeOp
	barrierOp
)

var ops = []string{"disk.Read", "disk.Write", "disk.Barrier"}

// assert that Disk implements disk.Disk
var _ disk.Disk = &Disk{}

func (d *Disk) ReadTo(a uint64, b disk.Block) {
	copy(b, d.Read(a))
}

func (d *Disk) Read(a uint64) disk.Block {
	defer d.ops[readOp].RecordBytes(time.Now(), disk.BlockSize)
	return d.d.Read(a)
}

func (d *Disk) Write(a uint64, b disk.Block) {
	defer d.ops[writeOp].RecordBytes(time.Now(), uint64(len(b)))
	d.d.Write(a, b)
}

func (d *Disk) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {
	d.d.Close()
}

// Counts returns the number of reads, writes and barriers so far.
func (d *Disk) Counts() (reads, writes, barriers uint32) {
	return d.ops[readOp].Count(), d.ops[writeOp].Count(), d.ops[barrierOp].Count()
}

// Bytes returns the bytes read and written so far.
func (d *Disk) Bytes() (read, written uint64) {
	return d.ops[readOp].Bytes(), d.ops[writeOp].Bytes()
}

func (d *Disk) WriteStats(w io.Writer) {
	stats.WriteTable(ops, d.ops[:], w)
}

func (d *Disk) ResetStats() {
	for i := range d.ops {
		d.ops[i].Reset()
	}
}
