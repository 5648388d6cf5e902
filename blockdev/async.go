package blockdev

import (
	"fmt"
	"sync"

	"github.com/tchajed/goose/machine/disk"
)

type event struct {
	a       uint64
	blk     disk.Block
	barrier bool
}

// AsyncDisk is an in-memory disk that remembers every write and barrier
// since the last Mark, so tests can rebuild the image a crash at any
// point would have left behind.
type AsyncDisk struct {
	mu   sync.Mutex
	base []disk.Block
	cur  []disk.Block
	log  []event
}

var _ disk.Disk = (*AsyncDisk)(nil)

func NewAsyncDisk(numBlocks uint64) *AsyncDisk {
	d := &AsyncDisk{
		base: make([]disk.Block, numBlocks),
		cur:  make([]disk.Block, numBlocks),
	}
	for i := range d.cur {
		d.base[i] = make(disk.Block, disk.BlockSize)
		d.cur[i] = make(disk.Block, disk.BlockSize)
	}
	return d
}

func (d *AsyncDisk) check(a uint64) {
	if a >= uint64(len(d.cur)) {
		panic(fmt.Errorf("out-of-bounds access at %v", a))
	}
}

func (d *AsyncDisk) ReadTo(a uint64, buf disk.Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.check(a)
	copy(buf, d.cur[a])
}

func (d *AsyncDisk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *AsyncDisk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("v is not block-sized (%d bytes)", len(v)))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.check(a)
	blk := make(disk.Block, disk.BlockSize)
	copy(blk, v)
	d.cur[a] = blk
	d.log = append(d.log, event{a: a, blk: blk})
}

func (d *AsyncDisk) Barrier() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, event{barrier: true})
}

func (d *AsyncDisk) Size() uint64 {
	return uint64(len(d.cur))
}

func (d *AsyncDisk) Close() {}

// Mark makes the current contents the crash baseline and forgets the
// recorded history.
func (d *AsyncDisk) Mark() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.cur {
		d.base[i] = d.cur[i]
	}
	d.log = nil
}

// Writes returns the number of writes recorded since the last Mark.
func (d *AsyncDisk) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.log {
		if !e.barrier {
			n++
		}
	}
	return n
}

// Written returns every block written to a since the last Mark, oldest
// first.
func (d *AsyncDisk) Written(a uint64) []disk.Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	var blks []disk.Block
	for _, e := range d.log {
		if !e.barrier && e.a == a {
			blks = append(blks, e.blk)
		}
	}
	return blks
}

func (d *AsyncDisk) image(apply func(w int) bool) disk.Disk {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := disk.NewMemDisk(uint64(len(d.base)))
	for a, blk := range d.base {
		img.Write(uint64(a), blk)
	}
	w := 0
	for _, e := range d.log {
		if e.barrier {
			continue
		}
		if apply(w) {
			img.Write(e.a, e.blk)
		}
		w++
	}
	return img
}

// Crash returns the image left by a crash after the first n writes,
// with every one of them reaching the device.
func (d *AsyncDisk) Crash(n int) disk.Disk {
	return d.image(func(w int) bool { return w < n })
}

// CrashReorder is Crash where writes issued after the last barrier
// preceding write n are only durable if keep says so. Writes followed by
// a barrier before n are always durable.
func (d *AsyncDisk) CrashReorder(n int, keep func(w int) bool) disk.Disk {
	durable := d.lastBarrier(n)
	return d.image(func(w int) bool {
		if w >= n {
			return false
		}
		return w < durable || keep(w)
	})
}

// lastBarrier returns the number of writes that precede the last barrier
// issued before write n.
func (d *AsyncDisk) lastBarrier(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := 0
	durable := 0
	for _, e := range d.log {
		if e.barrier {
			durable = w
			continue
		}
		if w >= n {
			break
		}
		w++
	}
	return durable
}
