package alloc

import (
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-lfs/common"
)

// Cursor hands out numbers from a monotonically advancing cursor. The
// cursor itself lives in the caller's working superblock, so a
// discarded transaction discards the advance too. Cursor never checks
// occupancy; callers validate with a Bitmap.
type Cursor struct {
	next *uint64
	max  uint64
}

func MkCursor(next *uint64, max uint64) *Cursor {
	return &Cursor{next: next, max: max}
}

// AllocNum returns the current cursor value and advances it. It fails
// instead of wrapping once the cursor reaches max.
func (c *Cursor) AllocNum() (uint64, error) {
	n := *c.next
	if n >= c.max {
		util.DPrintf(1, "AllocNum: exhausted at %d\n", n)
		return 0, common.ErrNoSpace
	}
	*c.next = n + 1
	return n, nil
}

func (c *Cursor) Peek() uint64 {
	return *c.next
}
