package dcache

import (
	"github.com/mit-pdos/go-lfs/common"
)

type key struct {
	parent common.Inum
	name   string
}

// Dcache maps (parent, name) to an inode number. It has no eviction and
// no invalidation beyond explicit Del.
type Dcache struct {
	cache map[key]common.Inum
}

func MkDcache() *Dcache {
	return &Dcache{
		cache: make(map[key]common.Inum),
	}
}

func (dc *Dcache) Add(parent common.Inum, name string, inum common.Inum) {
	dc.cache[key{parent, name}] = inum
}

func (dc *Dcache) Lookup(parent common.Inum, name string) (common.Inum, bool) {
	inum, ok := dc.cache[key{parent, name}]
	return inum, ok
}

func (dc *Dcache) Del(parent common.Inum, name string) bool {
	k := key{parent, name}
	_, ok := dc.cache[k]
	if ok {
		delete(dc.cache, k)
	}
	return ok
}

func (dc *Dcache) Len() int {
	return len(dc.cache)
}
