package client

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/dcache"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/fs"
	"github.com/mit-pdos/go-lfs/inode"
)

type CachePolicy int

const (
	// Entries are never invalidated, not even by the client's own
	// removals. Another client's unlink or rename leaves stale answers.
	CacheIncoherent CachePolicy = iota
	// Every lookup goes to the file system.
	CacheNone
	// Like CacheIncoherent, but the client drops entries for names it
	// removes or renames itself.
	CacheOwnWrites
)

func (p CachePolicy) String() string {
	switch p {
	case CacheIncoherent:
		return "incoherent"
	case CacheNone:
		return "none"
	case CacheOwnWrites:
		return "own-writes"
	}
	return fmt.Sprintf("CachePolicy(%d)", int(p))
}

func ParseCachePolicy(s string) (CachePolicy, error) {
	for _, p := range []CachePolicy{CacheIncoherent, CacheNone, CacheOwnWrites} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("cache policy %q: %w", s, common.ErrInval)
}

// Client is a front end with a private (parent, name) -> inode cache.
// Calls must be serialized by the caller, as Dfs does.
type Client struct {
	ID       uuid.UUID
	fs       *fs.Fs
	policy   CachePolicy
	cache    *dcache.Dcache
	requests uint64
}

func NewClient(fs *fs.Fs, policy CachePolicy) *Client {
	return &Client{
		ID:     uuid.New(),
		fs:     fs,
		policy: policy,
		cache:  dcache.MkDcache(),
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("client %s (%v, %d cached)", c.ID, c.policy, c.cache.Len())
}

func (c *Client) Requests() uint64 {
	return atomic.LoadUint64(&c.requests)
}

func (c *Client) request() {
	atomic.AddUint64(&c.requests, 1)
}

func (c *Client) Cached(parent common.Inum, name string) (common.Inum, bool) {
	return c.cache.Lookup(parent, name)
}

func (c *Client) remember(parent common.Inum, name string, inum common.Inum) {
	if c.policy == CacheNone {
		return
	}
	c.cache.Add(parent, name, inum)
}

func (c *Client) forget(parent common.Inum, name string) {
	if c.policy == CacheOwnWrites {
		c.cache.Del(parent, name)
	}
}

func (c *Client) Lookup(parent common.Inum, name string) (common.Inum, error) {
	c.request()
	if inum, ok := c.Cached(parent, name); ok {
		util.DPrintf(5, "%v: hit %d %q -> %d\n", c.ID, parent, name, inum)
		return inum, nil
	}
	inum, err := c.fs.Lookup(parent, name)
	if err != nil {
		return common.NULLINUM, err
	}
	c.remember(parent, name, inum)
	return inum, nil
}

func (c *Client) GetAttr(inum common.Inum) (inode.Attr, error) {
	c.request()
	return c.fs.GetAttr(inum)
}

func (c *Client) SetAttr(inum common.Inum, attr inode.Attr) error {
	c.request()
	return c.fs.SetAttr(inum, attr)
}

func (c *Client) Readdir(inum common.Inum) ([]dir.DirEnt, error) {
	c.request()
	return c.fs.Readdir(inum)
}

func (c *Client) Mknod(parent common.Inum, name string, mode uint64, mtime uint64) (common.Inum, error) {
	c.request()
	inum, err := c.fs.Mknod(parent, name, mode, mtime)
	if err != nil {
		return common.NULLINUM, err
	}
	if c.policy == CacheOwnWrites {
		c.remember(parent, name, inum)
	}
	return inum, nil
}

func (c *Client) Unlink(parent common.Inum, name string) error {
	c.request()
	c.forget(parent, name)
	return c.fs.Unlink(parent, name)
}

func (c *Client) Rmdir(parent common.Inum, name string) error {
	c.request()
	c.forget(parent, name)
	return c.fs.Rmdir(parent, name)
}

func (c *Client) Rename(oparent common.Inum, oname string, nparent common.Inum, nname string) error {
	c.request()
	c.forget(oparent, oname)
	c.forget(nparent, nname)
	return c.fs.Rename(oparent, oname, nparent, nname)
}

func (c *Client) Write(inum common.Inum, bn uint64, data []byte) error {
	c.request()
	return c.fs.Write(inum, bn, data)
}

func (c *Client) Read(inum common.Inum, bn uint64) (disk.Block, error) {
	c.request()
	return c.fs.Read(inum, bn)
}

func (c *Client) Truncate(inum common.Inum, size uint64) error {
	c.request()
	return c.fs.Truncate(inum, size)
}

func (c *Client) Forget(inum common.Inum) error {
	c.request()
	return c.fs.Forget(inum)
}
