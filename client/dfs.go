package client

import (
	"sync"

	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/exp/rand"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/dir"
	"github.com/mit-pdos/go-lfs/fs"
	"github.com/mit-pdos/go-lfs/inode"
)

// Dfs routes each request to a randomly chosen client, one request at a
// time. With the default policy the clients' caches diverge, so the
// same lookup can answer differently depending on the client picked.
type Dfs struct {
	mu      sync.Mutex
	fs      *fs.Fs
	clients []*Client
	rnd     *rand.Rand
}

func NewDfs(fs *fs.Fs, nclients int, policy CachePolicy, seed uint64) *Dfs {
	if nclients < 1 {
		nclients = 1
	}
	d := &Dfs{
		fs:  fs,
		rnd: rand.New(rand.NewSource(seed)),
	}
	for i := 0; i < nclients; i++ {
		d.clients = append(d.clients, NewClient(fs, policy))
	}
	return d
}

func (d *Dfs) Fs() *fs.Fs {
	return d.fs
}

func (d *Dfs) Clients() []*Client {
	return d.clients
}

// pick must be called with mu held.
func (d *Dfs) pick() *Client {
	c := d.clients[d.rnd.Intn(len(d.clients))]
	util.DPrintf(5, "Dfs: route to %v\n", c.ID)
	return c
}

func (d *Dfs) Lookup(parent common.Inum, name string) (common.Inum, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Lookup(parent, name)
}

func (d *Dfs) GetAttr(inum common.Inum) (inode.Attr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().GetAttr(inum)
}

func (d *Dfs) SetAttr(inum common.Inum, attr inode.Attr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().SetAttr(inum, attr)
}

func (d *Dfs) Readdir(inum common.Inum) ([]dir.DirEnt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Readdir(inum)
}

func (d *Dfs) Mknod(parent common.Inum, name string, mode uint64, mtime uint64) (common.Inum, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Mknod(parent, name, mode, mtime)
}

func (d *Dfs) Unlink(parent common.Inum, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Unlink(parent, name)
}

func (d *Dfs) Rmdir(parent common.Inum, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Rmdir(parent, name)
}

func (d *Dfs) Rename(oparent common.Inum, oname string, nparent common.Inum, nname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Rename(oparent, oname, nparent, nname)
}

func (d *Dfs) Write(inum common.Inum, bn uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Write(inum, bn, data)
}

func (d *Dfs) Read(inum common.Inum, bn uint64) (disk.Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Read(inum, bn)
}

func (d *Dfs) Truncate(inum common.Inum, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Truncate(inum, size)
}

func (d *Dfs) Forget(inum common.Inum) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pick().Forget(inum)
}

// Gc runs on the file system directly; it touches no client state.
func (d *Dfs) Gc() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fs.Gc()
}
