package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-lfs/client"
	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/fs"
	"github.com/mit-pdos/go-lfs/util/timed_disk"
)

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

// smallfile is one iteration: create a file, write to it, remove it.
func smallfile(d *client.Dfs, name string, data []byte) error {
	inum, err := d.Mknod(common.ROOTINUM, name, 0644, uint64(time.Now().Unix()))
	if err != nil {
		return err
	}
	if err := d.Write(inum, 0, data); err != nil {
		return err
	}
	if err := d.Unlink(common.ROOTINUM, name); err != nil {
		return err
	}
	return d.Forget(inum)
}

// bench formats a fresh disk every run; point it at a scratch image.
func bench(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	dev, err := openDisk(cfg)
	if err != nil {
		return err
	}
	td := timed_disk.New(dev)
	if err := fs.Mkfs(td); err != nil {
		td.Close()
		return err
	}
	fsys, err := fs.Mount(td, cfg.FsOpts())
	if err != nil {
		td.Close()
		return err
	}
	defer fsys.Close()
	d := client.NewDfs(fsys, cfg.Clients, cfg.CachePolicy(), cfg.Seed)

	data := mkdata(100)
	n := ctx.Int("n")
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := smallfile(d, fmt.Sprintf("x%d", i), data); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		// the orphan list holds a bounded number of entries
		if (i+1)%int(common.NORPHAN/2) == 0 {
			if _, err := d.Gc(); err != nil {
				return err
			}
		}
	}
	if _, err := d.Gc(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Printf("smallfile: %d files in %v (%0.1f us/file)\n", n, elapsed,
		float64(elapsed.Microseconds())/float64(n))
	fsys.WriteOpStats(os.Stdout)
	td.WriteStats(os.Stdout)
	return nil
}
