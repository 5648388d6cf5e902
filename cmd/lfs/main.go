package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mit-pdos/go-journal/util"
	"github.com/rodaine/table"
	"github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-lfs/blockdev"
	"github.com/mit-pdos/go-lfs/client"
	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/config"
	"github.com/mit-pdos/go-lfs/fs"
	"github.com/mit-pdos/go-lfs/fsck"
	"github.com/mit-pdos/go-lfs/inode"
)

func main() {
	app := cli.App{
		Name:  "lfs",
		Usage: "operate on a log-structured file system image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file"},
			&cli.StringFlag{Name: "disk", Usage: "disk image or device"},
			&cli.Uint64Flag{Name: "blocks", Usage: "disk size in blocks"},
			&cli.Uint64Flag{Name: "debug", Usage: "debug level"},
			&cli.BoolFlag{Name: "stats", Usage: "print operation statistics"},
		},
		Commands: []*cli.Command{{
			Name:   "mkfs",
			Usage:  "format the disk",
			Action: mkfs,
		}, {
			Name:   "fsck",
			Usage:  "check the disk for consistency",
			Action: check,
		}, {
			Name:   "stat",
			Usage:  "print superblock and allocation counts",
			Action: withDfs(stat),
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[path]",
			Action:    withDfs(ls),
		}, {
			Name:      "mknod",
			Usage:     "create a file or directory",
			ArgsUsage: "path",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "dir", Usage: "create a directory"},
				&cli.Uint64Flag{Name: "mode", Value: 0644, Usage: "permission bits"},
			},
			Action: withDfs(mknod),
		}, {
			Name:      "write",
			Usage:     "write data at the start of a file block",
			ArgsUsage: "path block data",
			Action:    withDfs(write),
		}, {
			Name:      "cat",
			Usage:     "print a file",
			ArgsUsage: "path",
			Action:    withDfs(cat),
		}, {
			Name:      "rm",
			Usage:     "remove a file",
			ArgsUsage: "path",
			Action:    withDfs(rm),
		}, {
			Name:      "rmdir",
			Usage:     "remove an empty directory",
			ArgsUsage: "path",
			Action:    withDfs(rmdir),
		}, {
			Name:      "mv",
			Usage:     "rename",
			ArgsUsage: "old new",
			Action:    withDfs(mv),
		}, {
			Name:   "gc",
			Usage:  "reclaim orphaned inodes",
			Action: withDfs(gc),
		}, {
			Name:  "bench",
			Usage: "create, write and remove small files",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "n", Value: 100, Usage: "files"},
			},
			Action: bench,
		}},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("disk") {
		cfg.Disk = ctx.String("disk")
	}
	if ctx.IsSet("blocks") {
		cfg.Blocks = ctx.Uint64("blocks")
	}
	if ctx.IsSet("debug") {
		cfg.Debug = ctx.Uint64("debug")
	}
	if ctx.IsSet("stats") {
		cfg.Stats = ctx.Bool("stats")
	}
	cfg.Apply()
	return cfg, nil
}

func openDisk(cfg *config.Config) (disk.Disk, error) {
	if cfg.Disk == "" {
		util.DPrintf(1, "no disk configured, using %d-block memory disk\n", cfg.Blocks)
		return disk.NewMemDisk(cfg.Blocks), nil
	}
	fd, err := blockdev.OpenFileDisk(cfg.Disk, cfg.Blocks)
	if err != nil {
		return nil, err
	}
	return fd, nil
}

func mkfs(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	d, err := openDisk(cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fs.Mkfs(d)
}

func check(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	d, err := openDisk(cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	r, err := fsck.Check(d)
	if err != nil {
		return err
	}
	r.Print(os.Stdout)
	if !r.Ok() {
		return cli.Exit(fmt.Sprintf("%d errors", len(r.Errors)), 1)
	}
	return nil
}

func withDfs(f func(d *client.Dfs, ctx *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		dev, err := openDisk(cfg)
		if err != nil {
			return err
		}
		fsys, err := fs.Mount(dev, cfg.FsOpts())
		if err != nil {
			dev.Close()
			return fmt.Errorf("mount: %w", err)
		}
		defer fsys.Close()
		d := client.NewDfs(fsys, cfg.Clients, cfg.CachePolicy(), cfg.Seed)
		err = f(d, ctx)
		if cfg.Stats {
			fsys.WriteOpStats(os.Stdout)
		}
		return err
	}
}

func split(path string) []string {
	var names []string
	for _, n := range strings.Split(path, "/") {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

func resolve(d *client.Dfs, path string) (common.Inum, error) {
	inum := common.ROOTINUM
	for _, name := range split(path) {
		next, err := d.Lookup(inum, name)
		if err != nil {
			return common.NULLINUM, fmt.Errorf("%s: %w", path, err)
		}
		inum = next
	}
	return inum, nil
}

func resolveParent(d *client.Dfs, path string) (common.Inum, string, error) {
	names := split(path)
	if len(names) == 0 {
		return common.NULLINUM, "", fmt.Errorf("%q: %w", path, common.ErrInval)
	}
	parent, err := resolve(d, strings.Join(names[:len(names)-1], "/"))
	if err != nil {
		return common.NULLINUM, "", err
	}
	return parent, names[len(names)-1], nil
}

func stat(d *client.Dfs, ctx *cli.Context) error {
	st := d.Fs().Statfs()
	tbl := table.New("", "total", "free", "next")
	tbl.AddRow("blocks", st.Blocks, st.FreeBlocks, st.NextBlock)
	tbl.AddRow("inodes", st.Inodes, st.FreeInodes, st.NextInode)
	tbl.AddRow("orphans", st.Orphans, "", "")
	tbl.Print()
	return nil
}

func ls(d *client.Dfs, ctx *cli.Context) error {
	inum, err := resolve(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	ents, err := d.Readdir(inum)
	if err != nil {
		return err
	}
	tbl := table.New("name", "inum", "mode", "nlink", "size", "mtime")
	for _, de := range ents {
		a, err := d.GetAttr(de.Inum)
		if err != nil {
			return fmt.Errorf("%s: %w", de.Name, err)
		}
		tbl.AddRow(de.Name, de.Inum, fmt.Sprintf("%o", a.Mode), a.Nlink, a.Size,
			time.Unix(int64(a.Mtime), 0).Format(time.RFC3339))
	}
	tbl.Print()
	return nil
}

func mknod(d *client.Dfs, ctx *cli.Context) error {
	parent, name, err := resolveParent(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	mode := ctx.Uint64("mode")
	if ctx.Bool("dir") {
		mode |= inode.S_IFDIR
	}
	inum, err := d.Mknod(parent, name, mode, uint64(time.Now().Unix()))
	if err != nil {
		return err
	}
	fmt.Println(inum)
	return nil
}

func write(d *client.Dfs, ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "write")
	}
	inum, err := resolve(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	var bn uint64
	if _, err := fmt.Sscan(ctx.Args().Get(1), &bn); err != nil {
		return fmt.Errorf("block %q: %w", ctx.Args().Get(1), common.ErrInval)
	}
	return d.Write(inum, bn, []byte(ctx.Args().Get(2)))
}

func cat(d *client.Dfs, ctx *cli.Context) error {
	inum, err := resolve(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	a, err := d.GetAttr(inum)
	if err != nil {
		return err
	}
	for bn := uint64(0); bn < a.Blocks; bn++ {
		blk, err := d.Read(inum, bn)
		if err != nil {
			return err
		}
		n := util.Min(disk.BlockSize, a.Size-bn*disk.BlockSize)
		os.Stdout.Write(blk[:n])
	}
	return nil
}

// rm also drops the reference an open handle would hold, so gc can
// reclaim the file.
func rm(d *client.Dfs, ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	inum, err := resolve(d, path)
	if err != nil {
		return err
	}
	parent, name, err := resolveParent(d, path)
	if err != nil {
		return err
	}
	if err := d.Unlink(parent, name); err != nil {
		return err
	}
	return d.Forget(inum)
}

func rmdir(d *client.Dfs, ctx *cli.Context) error {
	parent, name, err := resolveParent(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	return d.Rmdir(parent, name)
}

func mv(d *client.Dfs, ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "mv")
	}
	op, on, err := resolveParent(d, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	np, nn, err := resolveParent(d, ctx.Args().Get(1))
	if err != nil {
		return err
	}
	return d.Rename(op, on, np, nn)
}

func gc(d *client.Dfs, ctx *cli.Context) error {
	n, err := d.Gc()
	if err != nil {
		return err
	}
	fmt.Printf("freed %d inodes\n", n)
	return nil
}
