package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8
	WORDSZ    uint64 = 8
	NWORDBLK  uint64 = disk.BlockSize / WORDSZ

	// One inode map block, one word per inode.
	NINODE uint64 = NWORDBLK

	// Orphan block: word 0 holds the count.
	NORPHAN uint64 = NWORDBLK - 1

	SUPERBLOCK     Bnum = 0
	INODEBITMAPBLK Bnum = 1
	BLOCKBITMAPBLK Bnum = 2
)

type Inum uint64
type Bnum = uint64

const (
	NULLINUM Inum = 0
	ROOTINUM Inum = 1
	NULLBNUM Bnum = 0
)
