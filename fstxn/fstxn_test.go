package fstxn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/inode"
	"github.com/mit-pdos/go-lfs/super"
)

func mkState(t *testing.T, sz uint64) *FsState {
	fs := super.MkFsSuper(disk.NewMemDisk(sz))
	require.NoError(t, Mkfs(fs, 1))
	return MkFsState(fs)
}

func TestMkfs(t *testing.T) {
	assert := assert.New(t)
	st := mkState(t, 100)
	sb := st.Super.ReadSuper()
	assert.True(sb.Formatted())
	start := st.Super.DataStart()
	assert.Equal(start+2, sb.Balloc)
	assert.Equal(uint64(2), sb.Ialloc)
	assert.Equal(start+1, sb.Imap)
	assert.Equal(start+2, st.Bbm.Count())
	assert.Equal(uint64(2), st.Ibm.Count())

	tx := st.Begin()
	root := tx.GetInode(common.ROOTINUM)
	require.NotNil(t, root)
	assert.True(root.IsDir())
	assert.Equal(uint64(2), root.Nlink)
	assert.Nil(tx.GetInode(2))
	assert.NoError(tx.Commit(false))
}

func TestMkfsTooSmall(t *testing.T) {
	fs := super.MkFsSuper(disk.NewMemDisk(4))
	assert.ErrorIs(t, Mkfs(fs, 1), common.ErrNoSpace)
}

func TestDoubleBegin(t *testing.T) {
	st := mkState(t, 100)
	tx := st.Begin()
	assert.True(t, st.InTxn())
	assert.Panics(t, func() { st.Begin() })
	tx.Abort()
	assert.False(t, st.InTxn())
	assert.Panics(t, func() { tx.Abort() })
}

func TestCommitRelocates(t *testing.T) {
	assert := assert.New(t)
	st := mkState(t, 100)
	old := st.Super.ReadSuper()
	rootBlk := st.Super.DataStart()

	tx := st.Begin()
	ip, err := tx.NewInode(0644, 2, common.ROOTINUM)
	require.NoError(t, err)
	assert.Equal(common.Inum(2), ip.Inum)
	root := tx.GetInode(common.ROOTINUM)
	root.Nlink++
	tx.PutInode(root)
	require.NoError(t, tx.Commit(true))

	sb := st.Super.ReadSuper()
	assert.NotEqual(old.Imap, sb.Imap)
	assert.Equal(uint64(3), sb.Ialloc)
	// the old root block and the old inode map are released
	assert.True(st.Bbm.IsFree(rootBlk))
	assert.True(st.Bbm.IsFree(old.Imap))
	assert.False(st.Bbm.IsFree(sb.Imap))

	tx = st.Begin()
	assert.Equal(uint64(3), tx.GetInode(common.ROOTINUM).Nlink)
	assert.NotEqual(rootBlk, tx.Imap().Get(common.ROOTINUM))
	assert.Equal(uint64(2), tx.GetInode(2).Nlink)
	tx.Abort()
}

func TestAbortReleasesAllocations(t *testing.T) {
	assert := assert.New(t)
	st := mkState(t, 100)
	old := st.Super.ReadSuper()
	nblk := st.Bbm.Count()

	tx := st.Begin()
	_, err := tx.NewInode(0644, 2, common.ROOTINUM)
	require.NoError(t, err)
	_, err = tx.WriteBlock(make(disk.Block, disk.BlockSize))
	require.NoError(t, err)
	assert.Equal(nblk+1, st.Bbm.Count())
	assert.True(st.Ibm.IsSet(2))
	tx.Abort()

	assert.Equal(nblk, st.Bbm.Count())
	assert.True(st.Ibm.IsFree(2))
	assert.Equal(old, st.Super.ReadSuper())
}

func TestAllocSkipsMarked(t *testing.T) {
	st := mkState(t, 100)
	st.Ibm.SetBit(2)
	tx := st.Begin()
	inum, err := tx.AllocInum()
	require.NoError(t, err)
	assert.Equal(t, common.Inum(3), inum)
	tx.Abort()
	assert.True(t, st.Ibm.IsSet(2), "abort only undoes its own allocations")
}

func TestCommitOutOfSpace(t *testing.T) {
	st := mkState(t, 8)
	old := st.Super.ReadSuper()
	tx := st.Begin()
	for {
		if _, err := tx.AllocBlock(); err != nil {
			assert.ErrorIs(t, err, common.ErrNoSpace)
			break
		}
	}
	root := tx.GetInode(common.ROOTINUM)
	tx.PutInode(root)
	assert.ErrorIs(t, tx.Commit(true), common.ErrNoSpace)
	assert.False(t, st.InTxn())
	assert.Equal(t, old, st.Super.ReadSuper())
	assert.Equal(t, old.Balloc, st.Bbm.Count())
}

func TestFreeInode(t *testing.T) {
	st := mkState(t, 100)
	tx := st.Begin()
	ip, err := tx.NewInode(0644, 2, common.ROOTINUM)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(true))

	tx = st.Begin()
	blk := tx.Imap().Get(ip.Inum)
	tx.FreeInode(ip.Inum)
	assert.Nil(t, tx.GetInode(ip.Inum))
	require.NoError(t, tx.Commit(true))
	assert.True(t, st.Ibm.IsFree(uint64(ip.Inum)))
	assert.True(t, st.Bbm.IsFree(blk))
}

func TestOrphansPersist(t *testing.T) {
	st := mkState(t, 100)
	tx := st.Begin()
	require.NoError(t, tx.Orphans().Append(7))
	tx.PutOrphans()
	require.NoError(t, tx.Commit(true))

	tx = st.Begin()
	assert.Equal(t, uint64(1), tx.Orphans().Size())
	assert.Equal(t, common.Inum(7), tx.Orphans().Index(0))
	tx.Abort()
}

func TestNewInodeIsFile(t *testing.T) {
	st := mkState(t, 100)
	tx := st.Begin()
	ip, err := tx.NewInode(inode.S_IFDIR|0755, 2, common.ROOTINUM)
	require.NoError(t, err)
	assert.True(t, ip.IsDir())
	assert.Same(t, ip, tx.GetInode(ip.Inum))
	tx.Abort()
}
