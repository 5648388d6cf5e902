package dir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-lfs/common"
	"github.com/mit-pdos/go-lfs/inode"
)

func mkDir() *inode.Inode {
	return inode.MkInode(common.ROOTINUM, inode.S_IFDIR|0755, 0, common.ROOTINUM)
}

func TestSlots(t *testing.T) {
	assert.Equal(t, uint64(63), NDIRENT)
	assert.Equal(t, uint64(56), MAXNAMELEN)
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("a"))
	assert.True(t, ValidName(strings.Repeat("x", 56)))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(strings.Repeat("x", 57)))
	assert.False(t, ValidName("a/b"))
	assert.False(t, ValidName("a\x00"))
}

func TestSetLookupClear(t *testing.T) {
	assert := assert.New(t)
	dip := mkDir()

	_, _, ok := LookupName(dip, "a")
	assert.False(ok)

	i, ok := FreeSlot(dip, NDIRENT)
	require.True(t, ok)
	Set(dip, i, 5, "a")
	j, ok := FreeSlot(dip, NDIRENT)
	require.True(t, ok)
	assert.NotEqual(i, j)
	Set(dip, j, 6, "bb")

	inum, s, ok := LookupName(dip, "bb")
	assert.True(ok)
	assert.Equal(common.Inum(6), inum)
	assert.Equal(j, s)
	assert.Len(Entries(dip), 2)

	Clear(dip, i)
	_, _, ok = LookupName(dip, "a")
	assert.False(ok)
	assert.False(IsEmpty(dip))
	Clear(dip, j)
	assert.True(IsEmpty(dip))
}

func TestShorterNameOverwrites(t *testing.T) {
	dip := mkDir()
	Set(dip, 0, 5, "longname")
	Set(dip, 0, 5, "ab")
	assert.Equal(t, DirEnt{Inum: 5, Name: "ab"}, Get(dip, 0))
}

func TestFanout(t *testing.T) {
	dip := mkDir()
	Set(dip, 0, 2, "x")
	Set(dip, 1, 3, "y")
	_, ok := FreeSlot(dip, 2)
	assert.False(t, ok)
	i, ok := FreeSlot(dip, 3)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), i)
}

func TestSurvivesEncode(t *testing.T) {
	dip := mkDir()
	Set(dip, 4, 9, "file")
	d := inode.Decode(dip.Encode(), dip.Inum)
	inum, s, ok := LookupName(d, "file")
	assert.True(t, ok)
	assert.Equal(t, common.Inum(9), inum)
	assert.Equal(t, uint64(4), s)
}
