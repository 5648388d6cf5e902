package dcache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-lfs/common"
)

func TestDcache(t *testing.T) {
	assert := assert.New(t)
	dc := MkDcache()
	dc.Add(common.ROOTINUM, "a", 2)
	dc.Add(3, "a", 4)

	inum, ok := dc.Lookup(common.ROOTINUM, "a")
	assert.True(ok)
	assert.Equal(common.Inum(2), inum)
	inum, ok = dc.Lookup(3, "a")
	assert.True(ok)
	assert.Equal(common.Inum(4), inum, "same name, other parent")
	assert.Equal(2, dc.Len())

	assert.True(dc.Del(common.ROOTINUM, "a"))
	assert.False(dc.Del(common.ROOTINUM, "a"))
	_, ok = dc.Lookup(common.ROOTINUM, "a")
	assert.False(ok)
}
