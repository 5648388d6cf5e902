package imap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-lfs/common"
)

func TestCloneIsIndependent(t *testing.T) {
	assert := assert.New(t)
	m := MkImap()
	m.Set(common.ROOTINUM, 7)

	c := m.Clone()
	c.Set(common.ROOTINUM, 9)
	c.Set(2, 10)

	assert.Equal(common.Bnum(7), m.Get(common.ROOTINUM), "snapshot must not change")
	assert.Equal(common.NULLBNUM, m.Get(2))
	assert.Equal(common.Bnum(9), c.Get(common.ROOTINUM))
}

func TestEncodeDecode(t *testing.T) {
	assert := assert.New(t)
	m := MkImap()
	m.Set(common.ROOTINUM, 5)
	m.Set(common.Inum(common.NINODE-1), 42)

	d := Decode(m.Encode())
	assert.Equal(common.Bnum(5), d.Get(common.ROOTINUM))
	assert.Equal(common.Bnum(42), d.Get(common.Inum(common.NINODE-1)))

	var got []common.Inum
	d.Mapped(func(inum common.Inum, bn common.Bnum) {
		got = append(got, inum)
	})
	assert.Equal([]common.Inum{common.ROOTINUM, common.Inum(common.NINODE - 1)}, got)
}

func TestOutOfRangePanics(t *testing.T) {
	m := MkImap()
	assert.Panics(t, func() { m.Get(common.Inum(common.NINODE)) })
	assert.Panics(t, func() { m.Set(common.Inum(common.NINODE), 1) })
}
