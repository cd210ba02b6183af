package parser

import (
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/davecgh/go-spew/spew"
)

func TestParseEntrySpec(t *testing.T) {
	entry, sequence, err := ParseEntrySpec("1234")
	assert.NoError(t, err)
	assert.Equal(t, uint64(1234), entry)
	assert.Nil(t, sequence)

	for _, spec := range []string{"1234-5", "0x4d2-0x5", "0X4D2-5"} {
		entry, sequence, err = ParseEntrySpec(spec)
		assert.NoError(t, err, spec)
		assert.Equal(t, uint64(1234), entry, spec)
		assert.NotNil(t, sequence, spec)
		assert.Equal(t, uint16(5), *sequence, spec)
	}

	for _, spec := range []string{"", "abc", "1-2-3", "12-", "1-70000",
		"0x1000000000000"} {
		_, _, err = ParseEntrySpec(spec)
		assert.Error(t, err, spec)
	}
}

func TestParseInode(t *testing.T) {
	entry, attr_type, id, err := ParseInode("46-128-5")
	assert.NoError(t, err)
	assert.Equal(t, uint64(46), entry)
	assert.Equal(t, ATTR_DATA, attr_type)
	assert.Equal(t, uint16(5), id)

	entry, attr_type, id, err = ParseInode("46")
	assert.NoError(t, err)
	assert.Equal(t, uint64(46), entry)
	assert.Equal(t, ATTR_DATA, attr_type)
	assert.Equal(t, uint16(0), id)

	entry, attr_type, _, err = ParseInode("46-48-2:name")
	assert.NoError(t, err)
	assert.Equal(t, ATTR_FILE_NAME, attr_type)

	for _, inode := range []string{"46-128", "a-b-c", ""} {
		_, _, _, err = ParseInode(inode)
		assert.Error(t, err, inode)
	}
}

func init() {
	time.Local = time.UTC
	spew.Config.DisablePointerAddresses = true
	spew.Config.SortKeys = true
}
