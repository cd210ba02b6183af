package parser

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An index entry for name in directory 11 of fixtures.ChainMFT().
func indexEntry(entry uint64, name string, sub_node int64) []byte {
	return fixtures.IndexEntry(fixtures.Reference(entry, 1),
		fixtures.FileName(11, 1, name, 1, 0), 0, sub_node)
}

func lastEntry(sub_node int64) []byte {
	return fixtures.IndexEntry(0, nil, INDEX_ENTRY_LAST, sub_node)
}

func entryNames(entries []*IndexEntry) []string {
	result := []string{}
	for _, e := range entries {
		if e.FileNameAttribute != nil {
			result = append(result, e.Name)
		}
	}
	sort.Strings(result)
	return result
}

func testIndexRoot(sub_node int64) []byte {
	return fixtures.IndexRoot(4096, fixtures.IndexNode(0,
		indexEntry(20, "a.txt", -1),
		indexEntry(21, "m.txt", sub_node),
		lastEntry(-1)))
}

func TestParseIndexRoot(t *testing.T) {
	block := fixtures.IndxBlock(1, 4096,
		indexEntry(22, "b.txt", -1),
		indexEntry(23, "c.txt", -1),
		indexEntry(24, "d.txt", -1),
		lastEntry(-1))

	ntfs := newTestContext()
	source := NewStreamBlockSource(block, 4096)
	assert.Equal(t, []int64{1}, source.VCNs())

	entries := ParseIndexRoot(context.Background(), ntfs,
		testIndexRoot(1), source, nil)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt", "m.txt"},
		entryNames(entries))
	assert.Equal(t, 0, ntfs.Diagnostics.Len())

	// Root entries come first and carry no VCN.
	assert.Equal(t, int64(-1), entries[0].NodeVcn)
	assert.Equal(t, uint64(20), entries[0].FileReference.Entry)
	assert.True(t, entries[1].HasSubNode)
	assert.Equal(t, int64(1), entries[1].SubNodeVcn)
	assert.Equal(t, int64(1), entries[2].NodeVcn)
}

func TestParseIndexRootWithoutAllocation(t *testing.T) {
	ntfs := newTestContext()
	entries := ParseIndexRoot(context.Background(), ntfs,
		testIndexRoot(-1), nil, nil)
	assert.Equal(t, []string{"a.txt", "m.txt"}, entryNames(entries))
}

func TestIndexSubNodeCycle(t *testing.T) {
	// VCN 1 points at itself and at VCN 2, which points back at 1.
	data := append(
		fixtures.IndxBlock(1, 4096,
			indexEntry(22, "b.txt", 1),
			lastEntry(2)),
		fixtures.IndxBlock(2, 4096,
			indexEntry(23, "c.txt", 1),
			lastEntry(1))...)

	ntfs := newTestContext()
	entries := ParseIndexRoot(context.Background(), ntfs,
		testIndexRoot(1), NewStreamBlockSource(data, 4096), nil)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "m.txt"},
		entryNames(entries))
	assert.Equal(t, 0, ntfs.Diagnostics.Len())
}

func TestIndexMissingSubNode(t *testing.T) {
	ntfs := newTestContext()
	entries := ParseIndexRoot(context.Background(), ntfs,
		testIndexRoot(7), NewStreamBlockSource(nil, 4096), nil)

	assert.Equal(t, []string{"a.txt", "m.txt"}, entryNames(entries))
	items := ntfs.Diagnostics.Items()
	require.Equal(t, 1, len(items))
	assert.Equal(t, OutOfBoundsOffset, items[0].Kind)
}

func TestIndexAllocationInconsistent(t *testing.T) {
	bad := fixtures.IndxBlock(1, 4096, indexEntry(22, "b.txt", -1), lastEntry(-1))

	// Node size larger than the block.
	binary.LittleEndian.PutUint32(bad[INDX_NODE_HEADER_OFFSET+4:], 0x10000)

	good := fixtures.IndxBlock(2, 4096, indexEntry(23, "c.txt", -1), lastEntry(-1))

	ntfs := newTestContext()
	entries := ParseI30Stream(context.Background(), ntfs,
		append(bad, good...), nil)

	// The bad node is abandoned, the walk continues.
	assert.Equal(t, []string{"c.txt"}, entryNames(entries))
	items := ntfs.Diagnostics.Items()
	require.Equal(t, 1, len(items))
	assert.Equal(t, AllocationInconsistent, items[0].Kind)
}

func TestIndexEntryOverrun(t *testing.T) {
	block := fixtures.IndxBlock(1, 4096, indexEntry(22, "b.txt", -1), lastEntry(-1))

	// The first entry claims to run past the node.
	entries_start := INDX_NODE_HEADER_OFFSET + 0x28
	binary.LittleEndian.PutUint16(block[entries_start+8:], 0x2000)

	ntfs := newTestContext()
	entries := ParseI30Stream(context.Background(), ntfs, block, nil)
	assert.Empty(t, entries)
	require.Equal(t, 1, ntfs.Diagnostics.Len())
	assert.Equal(t, AllocationInconsistent, ntfs.Diagnostics.Items()[0].Kind)
}

func TestParseI30Stream(t *testing.T) {
	data := append(
		fixtures.IndxBlock(0, 4096,
			indexEntry(20, "a.txt", -1),
			lastEntry(1)),
		fixtures.IndxBlock(1, 4096,
			indexEntry(22, "b.txt", -1),
			indexEntry(23, "c.txt", -1),
			lastEntry(-1))...)

	ntfs := newTestContext()
	mft := ParseMFT(context.Background(), ntfs, fixtures.ChainMFT())
	resolver := NewPathResolver(mft, GetDefaultOptions())

	entries := ParseI30Stream(context.Background(), ntfs, data, resolver)
	require.Equal(t, 3, len(entries))
	assert.Equal(t, "root/10-name/11-name/a.txt", entries[0].FullPath)
	assert.Equal(t, "root/10-name/11-name/c.txt", entries[2].FullPath)
	assert.Equal(t, int64(4096), entries[1].Offset-
		int64(INDX_NODE_HEADER_OFFSET+0x28))
	assert.Equal(t, 0, ntfs.Diagnostics.Len())
}

func TestParseI30StreamNoBlocks(t *testing.T) {
	ntfs := newTestContext()
	entries := ParseI30Stream(context.Background(), ntfs, make([]byte, 8192), nil)
	assert.Empty(t, entries)
	require.Equal(t, 1, ntfs.Diagnostics.Len())
	assert.Equal(t, SignatureMismatch, ntfs.Diagnostics.Items()[0].Kind)
}

func TestIndexFixupMismatch(t *testing.T) {
	block := fixtures.IndxBlock(0, 4096, indexEntry(20, "a.txt", -1), lastEntry(-1))

	// Corrupt the sequence value at the end of the third sector.
	block[3*512-2] = 0xFF

	ntfs := newTestContext()
	entries := ParseI30Stream(context.Background(), ntfs, block, nil)
	assert.Equal(t, []string{"a.txt"}, entryNames(entries))
	require.Equal(t, 1, ntfs.Diagnostics.Len())
	assert.Equal(t, FixupMismatch, ntfs.Diagnostics.Items()[0].Kind)
}

func TestCarveSlack(t *testing.T) {
	first := indexEntry(20, "a.txt", -1)
	block := fixtures.IndxBlock(0, 4096, first, lastEntry(-1))

	// A deleted entry left behind the end of the node.
	slack := INDX_NODE_HEADER_OFFSET + 0x28 + len(first) + INDEX_ENTRY_HEADER_SIZE
	copy(block[slack:], indexEntry(30, "deleted.txt", -1))

	ntfs := newTestContext()
	entries := ParseI30Stream(context.Background(), ntfs, block, nil)
	assert.Equal(t, []string{"a.txt"}, entryNames(entries))

	options := GetDefaultOptions()
	options.CarveSlack = true
	ntfs = NewNTFSContext(options)
	entries = ParseI30Stream(context.Background(), ntfs, block, nil)
	require.Equal(t, 2, len(entries))
	assert.False(t, entries[0].IsSlack)
	assert.True(t, entries[1].IsSlack)
	assert.Equal(t, "deleted.txt", entries[1].Name)
	assert.Equal(t, uint64(30), entries[1].FileReference.Entry)
	assert.Equal(t, int64(slack), entries[1].Offset)
}

func TestCarveSlackWideNames(t *testing.T) {
	first := indexEntry(20, "a.txt", -1)
	block := fixtures.IndxBlock(0, 4096, first, lastEntry(-1))

	// Two adjacent deleted entries. The first name needs more UTF-8
	// bytes than UTF-16 code units.
	slack := INDX_NODE_HEADER_OFFSET + 0x28 + len(first) + INDEX_ENTRY_HEADER_SIZE
	wide := indexEntry(30, "日本語テキスト文書", -1)
	copy(block[slack:], wide)
	copy(block[slack+len(wide):], indexEntry(31, "second.txt", -1))

	options := GetDefaultOptions()
	options.CarveSlack = true
	ntfs := NewNTFSContext(options)
	entries := ParseI30Stream(context.Background(), ntfs, block, nil)
	assert.Equal(t, []string{"a.txt", "second.txt", "日本語テキスト文書"},
		entryNames(entries))
	require.Equal(t, 3, len(entries))
	assert.Equal(t, uint64(31), entries[2].FileReference.Entry)
	assert.Equal(t, int64(slack+len(wide)), entries[2].Offset)
}

func TestRunlistBlockSource(t *testing.T) {
	cluster_size := int64(4096)
	image := make([]byte, 10*cluster_size)
	copy(image[3*cluster_size:], fixtures.IndxBlock(0, 4096,
		indexEntry(20, "a.txt", -1), lastEntry(1)))
	copy(image[7*cluster_size:], fixtures.IndxBlock(1, 4096,
		indexEntry(22, "b.txt", -1), lastEntry(-1)))

	runs := []DataRun{
		{Length: 1, Lcn: 3},
		{Length: 1, Lcn: 7},
		{Length: 2, Sparse: true},
	}
	source := NewRunlistBlockSource(bytes.NewReader(image), runs,
		cluster_size, 4096)

	block, offset, err := source.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), offset)
	assert.Equal(t, "INDX", string(block[:4]))

	_, _, err = source.ReadBlock(2)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)

	_, _, err = source.ReadBlock(9)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)

	root := fixtures.IndexRoot(4096, fixtures.IndexNode(0, lastEntry(0)))
	ntfs := newTestContext()
	entries := ParseIndexRoot(context.Background(), ntfs, root, source, nil)
	assert.Equal(t, []string{"a.txt", "b.txt"}, entryNames(entries))
}

func TestRunlistBlockSourceSmallBlocks(t *testing.T) {
	// Blocks smaller than a cluster are addressed in sectors.
	image := make([]byte, 4*4096)
	copy(image[4096+1024:], fixtures.IndxBlock(2, 1024,
		indexEntry(20, "a.txt", -1), lastEntry(-1)))

	source := NewRunlistBlockSource(bytes.NewReader(image),
		[]DataRun{{Length: 2, Lcn: 1}}, 4096, 1024)

	block, offset, err := source.ReadBlock(2)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), offset)
	assert.Equal(t, 1024, len(block))
	assert.Equal(t, uint64(2), getUint64(block, 16))
}

func TestRunlistBlockSourceTruncated(t *testing.T) {
	source := NewRunlistBlockSource(bytes.NewReader(make([]byte, 6000)),
		[]DataRun{{Length: 4, Lcn: 1}}, 4096, 4096)

	_, _, err := source.ReadBlock(0)
	assert.ErrorIs(t, err, TruncatedRecordError)
}

func TestParseDirectoryIndexNoRoot(t *testing.T) {
	data := fixtures.File(12, 1, 5, 5, "file.txt", []byte("x")).Bytes()
	entry, _, err := ParseMFTEntry(data, 0, 12)
	require.NoError(t, err)

	_, err = ParseDirectoryIndex(context.Background(), newTestContext(),
		entry, nil, nil)
	assert.ErrorIs(t, err, NotFoundError)
}
