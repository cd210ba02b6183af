package parser

import (
	"context"
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFor(t *testing.T, options Options, records ...fixtures.Record) *PathResolver {
	ntfs := NewNTFSContext(options)
	mft := ParseMFT(context.Background(), ntfs, fixtures.MFT(records...))
	require.Equal(t, 0, ntfs.Diagnostics.Len())
	return NewPathResolver(mft, options)
}

func TestFullPathChain(t *testing.T) {
	ntfs := newTestContext()
	mft := ParseMFT(context.Background(), ntfs, fixtures.ChainMFT())
	resolver := NewPathResolver(mft, GetDefaultOptions())

	path, err := resolver.FullPath(12)
	require.NoError(t, err)
	assert.Equal(t, "root/10-name/11-name/12-name", path)

	// Second lookup is served from the cache.
	path, err = resolver.FullPath(12)
	require.NoError(t, err)
	assert.Equal(t, "root/10-name/11-name/12-name", path)
	hits, _ := resolver.Stats().Get("Hits")
	assert.Equal(t, 1, hits)

	path, err = resolver.ResolveChild(MftReference{Entry: 11, Sequence: 1}, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "root/10-name/11-name/new.txt", path)
}

func TestFullPathPrefix(t *testing.T) {
	options := GetDefaultOptions()
	options.PrefixComponents = []string{"C:"}

	ntfs := NewNTFSContext(options)
	mft := ParseMFT(context.Background(), ntfs, fixtures.ChainMFT())
	resolver := NewPathResolver(mft, options)

	path, err := resolver.FullPath(11)
	require.NoError(t, err)
	assert.Equal(t, "C:/root/10-name/11-name", path)
}

func TestFullPathCycle(t *testing.T) {
	options := GetDefaultOptions()
	options.MaxDirectoryDepth = 16

	// 11 and 12 are each other's parent.
	resolver := resolverFor(t, options,
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "10-name"),
		fixtures.Directory(11, 1, 12, 1, "11-name"),
		fixtures.Directory(12, 1, 11, 1, "12-name"))

	path, err := resolver.FullPath(12)
	assert.ErrorIs(t, err, CycleDetectedError)
	assert.Equal(t, "<CycleDetected>/12", path)

	// Unrelated entries still resolve.
	path, err = resolver.FullPath(10)
	assert.NoError(t, err)
	assert.Equal(t, "root/10-name", path)
}

func TestFullPathStaleParent(t *testing.T) {
	resolver := resolverFor(t, GetDefaultOptions(),
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 2, 5, 5, "reused"),
		fixtures.File(11, 1, 10, 1, "orphan.txt", nil),
		fixtures.File(13, 1, 40, 1, "lost.txt", nil))

	// The parent slot was reused so the chain stops there without an
	// error.
	path, err := resolver.FullPath(11)
	assert.NoError(t, err)
	assert.Equal(t, "<Err>/<Parent 10-2 need 1>/orphan.txt", path)

	path, err = resolver.FullPath(13)
	assert.NoError(t, err)
	assert.Equal(t, "<Err>/<Parent 40 missing>/lost.txt", path)

	path, err = resolver.FullPath(99)
	assert.NoError(t, err)
	assert.Equal(t, "<Err>/<Entry 99 missing>", path)

	path, _ = resolver.ResolveParent(MftReference{Entry: 10, Sequence: 1})
	assert.Equal(t, "<Err>/<Parent 10-2 need 1>", path)
}

func TestLinks(t *testing.T) {
	file := fixtures.File(12, 1, 10, 1, "a.txt", nil)
	file.Attributes = append(file.Attributes,
		fixtures.Resident(uint32(ATTR_FILE_NAME), "", 4,
			fixtures.FileName(11, 1, "b.txt", 1, 0)),
		fixtures.Resident(uint32(ATTR_FILE_NAME), "", 5,
			fixtures.FileName(10, 1, "A~1.TXT", 2, 0)))

	records := []fixtures.Record{
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "dir1"),
		fixtures.Directory(11, 1, 5, 5, "dir2"),
		file,
	}

	resolver := resolverFor(t, GetDefaultOptions(), records...)
	assert.Equal(t, []string{"root/dir1/a.txt", "root/dir2/b.txt"},
		resolver.Links(12))

	options := GetDefaultOptions()
	options.IncludeShortNames = true
	resolver = resolverFor(t, options, records...)
	assert.Equal(t, []string{"root/dir1/a.txt", "root/dir2/b.txt",
		"root/dir1/A~1.TXT"}, resolver.Links(12))

	options.MaxLinks = 1
	resolver = resolverFor(t, options, records...)
	assert.Equal(t, []string{"root/dir1/a.txt"}, resolver.Links(12))

	assert.Nil(t, resolver.Links(99))
}

func TestExtensionRecordNames(t *testing.T) {
	extension := fixtures.Record{
		Number:   20,
		Sequence: 1,
		Flags:    fixtures.IN_USE,
		Base:     fixtures.Reference(12, 1),
		Attributes: [][]byte{
			fixtures.Resident(uint32(ATTR_FILE_NAME), "", 1,
				fixtures.FileName(5, 5, "second.txt", 1, 0)),
		},
	}

	resolver := resolverFor(t, GetDefaultOptions(),
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "dir"),
		fixtures.File(12, 1, 10, 1, "first.txt", nil),
		extension)

	assert.Equal(t, []string{"root/dir/first.txt", "root/second.txt"},
		resolver.Links(12))

	_, pres := resolver.GetSummary(20)
	assert.False(t, pres)
}
