package parser

import (
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootSectorSizes(t *testing.T) {
	boot_data := fixtures.DefaultBoot()

	boot, err := ParseBootSector(boot_data.Bytes())
	require.NoError(t, err)

	assert.Equal(t, int64(4096), boot.ClusterSize)
	assert.Equal(t, int64(1024), boot.RecordSize)
	assert.Equal(t, int64(4096), boot.IndexBlockSize)
	assert.Equal(t, int64(0xC0000*4096), boot.MftOffset())
	assert.Equal(t, int64(0x100000*512/4096), boot.TotalClusters)
	assert.True(t, boot.EndMarkerValid)

	// A negative sectors per cluster byte is a power of two.
	boot_data.SectorsPerCluster = 0xF6
	boot, err = ParseBootSector(boot_data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(1024), boot.ClusterSize)

	// 4 clusters per record.
	boot_data = fixtures.DefaultBoot()
	boot_data.ClustersPerRecord = 4
	boot, err = ParseBootSector(boot_data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(4*4096), boot.RecordSize)

	// 0x80 is read as 128 clusters.
	boot_data = fixtures.DefaultBoot()
	boot_data.SectorsPerCluster = 0x80
	boot, err = ParseBootSector(boot_data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(128*512), boot.ClusterSize)
}

func TestBootSectorErrors(t *testing.T) {
	_, err := ParseBootSector(nil)
	assert.ErrorIs(t, err, EmptyBufferError)

	data := fixtures.DefaultBoot().Bytes()

	_, err = ParseBootSector(data[:100])
	assert.ErrorIs(t, err, TruncatedRecordError)

	bad_oem := append([]byte{}, data...)
	copy(bad_oem[3:], "MSDOS5.0")
	_, err = ParseBootSector(bad_oem)
	assert.ErrorIs(t, err, SignatureMismatchError)

	bad_sector := fixtures.DefaultBoot()
	bad_sector.BytesPerSector = 500
	_, err = ParseBootSector(bad_sector.Bytes())
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)
}
