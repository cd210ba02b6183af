package parser

import (
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/sebdah/goldie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fragmentedRunlist = []byte{
	0x31, 0x10, 0x00, 0x01, 0x00, // 16 clusters at +256
	0x01, 0x08, // 8 sparse clusters
	0x21, 0x04, 0x00, 0x01, // 4 clusters at +256
	0x11, 0x02, 0xF0, // 2 clusters at -16
	0x00,
}

func TestDecodeRunList(t *testing.T) {
	runs, err := DecodeRunList([]byte{0x31, 0x10, 0x00, 0x01, 0x00, 0x00}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, len(runs))
	assert.Equal(t, uint64(16), runs[0].Length)
	assert.Equal(t, int64(256), runs[0].Lcn)
	assert.False(t, runs[0].Sparse)

	runs, err = DecodeRunList(fragmentedRunlist, 0)
	require.NoError(t, err)
	assert.Equal(t, []DataRun{
		{Length: 16, OffsetDelta: 256, Lcn: 256},
		{Length: 8, Lcn: -1, Sparse: true},
		{Length: 4, OffsetDelta: 256, Lcn: 512},
		{Length: 2, OffsetDelta: -16, Lcn: 496},
	}, runs)
	assert.Equal(t, uint64(30), RunsClusterCount(runs))
}

func TestDecodeRunListErrors(t *testing.T) {
	for _, data := range [][]byte{
		// Zero width length field.
		{0x30, 0x00, 0x01, 0x00},

		// Length field wider than 8 bytes.
		{0x19, 0x01},

		// Offset field runs past the end.
		{0x31, 0x10, 0x00},

		// Zero length run.
		{0x11, 0x00, 0x10},
	} {
		_, err := DecodeRunList(data, 0x100)
		assert.ErrorIs(t, err, RunlistDecodeError, "%x", data)
	}

	// Missing terminator is not an error.
	runs, err := DecodeRunList([]byte{0x11, 0x01, 0x01}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(runs))
}

func TestValidateRuns(t *testing.T) {
	runs, err := DecodeRunList(fragmentedRunlist, 0)
	require.NoError(t, err)

	assert.NoError(t, ValidateRuns(runs, 0, 29, 1000, 0))
	assert.NoError(t, ValidateRuns(runs, 0, 29, 0, 0))

	// The VCN range needs more clusters than the runs provide.
	assert.ErrorIs(t, ValidateRuns(runs, 0, 40, 0, 0), RunlistDecodeError)

	// Runs reach past the end of the volume.
	assert.ErrorIs(t, ValidateRuns(runs, 0, 29, 500, 0), RunlistDecodeError)

	negative := []DataRun{{Length: 1, OffsetDelta: -5, Lcn: -5}}
	assert.ErrorIs(t, ValidateRuns(negative, 0, 0, 0, 0), RunlistDecodeError)
}

func TestDescribeRuns(t *testing.T) {
	data := fixtures.NonResidentAttr{
		Type:            uint32(ATTR_DATA),
		Id:              3,
		VcnEnd:          29,
		Runlist:         fragmentedRunlist,
		AllocatedSize:   30 * 4096,
		RealSize:        30*4096 - 100,
		InitializedSize: 30*4096 - 100,
	}.Bytes()

	attr, err := DecodeAttribute(data, 0x38, 0)
	require.NoError(t, err)
	assert.False(t, attr.Resident)
	assert.Equal(t, uint64(30*4096-100), attr.Size())

	result := ""
	for _, run := range DescribeRuns(attr, 4096) {
		result += run.String() + "\n"
	}
	goldie.Assert(t, "DescribeRuns", []byte(result))
}
