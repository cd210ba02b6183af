package parser

import (
	"encoding/binary"
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixupRestoresSectorEnds(t *testing.T) {
	record := make([]byte, 1024)
	for i := range record {
		record[i] = byte(i)
	}
	original := append([]byte{}, record...)

	fixtures.Protect(record, 0x30)

	// Protecting overwrote the header and the array itself.
	copy(original[4:8], record[4:8])
	copy(original[0x30:0x36], record[0x30:0x36])

	result, err := ApplyFixup(record, 0x30, 3)
	require.NoError(t, err)
	assert.True(t, result.Ok())
	assert.Equal(t, uint16(fixtures.USN_VALUE), result.Signature)
	assert.Equal(t, original, result.Data)

	// Every sector end holds the array value and the array still
	// starts with the signature.
	for sector := 0; sector < 2; sector++ {
		end := (sector+1)*SECTOR_SIZE - 2
		assert.Equal(t, record[0x32+sector*2:0x34+sector*2],
			result.Data[end:end+2])
	}
	assert.Equal(t, uint16(fixtures.USN_VALUE),
		binary.LittleEndian.Uint16(result.Data[0x30:]))

	// The source buffer is never modified.
	assert.Equal(t, uint16(fixtures.USN_VALUE),
		binary.LittleEndian.Uint16(record[510:]))
}

func TestFixupMismatch(t *testing.T) {
	record := make([]byte, 1024)
	fixtures.Protect(record, 0x30)

	// Simulate a torn write of the second sector.
	record[1022] = 0xAA

	result, err := ApplyFixup(record, 0x30, 3)
	require.NoError(t, err)
	assert.False(t, result.Ok())
	assert.Equal(t, []int{1}, result.MismatchedSectors)

	// The repaired buffer is still returned.
	assert.Equal(t, []byte{0, 0}, result.Data[1022:1024])

	fixup_err := result.Err(0x400)
	kind, ok := KindOf(fixup_err)
	assert.True(t, ok)
	assert.Equal(t, FixupMismatch, kind)
	assert.ErrorIs(t, fixup_err, FixupMismatchError)
}

func TestFixupBounds(t *testing.T) {
	record := make([]byte, 1024)

	_, err := ApplyFixup(record, 1020, 3)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)

	_, err = ApplyFixup(record, 0x30, 0)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)

	// Four sectors do not fit in 1024 bytes.
	_, err = ApplyFixup(record, 0x30, 5)
	assert.ErrorIs(t, err, TruncatedRecordError)
}
