package parser

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	administrators = fixtures.Sid(5, 32, 544)
	localSystem    = fixtures.Sid(5, 18)
	everyone       = fixtures.Sid(1, 0)
)

func testDescriptor() []byte {
	return fixtures.SecurityDescriptor(administrators, localSystem, nil,
		fixtures.Acl(
			fixtures.Ace(0, 0x00, 0x001F01FF, localSystem),
			fixtures.Ace(1, 0x13, 0x00120089, everyone)))
}

func TestParseSid(t *testing.T) {
	sid, err := ParseSid(administrators, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), sid.Revision)
	assert.Equal(t, uint64(5), sid.Authority)
	assert.Equal(t, []uint32{32, 544}, sid.SubAuthorities)
	assert.Equal(t, "S-1-5-32-544", sid.String)

	// Sub authorities run past the buffer.
	_, err = ParseSid(administrators[:12], 0)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)

	too_many := append([]byte{}, administrators...)
	too_many[1] = 16
	_, err = ParseSid(too_many, 0)
	assert.ErrorIs(t, err, OutOfBoundsOffsetError)
}

func TestParseSecurityDescriptor(t *testing.T) {
	blob := testDescriptor()

	sd, errs := ParseSecurityDescriptor(blob, 0)
	assert.Empty(t, errs)
	require.NotNil(t, sd)

	assert.Equal(t, "S-1-5-32-544", sd.Owner.String)
	assert.Equal(t, "S-1-5-18", sd.Group.String)
	assert.Nil(t, sd.Sacl)
	assert.Contains(t, sd.ControlNames, "DACL_PRESENT")
	assert.Contains(t, sd.ControlNames, "SELF_RELATIVE")

	require.NotNil(t, sd.Dacl)
	assert.Equal(t, uint16(2), sd.Dacl.AceCount)
	require.Equal(t, 2, len(sd.Dacl.Aces))

	// Access masks and SIDs match the input bytes exactly.
	dacl_offset := int(binary.LittleEndian.Uint32(blob[16:]))
	first := dacl_offset + 8
	assert.Equal(t, binary.LittleEndian.Uint32(blob[first+4:]),
		sd.Dacl.Aces[0].AccessMask)
	assert.Equal(t, uint32(0x001F01FF), sd.Dacl.Aces[0].AccessMask)
	assert.Equal(t, "ACCESS_ALLOWED", sd.Dacl.Aces[0].TypeName)
	assert.Equal(t, []uint32{18}, sd.Dacl.Aces[0].Sid.SubAuthorities)

	second := first + int(sd.Dacl.Aces[0].Size)
	assert.Equal(t, binary.LittleEndian.Uint32(blob[second+4:]),
		sd.Dacl.Aces[1].AccessMask)
	assert.Equal(t, "ACCESS_DENIED", sd.Dacl.Aces[1].TypeName)
	assert.Equal(t, []string{"OBJECT_INHERIT", "CONTAINER_INHERIT", "INHERITED"},
		sd.Dacl.Aces[1].FlagNames)
	assert.Equal(t, "S-1-1-0", sd.Dacl.Aces[1].Sid.String)

	assert.Equal(t, "O:S-1-5-32-544 G:S-1-5-18 D:2 ACEs", sd.Summary())
}

func TestParseSecurityDescriptorAbsentParts(t *testing.T) {
	blob := fixtures.SecurityDescriptor(administrators, nil, nil, nil)

	sd, errs := ParseSecurityDescriptor(blob, 0)
	assert.Empty(t, errs)
	assert.NotNil(t, sd.Owner)
	assert.Nil(t, sd.Group)
	assert.Nil(t, sd.Dacl)
	assert.Nil(t, sd.Sacl)

	_, errs = ParseSecurityDescriptor(blob[:10], 0x100)
	require.Equal(t, 1, len(errs))
	assert.ErrorIs(t, errs[0], TruncatedRecordError)
}

func TestParseSecurityDescriptorBadAce(t *testing.T) {
	blob := testDescriptor()

	// Claim a third ACE that is not there.
	dacl_offset := int(binary.LittleEndian.Uint32(blob[16:]))
	binary.LittleEndian.PutUint16(blob[dacl_offset+4:], 3)

	sd, errs := ParseSecurityDescriptor(blob, 0x1000)
	require.Equal(t, 1, len(errs))
	assert.ErrorIs(t, errs[0], OutOfBoundsOffsetError)

	// The good ACEs are kept.
	assert.Equal(t, 2, len(sd.Dacl.Aces))
}

func TestObjectAce(t *testing.T) {
	guid := []byte{
		0x78, 0x56, 0x34, 0x12, 0x34, 0x12, 0x78, 0x56,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, 1)
	body = append(body, guid...)
	body = append(body, everyone...)

	ace := fixtures.Ace(5, 0, 0x100, body)

	acl, errs := ParseAcl(fixtures.Acl(ace), 0)
	assert.Empty(t, errs)
	require.Equal(t, 1, len(acl.Aces))
	assert.Equal(t, "ACCESS_ALLOWED_OBJECT", acl.Aces[0].TypeName)
	assert.Equal(t, "12345678-1234-5678-0102-030405060708", acl.Aces[0].ObjectType)
	assert.Equal(t, "", acl.Aces[0].InheritedObjectType)
	assert.Equal(t, "S-1-1-0", acl.Aces[0].Sid.String)
}

func TestParseSDS(t *testing.T) {
	first := fixtures.SDSEntry(0xAAAA, 0x100, 0, testDescriptor())
	second := fixtures.SDSEntry(0xBBBB, 0x101, uint64(len(first)),
		fixtures.SecurityDescriptor(localSystem, localSystem, nil, nil))

	data := make([]byte, 2*SDS_BLOCK_SIZE+0x100)
	copy(data, first)
	copy(data[len(first):], second)

	// The mirror chunk is never read.
	copy(data[SDS_BLOCK_SIZE:], fixtures.SDSEntry(0xCCCC, 0x999, 0,
		testDescriptor()))

	// The third chunk repeats an id and adds a new one.
	third := fixtures.SDSEntry(0xDDDD, 0x102, 2*SDS_BLOCK_SIZE,
		fixtures.SecurityDescriptor(everyone, nil, nil, nil))
	copy(data[2*SDS_BLOCK_SIZE:], first)
	copy(data[2*SDS_BLOCK_SIZE+len(first):], third)

	ntfs := newTestContext()
	result := ParseSDS(context.Background(), ntfs, data)

	ids := []uint32{}
	for _, entry := range result.Entries {
		ids = append(ids, entry.Id)
	}
	assert.Equal(t, []uint32{0x100, 0x101, 0x102}, ids)
	assert.Equal(t, 0, ntfs.Diagnostics.Len())

	entry, err := result.FindById(0x101)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xBBBB), entry.Hash)
	assert.Equal(t, int64(len(first)), entry.StreamOffset)
	assert.Equal(t, "S-1-5-18", entry.Descriptor.Owner.String)

	_, err = result.FindById(0x999)
	assert.ErrorIs(t, err, NotFoundError)
}

func TestParseSDSErrors(t *testing.T) {
	good := fixtures.SDSEntry(0xAAAA, 0x100, 0, testDescriptor())

	// An impossible length skips the rest of the chunk.
	bad := fixtures.SDSEntry(0xBBBB, 0x101, 0, testDescriptor())
	binary.LittleEndian.PutUint32(bad[16:], 5)

	data := append(append([]byte{}, bad...), make([]byte, SDS_BLOCK_SIZE*2)...)
	copy(data[2*SDS_BLOCK_SIZE:], good)

	ntfs := newTestContext()
	result := ParseSDS(context.Background(), ntfs, data)
	require.Equal(t, 1, len(result.Entries))
	assert.Equal(t, uint32(0x100), result.Entries[0].Id)

	items := ntfs.Diagnostics.Items()
	require.Equal(t, 1, len(items))
	assert.Equal(t, OutOfBoundsOffset, items[0].Kind)

	// A truncated entry ends the stream.
	ntfs = newTestContext()
	result = ParseSDS(context.Background(), ntfs,
		append(append([]byte{}, good...), good[:30]...))
	assert.Equal(t, 1, len(result.Entries))
	require.Equal(t, 1, ntfs.Diagnostics.Len())
	assert.Equal(t, TruncatedRecord, ntfs.Diagnostics.Items()[0].Kind)
}
