package parser

import (
	"fmt"
	"strings"
)

// These are hand written views over often used on-disk structs. All
// accessors are bounds checked and return 0 past the end of the
// underlying slice.

type AttributeType uint32

const (
	ATTR_STANDARD_INFORMATION  AttributeType = 0x10
	ATTR_ATTRIBUTE_LIST        AttributeType = 0x20
	ATTR_FILE_NAME             AttributeType = 0x30
	ATTR_OBJECT_ID             AttributeType = 0x40
	ATTR_SECURITY_DESCRIPTOR   AttributeType = 0x50
	ATTR_VOLUME_NAME           AttributeType = 0x60
	ATTR_VOLUME_INFORMATION    AttributeType = 0x70
	ATTR_DATA                  AttributeType = 0x80
	ATTR_INDEX_ROOT            AttributeType = 0x90
	ATTR_INDEX_ALLOCATION      AttributeType = 0xA0
	ATTR_BITMAP                AttributeType = 0xB0
	ATTR_REPARSE_POINT         AttributeType = 0xC0
	ATTR_EA_INFORMATION        AttributeType = 0xD0
	ATTR_EA                    AttributeType = 0xE0
	ATTR_LOGGED_UTILITY_STREAM AttributeType = 0x100

	ATTR_END AttributeType = 0xFFFFFFFF
)

func (self AttributeType) Name() string {
	switch self {
	case ATTR_STANDARD_INFORMATION:
		return "$STANDARD_INFORMATION"
	case ATTR_ATTRIBUTE_LIST:
		return "$ATTRIBUTE_LIST"
	case ATTR_FILE_NAME:
		return "$FILE_NAME"
	case ATTR_OBJECT_ID:
		return "$OBJECT_ID"
	case ATTR_SECURITY_DESCRIPTOR:
		return "$SECURITY_DESCRIPTOR"
	case ATTR_VOLUME_NAME:
		return "$VOLUME_NAME"
	case ATTR_VOLUME_INFORMATION:
		return "$VOLUME_INFORMATION"
	case ATTR_DATA:
		return "$DATA"
	case ATTR_INDEX_ROOT:
		return "$INDEX_ROOT"
	case ATTR_INDEX_ALLOCATION:
		return "$INDEX_ALLOCATION"
	case ATTR_BITMAP:
		return "$BITMAP"
	case ATTR_REPARSE_POINT:
		return "$REPARSE_POINT"
	case ATTR_EA_INFORMATION:
		return "$EA_INFORMATION"
	case ATTR_EA:
		return "$EA"
	case ATTR_LOGGED_UTILITY_STREAM:
		return "$LOGGED_UTILITY_STREAM"
	}
	return "Unknown"
}

func (self AttributeType) String() string {
	return self.Name()
}

func (self AttributeType) MarshalText() ([]byte, error) {
	return []byte(self.Name()), nil
}

// Attribute header flags.
type AttributeFlags uint16

func (self AttributeFlags) IsCompressed() bool {
	return self&0x0001 != 0
}

func (self AttributeFlags) IsEncrypted() bool {
	return self&0x4000 != 0
}

func (self AttributeFlags) IsSparse() bool {
	return self&0x8000 != 0
}

func (self AttributeFlags) DebugString() string {
	names := []string{}

	if self.IsCompressed() {
		names = append(names, "COMPRESSED")
	}
	if self.IsEncrypted() {
		names = append(names, "ENCRYPTED")
	}
	if self.IsSparse() {
		names = append(names, "SPARSE")
	}

	return fmt.Sprintf("%d (%v)", uint16(self), strings.Join(names, ","))
}

const (
	NTFS_ATTRIBUTE_RESIDENT_SIZE     = 24
	NTFS_ATTRIBUTE_NON_RESIDENT_SIZE = 64
)

type NTFS_ATTRIBUTE struct {
	b      []byte
	Offset int64
}

func NewNTFS_ATTRIBUTE(b []byte, offset int64) *NTFS_ATTRIBUTE {
	return &NTFS_ATTRIBUTE{b: b, Offset: offset}
}

func (self *NTFS_ATTRIBUTE) Type() AttributeType {
	return AttributeType(getUint32(self.b, 0))
}

func (self *NTFS_ATTRIBUTE) Length() uint32 {
	return getUint32(self.b, 4)
}

func (self *NTFS_ATTRIBUTE) IsResident() bool {
	return getUint8(self.b, 8) == 0
}

func (self *NTFS_ATTRIBUTE) name_length() uint8 {
	return getUint8(self.b, 9)
}

func (self *NTFS_ATTRIBUTE) name_offset() uint16 {
	return getUint16(self.b, 10)
}

func (self *NTFS_ATTRIBUTE) Flags() AttributeFlags {
	return AttributeFlags(getUint16(self.b, 12))
}

func (self *NTFS_ATTRIBUTE) Attribute_id() uint16 {
	return getUint16(self.b, 14)
}

func (self *NTFS_ATTRIBUTE) Content_size() uint32 {
	return getUint32(self.b, 16)
}

func (self *NTFS_ATTRIBUTE) Content_offset() uint16 {
	return getUint16(self.b, 20)
}

func (self *NTFS_ATTRIBUTE) Runlist_vcn_start() uint64 {
	return getUint64(self.b, 16)
}

func (self *NTFS_ATTRIBUTE) Runlist_vcn_end() uint64 {
	return getUint64(self.b, 24)
}

func (self *NTFS_ATTRIBUTE) Runlist_offset() uint16 {
	return getUint16(self.b, 32)
}

func (self *NTFS_ATTRIBUTE) Compression_unit_size() uint16 {
	return getUint16(self.b, 34)
}

func (self *NTFS_ATTRIBUTE) Allocated_size() uint64 {
	return getUint64(self.b, 40)
}

func (self *NTFS_ATTRIBUTE) Actual_size() uint64 {
	return getUint64(self.b, 48)
}

func (self *NTFS_ATTRIBUTE) Initialized_size() uint64 {
	return getUint64(self.b, 56)
}

func (self *NTFS_ATTRIBUTE) DebugString() string {
	result := fmt.Sprintf("struct NTFS_ATTRIBUTE @ %#x:\n", self.Offset)
	result += fmt.Sprintf("  Type: %v\n", self.Type().Name())
	result += fmt.Sprintf("  Length: %#0x\n", self.Length())
	result += fmt.Sprintf("  Resident: %v\n", self.IsResident())
	result += fmt.Sprintf("  name_length: %#0x\n", self.name_length())
	result += fmt.Sprintf("  name_offset: %#0x\n", self.name_offset())
	result += fmt.Sprintf("  Flags: %v\n", self.Flags().DebugString())
	result += fmt.Sprintf("  Attribute_id: %#0x\n", self.Attribute_id())
	if self.IsResident() {
		result += fmt.Sprintf("  Content_size: %#0x\n", self.Content_size())
		result += fmt.Sprintf("  Content_offset: %#0x\n", self.Content_offset())
	} else {
		result += fmt.Sprintf("  Runlist_vcn_start: %#0x\n", self.Runlist_vcn_start())
		result += fmt.Sprintf("  Runlist_vcn_end: %#0x\n", self.Runlist_vcn_end())
		result += fmt.Sprintf("  Runlist_offset: %#0x\n", self.Runlist_offset())
		result += fmt.Sprintf("  Compression_unit_size: %#0x\n", self.Compression_unit_size())
		result += fmt.Sprintf("  Allocated_size: %#0x\n", self.Allocated_size())
		result += fmt.Sprintf("  Actual_size: %#0x\n", self.Actual_size())
		result += fmt.Sprintf("  Initialized_size: %#0x\n", self.Initialized_size())
	}
	return result
}

// MFT entry header flags.
type EntryFlags uint16

const (
	MFT_ENTRY_IN_USE         EntryFlags = 0x0001
	MFT_ENTRY_IS_DIRECTORY   EntryFlags = 0x0002
	MFT_ENTRY_IN_EXTEND      EntryFlags = 0x0004
	MFT_ENTRY_IS_VIEW_INDEX  EntryFlags = 0x0008
	MFT_ENTRY_HEADER_SIZE               = 48
	MFT_ENTRY_MIN_FIXUP_OFFS            = 0x30
)

func (self EntryFlags) DebugString() string {
	names := []string{}

	if self&MFT_ENTRY_IN_USE != 0 {
		names = append(names, "ALLOCATED")
	} else {
		names = append(names, "UNALLOCATED")
	}
	if self&MFT_ENTRY_IS_DIRECTORY != 0 {
		names = append(names, "DIRECTORY")
	}
	if self&MFT_ENTRY_IN_EXTEND != 0 {
		names = append(names, "IN_EXTEND")
	}
	if self&MFT_ENTRY_IS_VIEW_INDEX != 0 {
		names = append(names, "VIEW_INDEX")
	}

	return strings.Join(names, ",")
}

func (self EntryFlags) MarshalText() ([]byte, error) {
	return []byte(self.DebugString()), nil
}

type MFT_ENTRY struct {
	b      []byte
	Offset int64
}

func NewMFT_ENTRY(b []byte, offset int64) *MFT_ENTRY {
	return &MFT_ENTRY{b: b, Offset: offset}
}

func (self *MFT_ENTRY) Magic() string {
	if len(self.b) < 4 {
		return ""
	}
	return string(self.b[0:4])
}

func (self *MFT_ENTRY) Fixup_offset() uint16 {
	return getUint16(self.b, 4)
}

func (self *MFT_ENTRY) Fixup_count() uint16 {
	return getUint16(self.b, 6)
}

func (self *MFT_ENTRY) Logfile_sequence_number() uint64 {
	return getUint64(self.b, 8)
}

func (self *MFT_ENTRY) Sequence_value() uint16 {
	return getUint16(self.b, 16)
}

func (self *MFT_ENTRY) Link_count() uint16 {
	return getUint16(self.b, 18)
}

func (self *MFT_ENTRY) Attribute_offset() uint16 {
	return getUint16(self.b, 20)
}

func (self *MFT_ENTRY) Flags() EntryFlags {
	return EntryFlags(getUint16(self.b, 22))
}

func (self *MFT_ENTRY) Mft_entry_size() uint32 {
	return getUint32(self.b, 24)
}

func (self *MFT_ENTRY) Mft_entry_allocated() uint32 {
	return getUint32(self.b, 28)
}

func (self *MFT_ENTRY) Base_record_reference() uint64 {
	return getUint64(self.b, 32)
}

func (self *MFT_ENTRY) Next_attribute_id() uint16 {
	return getUint16(self.b, 40)
}

// Only present when the update sequence array starts at 0x30 or later
// (Windows XP and above).
func (self *MFT_ENTRY) Record_number() (uint32, bool) {
	if self.Fixup_offset() < MFT_ENTRY_MIN_FIXUP_OFFS {
		return 0, false
	}
	return getUint32(self.b, 44), true
}

func (self *MFT_ENTRY) DebugString() string {
	result := fmt.Sprintf("struct MFT_ENTRY @ %#x:\n", self.Offset)
	result += fmt.Sprintf("  Magic: %q\n", self.Magic())
	result += fmt.Sprintf("  Fixup_offset: %#0x\n", self.Fixup_offset())
	result += fmt.Sprintf("  Fixup_count: %#0x\n", self.Fixup_count())
	result += fmt.Sprintf("  Logfile_sequence_number: %#0x\n", self.Logfile_sequence_number())
	result += fmt.Sprintf("  Sequence_value: %#0x\n", self.Sequence_value())
	result += fmt.Sprintf("  Link_count: %#0x\n", self.Link_count())
	result += fmt.Sprintf("  Attribute_offset: %#0x\n", self.Attribute_offset())
	result += fmt.Sprintf("  Flags: %v\n", self.Flags().DebugString())
	result += fmt.Sprintf("  Mft_entry_size: %#0x\n", self.Mft_entry_size())
	result += fmt.Sprintf("  Mft_entry_allocated: %#0x\n", self.Mft_entry_allocated())
	result += fmt.Sprintf("  Base_record_reference: %#0x\n", self.Base_record_reference())
	result += fmt.Sprintf("  Next_attribute_id: %#0x\n", self.Next_attribute_id())
	return result
}

// Size of the fixed part of a $FILE_NAME attribute.
const FILE_NAME_SIZE = 66

type FILE_NAME struct {
	b []byte
}

func (self *FILE_NAME) MftReference() MftReference {
	return NewMftReference(getUint64(self.b, 0))
}

func (self *FILE_NAME) Created() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 8))
}

func (self *FILE_NAME) File_modified() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 16))
}

func (self *FILE_NAME) Mft_modified() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 24))
}

func (self *FILE_NAME) File_accessed() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 32))
}

func (self *FILE_NAME) Allocated_size() uint64 {
	return getUint64(self.b, 40)
}

func (self *FILE_NAME) FilenameSize() uint64 {
	return getUint64(self.b, 48)
}

func (self *FILE_NAME) Flags() uint32 {
	return getUint32(self.b, 56)
}

func (self *FILE_NAME) Reparse_value() uint32 {
	return getUint32(self.b, 60)
}

func (self *FILE_NAME) _length_of_name() uint8 {
	return getUint8(self.b, 64)
}

func (self *FILE_NAME) NameType() FileNameNamespace {
	return FileNameNamespace(getUint8(self.b, 65))
}

func (self *FILE_NAME) Name() string {
	length := int(self._length_of_name()) * 2
	end := FILE_NAME_SIZE + length
	if end > len(self.b) {
		end = len(self.b)
	}
	if end <= FILE_NAME_SIZE {
		return ""
	}
	return ParseUTF16String(self.b[FILE_NAME_SIZE:end])
}

// $STANDARD_INFORMATION is 48 bytes on NTFS 1.2 and 72 bytes on 3.0.
const (
	STANDARD_INFORMATION_V1_SIZE = 48
	STANDARD_INFORMATION_V3_SIZE = 72
)

type STANDARD_INFORMATION struct {
	b []byte
}

func (self *STANDARD_INFORMATION) Create_time() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 0))
}

func (self *STANDARD_INFORMATION) File_altered_time() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 8))
}

func (self *STANDARD_INFORMATION) Mft_altered_time() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 16))
}

func (self *STANDARD_INFORMATION) File_accessed_time() WinFileTime {
	return NewWinFileTime(getUint64(self.b, 24))
}

func (self *STANDARD_INFORMATION) Flags() uint32 {
	return getUint32(self.b, 32)
}

func (self *STANDARD_INFORMATION) Max_versions() uint32 {
	return getUint32(self.b, 36)
}

func (self *STANDARD_INFORMATION) Version() uint32 {
	return getUint32(self.b, 40)
}

func (self *STANDARD_INFORMATION) Class_id() uint32 {
	return getUint32(self.b, 44)
}

func (self *STANDARD_INFORMATION) Owner_id() uint32 {
	return getUint32(self.b, 48)
}

func (self *STANDARD_INFORMATION) Sid_id() uint32 {
	return getUint32(self.b, 52)
}

func (self *STANDARD_INFORMATION) Quota_charged() uint64 {
	return getUint64(self.b, 56)
}

func (self *STANDARD_INFORMATION) Usn() uint64 {
	return getUint64(self.b, 64)
}

func (self *STANDARD_INFORMATION) IsV3() bool {
	return len(self.b) >= STANDARD_INFORMATION_V3_SIZE
}
