// Package fixtures builds small synthetic NTFS structures for tests.
// Everything is little endian and laid out as Windows writes it.
package fixtures

import (
	"encoding/binary"
	"time"
	"unicode/utf16"
)

const (
	ATTR_STANDARD_INFORMATION = 0x10
	ATTR_ATTRIBUTE_LIST       = 0x20
	ATTR_FILE_NAME            = 0x30
	ATTR_DATA                 = 0x80
	ATTR_INDEX_ROOT           = 0x90
	ATTR_INDEX_ALLOCATION     = 0xA0

	IN_USE       = 1
	IS_DIRECTORY = 2

	// Fixup value written over every sector end.
	USN_VALUE = 0x0102
)

var (
	// Timestamps used by default. All fall in 2020.
	Created  = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	Modified = time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)
	Changed  = time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)
	Accessed = time.Date(2020, 4, 5, 6, 7, 8, 0, time.UTC)
)

func FileTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix()+11644473600)*10000000 + uint64(t.Nanosecond()/100)
}

func UTF16(name string) []byte {
	encoded := utf16.Encode([]rune(name))
	result := make([]byte, len(encoded)*2)
	for i, c := range encoded {
		binary.LittleEndian.PutUint16(result[i*2:], c)
	}
	return result
}

func align(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

func Reference(entry uint64, sequence uint16) uint64 {
	return entry&0xFFFFFFFFFFFF | uint64(sequence)<<48
}

// StandardInformation content, version 3 layout.
func StandardInformation(flags uint32, security_id uint32) []byte {
	b := make([]byte, 72)
	binary.LittleEndian.PutUint64(b[0:], FileTime(Created))
	binary.LittleEndian.PutUint64(b[8:], FileTime(Modified))
	binary.LittleEndian.PutUint64(b[16:], FileTime(Changed))
	binary.LittleEndian.PutUint64(b[24:], FileTime(Accessed))
	binary.LittleEndian.PutUint32(b[32:], flags)
	binary.LittleEndian.PutUint32(b[52:], security_id)
	binary.LittleEndian.PutUint64(b[64:], 0x1000)
	return b
}

// FileName content. namespace is 0 POSIX, 1 Win32, 2 DOS, 3 both.
func FileName(parent uint64, parent_sequence uint16, name string,
	namespace uint8, size uint64) []byte {
	encoded := UTF16(name)
	b := make([]byte, 66+len(encoded))
	binary.LittleEndian.PutUint64(b[0:], Reference(parent, parent_sequence))
	binary.LittleEndian.PutUint64(b[8:], FileTime(Created))
	binary.LittleEndian.PutUint64(b[16:], FileTime(Modified))
	binary.LittleEndian.PutUint64(b[24:], FileTime(Changed))
	binary.LittleEndian.PutUint64(b[32:], FileTime(Accessed))
	binary.LittleEndian.PutUint64(b[40:], uint64(align(int(size), 4096)))
	binary.LittleEndian.PutUint64(b[48:], size)
	b[64] = uint8(len(encoded) / 2)
	b[65] = namespace
	copy(b[66:], encoded)
	return b
}

// Resident attribute with content at offset 24 or after the name.
func Resident(attr_type uint32, name string, id uint16, content []byte) []byte {
	encoded_name := UTF16(name)
	content_offset := align(24+len(encoded_name), 8)
	length := align(content_offset+len(content), 8)

	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], attr_type)
	binary.LittleEndian.PutUint32(b[4:], uint32(length))
	b[8] = 0
	b[9] = uint8(len(encoded_name) / 2)
	binary.LittleEndian.PutUint16(b[10:], 24)
	binary.LittleEndian.PutUint16(b[14:], id)
	binary.LittleEndian.PutUint32(b[16:], uint32(len(content)))
	binary.LittleEndian.PutUint16(b[20:], uint16(content_offset))
	copy(b[24:], encoded_name)
	copy(b[content_offset:], content)
	return b
}

type NonResidentAttr struct {
	Type            uint32
	Name            string
	Id              uint16
	VcnStart        uint64
	VcnEnd          uint64
	Runlist         []byte
	AllocatedSize   uint64
	RealSize        uint64
	InitializedSize uint64
}

func (self NonResidentAttr) Bytes() []byte {
	encoded_name := UTF16(self.Name)
	runlist_offset := align(64+len(encoded_name), 8)
	length := align(runlist_offset+len(self.Runlist)+1, 8)

	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], self.Type)
	binary.LittleEndian.PutUint32(b[4:], uint32(length))
	b[8] = 1
	b[9] = uint8(len(encoded_name) / 2)
	binary.LittleEndian.PutUint16(b[10:], 64)
	binary.LittleEndian.PutUint16(b[14:], self.Id)
	binary.LittleEndian.PutUint64(b[16:], self.VcnStart)
	binary.LittleEndian.PutUint64(b[24:], self.VcnEnd)
	binary.LittleEndian.PutUint16(b[32:], uint16(runlist_offset))
	binary.LittleEndian.PutUint64(b[40:], self.AllocatedSize)
	binary.LittleEndian.PutUint64(b[48:], self.RealSize)
	binary.LittleEndian.PutUint64(b[56:], self.InitializedSize)
	copy(b[64:], encoded_name)
	copy(b[runlist_offset:], self.Runlist)
	return b
}

// Protect writes the update sequence array at usa_offset and replaces
// the last two bytes of every sector with the sequence value.
func Protect(record []byte, usa_offset int) {
	sectors := len(record) / 512
	binary.LittleEndian.PutUint16(record[4:], uint16(usa_offset))
	binary.LittleEndian.PutUint16(record[6:], uint16(sectors+1))
	binary.LittleEndian.PutUint16(record[usa_offset:], USN_VALUE)

	for i := 0; i < sectors; i++ {
		end := (i+1)*512 - 2
		copy(record[usa_offset+2+i*2:usa_offset+4+i*2], record[end:end+2])
		binary.LittleEndian.PutUint16(record[end:], USN_VALUE)
	}
}

type Record struct {
	Number     uint32
	Sequence   uint16
	LinkCount  uint16
	Flags      uint16
	Base       uint64
	Size       int
	Attributes [][]byte
}

// Bytes lays out a FILE record of Size bytes (default 1024) with
// fixups applied.
func (self Record) Bytes() []byte {
	size := self.Size
	if size == 0 {
		size = 1024
	}

	b := make([]byte, size)
	copy(b, "FILE")
	binary.LittleEndian.PutUint64(b[8:], 0x2000)
	binary.LittleEndian.PutUint16(b[16:], self.Sequence)
	binary.LittleEndian.PutUint16(b[18:], self.LinkCount)
	binary.LittleEndian.PutUint16(b[22:], self.Flags)
	binary.LittleEndian.PutUint32(b[28:], uint32(size))
	binary.LittleEndian.PutUint64(b[32:], self.Base)
	binary.LittleEndian.PutUint16(b[40:], uint16(len(self.Attributes)))
	binary.LittleEndian.PutUint32(b[44:], self.Number)

	usa_offset := 0x30
	offset := align(usa_offset+2+2*(size/512), 8)
	binary.LittleEndian.PutUint16(b[20:], uint16(offset))

	for _, attr := range self.Attributes {
		copy(b[offset:], attr)
		offset += len(attr)
	}
	binary.LittleEndian.PutUint32(b[offset:], 0xFFFFFFFF)
	offset += 8
	binary.LittleEndian.PutUint32(b[24:], uint32(offset))

	Protect(b, usa_offset)
	return b
}

// File is an in use entry with $STANDARD_INFORMATION, one Win32
// $FILE_NAME and a resident unnamed $DATA.
func File(number uint32, sequence uint16, parent uint64,
	parent_sequence uint16, name string, data []byte) Record {
	return Record{
		Number:    number,
		Sequence:  sequence,
		LinkCount: 1,
		Flags:     IN_USE,
		Attributes: [][]byte{
			Resident(ATTR_STANDARD_INFORMATION, "", 0, StandardInformation(0x20, 0x100)),
			Resident(ATTR_FILE_NAME, "", 2, FileName(parent, parent_sequence,
				name, 1, uint64(len(data)))),
			Resident(ATTR_DATA, "", 3, data),
		},
	}
}

// Directory is an in use directory entry without an index.
func Directory(number uint32, sequence uint16, parent uint64,
	parent_sequence uint16, name string) Record {
	return Record{
		Number:    number,
		Sequence:  sequence,
		LinkCount: 1,
		Flags:     IN_USE | IS_DIRECTORY,
		Attributes: [][]byte{
			Resident(ATTR_STANDARD_INFORMATION, "", 0, StandardInformation(0x10, 0x100)),
			Resident(ATTR_FILE_NAME, "", 2, FileName(parent, parent_sequence,
				name, 1, 0)),
		},
	}
}

// MFT places each record at its record number. Unused slots are zero.
func MFT(records ...Record) []byte {
	count := 0
	for _, r := range records {
		if int(r.Number)+1 > count {
			count = int(r.Number) + 1
		}
	}

	result := make([]byte, count*1024)
	for _, r := range records {
		copy(result[int(r.Number)*1024:], r.Bytes())
	}
	return result
}

// ChainMFT holds the directory chain 5 <- 10 <- 11 <- 12 where 5 is
// the root named "root".
func ChainMFT() []byte {
	return MFT(
		Directory(5, 5, 5, 5, "root"),
		Directory(10, 1, 5, 5, "10-name"),
		Directory(11, 1, 10, 1, "11-name"),
		File(12, 1, 11, 1, "12-name", []byte("hello")),
	)
}

type Boot struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ClustersPerRecord uint8
	ClustersPerIndex  uint8
	TotalSectors      uint64
	MftCluster        uint64
	MftMirrorCluster  uint64
	SerialNumber      uint64
}

func (self Boot) Bytes() []byte {
	b := make([]byte, 512)
	b[0], b[1], b[2] = 0xEB, 0x52, 0x90
	copy(b[3:], "NTFS    ")
	binary.LittleEndian.PutUint16(b[0x0B:], self.BytesPerSector)
	b[0x0D] = self.SectorsPerCluster
	b[0x15] = 0xF8
	binary.LittleEndian.PutUint64(b[0x28:], self.TotalSectors)
	binary.LittleEndian.PutUint64(b[0x30:], self.MftCluster)
	binary.LittleEndian.PutUint64(b[0x38:], self.MftMirrorCluster)
	b[0x40] = self.ClustersPerRecord
	b[0x44] = self.ClustersPerIndex
	binary.LittleEndian.PutUint64(b[0x48:], self.SerialNumber)
	binary.LittleEndian.PutUint16(b[0x1FE:], 0xAA55)
	return b
}

// DefaultBoot is a 4096 byte cluster volume with 1024 byte records.
func DefaultBoot() Boot {
	return Boot{
		BytesPerSector:    512,
		SectorsPerCluster: 8,
		ClustersPerRecord: 0xF6,
		ClustersPerIndex:  1,
		TotalSectors:      0x100000,
		MftCluster:        0xC0000,
		MftMirrorCluster:  2,
		SerialNumber:      0x1234567890ABCDEF,
	}
}

// UsnV2 builds a version 2 record of exactly length bytes. length
// must be at least 60 plus the encoded name for a valid record.
func UsnV2(length int, usn int64, entry, parent uint64, name string,
	reason uint32) []byte {
	encoded := UTF16(name)
	if length < 60+len(encoded) {
		length = 60 + len(encoded)
	}

	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], uint32(length))
	binary.LittleEndian.PutUint16(b[4:], 2)
	binary.LittleEndian.PutUint64(b[8:], Reference(entry, 1))
	binary.LittleEndian.PutUint64(b[16:], Reference(parent, 1))
	binary.LittleEndian.PutUint64(b[24:], uint64(usn))
	binary.LittleEndian.PutUint64(b[32:], FileTime(Modified))
	binary.LittleEndian.PutUint32(b[40:], reason)
	binary.LittleEndian.PutUint32(b[52:], 0x20)
	binary.LittleEndian.PutUint16(b[56:], uint16(len(encoded)))
	binary.LittleEndian.PutUint16(b[58:], 60)
	copy(b[60:], encoded)
	return b
}

// UsnHeader is a record with only the fixed header fields, for
// records of arbitrary declared lengths and versions.
func UsnHeader(length int, major uint16) []byte {
	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], uint32(length))
	binary.LittleEndian.PutUint16(b[4:], major)
	return b
}

// Journal concatenates records, padding each to 8 bytes.
func Journal(records ...[]byte) []byte {
	result := []byte{}
	for _, r := range records {
		padded := make([]byte, align(len(r), 8))
		copy(padded, r)
		result = append(result, padded...)
	}
	return result
}

func Sid(authority uint64, sub_authorities ...uint32) []byte {
	b := make([]byte, 8+4*len(sub_authorities))
	b[0] = 1
	b[1] = uint8(len(sub_authorities))
	for i := 0; i < 6; i++ {
		b[2+i] = uint8(authority >> (8 * (5 - i)))
	}
	for i, sub := range sub_authorities {
		binary.LittleEndian.PutUint32(b[8+4*i:], sub)
	}
	return b
}

func Ace(ace_type, flags uint8, mask uint32, sid []byte) []byte {
	b := make([]byte, 8+len(sid))
	b[0] = ace_type
	b[1] = flags
	binary.LittleEndian.PutUint16(b[2:], uint16(len(b)))
	binary.LittleEndian.PutUint32(b[4:], mask)
	copy(b[8:], sid)
	return b
}

func Acl(aces ...[]byte) []byte {
	size := 8
	for _, ace := range aces {
		size += len(ace)
	}

	b := make([]byte, 8, size)
	b[0] = 2
	binary.LittleEndian.PutUint16(b[2:], uint16(size))
	binary.LittleEndian.PutUint16(b[4:], uint16(len(aces)))
	for _, ace := range aces {
		b = append(b, ace...)
	}
	return b
}

// SecurityDescriptor lays out a self relative descriptor. nil parts
// get a zero offset.
func SecurityDescriptor(owner, group, sacl, dacl []byte) []byte {
	b := make([]byte, 20)
	b[0] = 1
	control := uint16(0x8000)
	if dacl != nil {
		control |= 0x0004
	}
	if sacl != nil {
		control |= 0x0010
	}
	binary.LittleEndian.PutUint16(b[2:], control)

	parts := []struct {
		data   []byte
		offset int
	}{{owner, 4}, {group, 8}, {sacl, 12}, {dacl, 16}}

	for _, part := range parts {
		if part.data == nil {
			continue
		}
		binary.LittleEndian.PutUint32(b[part.offset:], uint32(len(b)))
		b = append(b, part.data...)
	}
	return b
}

// SDSEntry is a header plus descriptor, padded to 16 bytes.
func SDSEntry(hash, id uint32, offset uint64, descriptor []byte) []byte {
	length := 20 + len(descriptor)
	b := make([]byte, align(length, 16))
	binary.LittleEndian.PutUint32(b[0:], hash)
	binary.LittleEndian.PutUint32(b[4:], id)
	binary.LittleEndian.PutUint64(b[8:], offset)
	binary.LittleEndian.PutUint32(b[16:], uint32(length))
	copy(b[20:], descriptor)
	return b
}

const (
	INDEX_ENTRY_HAS_SUBNODE = 1
	INDEX_ENTRY_LAST        = 2
)

// IndexEntry with a $FILE_NAME key. A negative sub_node means none.
func IndexEntry(reference uint64, key []byte, flags uint32, sub_node int64) []byte {
	length := align(16+len(key), 8)
	if sub_node >= 0 {
		flags |= INDEX_ENTRY_HAS_SUBNODE
		length += 8
	}

	b := make([]byte, length)
	binary.LittleEndian.PutUint64(b[0:], reference)
	binary.LittleEndian.PutUint16(b[8:], uint16(length))
	binary.LittleEndian.PutUint16(b[10:], uint16(len(key)))
	binary.LittleEndian.PutUint32(b[12:], flags)
	copy(b[16:], key)
	if sub_node >= 0 {
		binary.LittleEndian.PutUint64(b[length-8:], uint64(sub_node))
	}
	return b
}

func indexNode(entries_offset, allocated int, entries ...[]byte) []byte {
	size := entries_offset
	for _, e := range entries {
		size += len(e)
	}
	if allocated < size {
		allocated = size
	}

	b := make([]byte, allocated)
	binary.LittleEndian.PutUint32(b[0:], uint32(entries_offset))
	binary.LittleEndian.PutUint32(b[4:], uint32(size))
	binary.LittleEndian.PutUint32(b[8:], uint32(allocated))

	offset := entries_offset
	for _, e := range entries {
		copy(b[offset:], e)
		offset += len(e)
	}
	return b
}

// IndexNode is a node header followed by entries. allocated is the
// space reserved for the node, at least its size.
func IndexNode(allocated int, entries ...[]byte) []byte {
	return indexNode(16, allocated, entries...)
}

// IndexRoot content for an $I30 index over $FILE_NAME.
func IndexRoot(block_size uint32, node []byte) []byte {
	b := make([]byte, 16, 16+len(node))
	binary.LittleEndian.PutUint32(b[0:], ATTR_FILE_NAME)
	binary.LittleEndian.PutUint32(b[4:], 1)
	binary.LittleEndian.PutUint32(b[8:], block_size)
	b[12] = 1
	return append(b, node...)
}

// IndxBlock is an INDX block of size bytes holding entries, with
// fixups applied. Entries start after the update sequence array.
func IndxBlock(vcn int64, size int, entries ...[]byte) []byte {
	b := make([]byte, size)
	copy(b, "INDX")
	binary.LittleEndian.PutUint64(b[16:], uint64(vcn))
	copy(b[24:], indexNode(0x28, size-24, entries...))

	Protect(b, 0x28)
	return b
}

// IndexedDirectory is a directory whose $I30 index has root as its
// $INDEX_ROOT node and, when runlist is set, an $INDEX_ALLOCATION of
// clusters 4k clusters.
func IndexedDirectory(number uint32, sequence uint16, parent uint64,
	parent_sequence uint16, name string, root []byte,
	runlist []byte, clusters uint64) Record {
	record := Directory(number, sequence, parent, parent_sequence, name)
	record.Attributes = append(record.Attributes,
		Resident(ATTR_INDEX_ROOT, "$I30", 4, IndexRoot(4096, root)))

	if runlist != nil {
		record.Attributes = append(record.Attributes, NonResidentAttr{
			Type:            ATTR_INDEX_ALLOCATION,
			Name:            "$I30",
			Id:              5,
			VcnEnd:          clusters - 1,
			Runlist:         runlist,
			AllocatedSize:   clusters * 4096,
			RealSize:        clusters * 4096,
			InitializedSize: clusters * 4096,
		}.Bytes())
	}
	return record
}
