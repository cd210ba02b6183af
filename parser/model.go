package parser

import (
	"fmt"
	"strings"
)

// An MftReference addresses an MFT entry together with the sequence
// number the entry had when the reference was written.
type MftReference struct {
	Entry    uint64 `json:"entry"`
	Sequence uint16 `json:"sequence"`
}

func NewMftReference(value uint64) MftReference {
	return MftReference{
		Entry:    value & 0xFFFFFFFFFFFF,
		Sequence: uint16(value >> 48),
	}
}

// Two references are the same only if both the entry and the
// sequence match. A sequence mismatch means the slot was reused.
func (self MftReference) Equal(other MftReference) bool {
	return self.Entry == other.Entry && self.Sequence == other.Sequence
}

func (self MftReference) String() string {
	return fmt.Sprintf("%d-%d", self.Entry, self.Sequence)
}

type FileNameNamespace uint8

const (
	NamespacePOSIX       FileNameNamespace = 0
	NamespaceWin32       FileNameNamespace = 1
	NamespaceDOS         FileNameNamespace = 2
	NamespaceWin32AndDos FileNameNamespace = 3
)

func (self FileNameNamespace) String() string {
	switch self {
	case NamespacePOSIX:
		return "POSIX"
	case NamespaceWin32:
		return "Win32"
	case NamespaceDOS:
		return "DOS"
	case NamespaceWin32AndDos:
		return "DOS+Win32"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(self))
}

func (self FileNameNamespace) MarshalText() ([]byte, error) {
	return []byte(self.String()), nil
}

// Lower is preferred when choosing the name to display.
func (self FileNameNamespace) priority() int {
	switch self {
	case NamespaceWin32:
		return 0
	case NamespaceWin32AndDos:
		return 1
	case NamespacePOSIX:
		return 2
	case NamespaceDOS:
		return 3
	}
	return 4
}

// The semantic payload of an attribute, selected by its type code.
// Implemented by *StandardInformation, *FileNameAttribute,
// *DataStream, *AttributeList, *ObjectId, *VolumeName,
// *VolumeInformation, *ReparsePoint, *IndexRoot,
// *LoggedUtilityStream and *RawContent.
type AttributeContent interface {
	ContentType() AttributeType
}

type StandardInformation struct {
	Created      WinFileTime `json:"created"`
	Modified     WinFileTime `json:"modified"`
	MftModified  WinFileTime `json:"mft_modified"`
	Accessed     WinFileTime `json:"accessed"`
	Flags        uint32      `json:"flags"`
	FlagNames    []string    `json:"flag_names"`
	MaxVersions  uint32      `json:"max_versions"`
	Version      uint32      `json:"version"`
	ClassId      uint32      `json:"class_id"`
	OwnerId      uint32      `json:"owner_id"`
	SecurityId   uint32      `json:"security_id"`
	QuotaCharged uint64      `json:"quota_charged"`
	Usn          uint64      `json:"usn"`
}

func (self *StandardInformation) ContentType() AttributeType {
	return ATTR_STANDARD_INFORMATION
}

type FileNameAttribute struct {
	Parent        MftReference      `json:"parent"`
	Created       WinFileTime       `json:"created"`
	Modified      WinFileTime       `json:"modified"`
	MftModified   WinFileTime       `json:"mft_modified"`
	Accessed      WinFileTime       `json:"accessed"`
	AllocatedSize uint64            `json:"allocated_size"`
	RealSize      uint64            `json:"real_size"`
	Flags         uint32            `json:"flags"`
	ReparseValue  uint32            `json:"reparse_value"`
	Namespace     FileNameNamespace `json:"namespace"`
	Name          string            `json:"name"`
}

func (self *FileNameAttribute) ContentType() AttributeType {
	return ATTR_FILE_NAME
}

func (self *FileNameAttribute) Extension() string {
	idx := strings.LastIndex(self.Name, ".")
	if idx <= 0 || idx == len(self.Name)-1 {
		return ""
	}
	return self.Name[idx+1:]
}

type DataStream struct {
	Name     string `json:"name"`
	Size     uint64 `json:"size"`
	Resident bool   `json:"resident"`

	// Resident Zone.Identifier streams are kept as text.
	Text string `json:"text,omitempty"`
}

func (self *DataStream) ContentType() AttributeType {
	return ATTR_DATA
}

type AttributeListEntry struct {
	Type        AttributeType `json:"type"`
	Length      uint16        `json:"length"`
	Name        string        `json:"name"`
	StartingVcn uint64        `json:"starting_vcn"`
	Reference   MftReference  `json:"reference"`
	AttributeId uint16        `json:"attribute_id"`
}

type AttributeList struct {
	Entries []AttributeListEntry `json:"entries"`
}

func (self *AttributeList) ContentType() AttributeType {
	return ATTR_ATTRIBUTE_LIST
}

type ObjectId struct {
	ObjectId      string `json:"object_id"`
	BirthVolumeId string `json:"birth_volume_id,omitempty"`
	BirthObjectId string `json:"birth_object_id,omitempty"`
	DomainId      string `json:"domain_id,omitempty"`
}

func (self *ObjectId) ContentType() AttributeType {
	return ATTR_OBJECT_ID
}

type VolumeName struct {
	Name string `json:"name"`
}

func (self *VolumeName) ContentType() AttributeType {
	return ATTR_VOLUME_NAME
}

type VolumeInformation struct {
	MajorVersion uint8  `json:"major_version"`
	MinorVersion uint8  `json:"minor_version"`
	Flags        uint16 `json:"flags"`
}

func (self *VolumeInformation) ContentType() AttributeType {
	return ATTR_VOLUME_INFORMATION
}

type ReparsePoint struct {
	Tag            uint32 `json:"tag"`
	TagName        string `json:"tag_name"`
	SubstituteName string `json:"substitute_name,omitempty"`
	PrintName      string `json:"print_name,omitempty"`
}

func (self *ReparsePoint) ContentType() AttributeType {
	return ATTR_REPARSE_POINT
}

// Target prefers the print name which is what the shell displays.
func (self *ReparsePoint) Target() string {
	if self.PrintName != "" {
		return self.PrintName
	}
	return self.SubstituteName
}

type IndexRoot struct {
	AttributeType      AttributeType `json:"attribute_type"`
	CollationRule      uint32        `json:"collation_rule"`
	IndexBlockSize     uint32        `json:"index_block_size"`
	ClustersPerBlock   uint8         `json:"clusters_per_block"`
	HasAllocationIndex bool          `json:"has_allocation_index"`
}

func (self *IndexRoot) ContentType() AttributeType {
	return ATTR_INDEX_ROOT
}

type LoggedUtilityStream struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

func (self *LoggedUtilityStream) ContentType() AttributeType {
	return ATTR_LOGGED_UTILITY_STREAM
}

type RawContent struct {
	Type AttributeType `json:"type"`
}

func (self *RawContent) ContentType() AttributeType {
	return self.Type
}

// MftEntry is one decoded FILE record.
type MftEntry struct {
	// Byte offset of the record in the MFT stream and its position.
	Offset int64 `json:"offset"`
	Index  int64 `json:"index"`

	RecordNumber          uint64       `json:"record_number"`
	SequenceNumber        uint16       `json:"sequence_number"`
	LinkCount             uint16       `json:"link_count"`
	Flags                 EntryFlags   `json:"flags"`
	LogfileSequenceNumber uint64       `json:"logfile_sequence_number"`
	BaseRecord            MftReference `json:"base_record"`
	UsedSize              uint32       `json:"used_size"`
	AllocatedSize         uint32       `json:"allocated_size"`

	// False when at least one sector failed fixup verification.
	FixupOk bool `json:"fixup_ok"`

	Attributes []*Attribute `json:"attributes"`

	StandardInformation *StandardInformation `json:"standard_information,omitempty"`
	FileNames           []*FileNameAttribute `json:"file_names"`
	DataStreams         []*DataStream        `json:"data_streams"`
	ObjectId            *ObjectId            `json:"object_id,omitempty"`
	ReparsePoint        *ReparsePoint        `json:"reparse_point,omitempty"`
	LoggedUtilityStream *LoggedUtilityStream `json:"logged_utility_stream,omitempty"`

	// The fixed up record bytes.
	raw []byte
}

func (self *MftEntry) InUse() bool {
	return self.Flags&MFT_ENTRY_IN_USE != 0
}

func (self *MftEntry) IsDir() bool {
	return self.Flags&MFT_ENTRY_IS_DIRECTORY != 0
}

func (self *MftEntry) Reference() MftReference {
	return MftReference{Entry: self.RecordNumber, Sequence: self.SequenceNumber}
}

// Extension records carry a base reference to the entry they extend.
func (self *MftEntry) IsExtension() bool {
	return self.BaseRecord.Entry != 0
}

func (self *MftEntry) Raw() []byte {
	return self.raw
}

// PrimaryFileName selects by namespace: Win32 > Win32AndDos > POSIX > DOS.
func (self *MftEntry) PrimaryFileName() *FileNameAttribute {
	var result *FileNameAttribute
	for _, fn := range self.FileNames {
		if result == nil || fn.Namespace.priority() < result.Namespace.priority() {
			result = fn
		}
	}
	return result
}

// The unnamed $DATA stream size or the primary name's size for
// entries without one.
func (self *MftEntry) FileSize() uint64 {
	for _, stream := range self.DataStreams {
		if stream.Name == "" {
			return stream.Size
		}
	}

	fn := self.PrimaryFileName()
	if fn != nil {
		return fn.RealSize
	}
	return 0
}

// Named $DATA streams other than the default stream.
func (self *MftEntry) AlternateDataStreams() []*DataStream {
	result := []*DataStream{}
	for _, stream := range self.DataStreams {
		if stream.Name != "" {
			result = append(result, stream)
		}
	}
	return result
}

func (self *MftEntry) HasADS() bool {
	return len(self.AlternateDataStreams()) > 0
}

// FindAttributes returns all attributes of the given type.
func (self *MftEntry) FindAttributes(attr_type AttributeType) []*Attribute {
	result := []*Attribute{}
	for _, attr := range self.Attributes {
		if attr.Type == attr_type {
			result = append(result, attr)
		}
	}
	return result
}

func (self *MftEntry) DebugString() string {
	result := fmt.Sprintf("MFT Entry %d-%d @ %#x (%v)\n",
		self.RecordNumber, self.SequenceNumber, self.Offset,
		self.Flags.DebugString())
	for _, attr := range self.Attributes {
		result += DebugString(attr, "  ") + "\n"
	}
	return result
}
