package parser

import (
	"fmt"
	"io"
)

type Attribute struct {
	Type     AttributeType  `json:"type"`
	Offset   int64          `json:"offset"`
	Length   uint32         `json:"length"`
	Resident bool           `json:"resident"`
	Name     string         `json:"name"`
	Flags    AttributeFlags `json:"flags"`
	Id       uint16         `json:"id"`
	Inode    string         `json:"inode"`

	// Resident attributes only.
	Content     []byte `json:"-"`
	ContentSize uint32 `json:"content_size,omitempty"`

	// Non-resident attributes only.
	VcnStart        uint64    `json:"vcn_start,omitempty"`
	VcnEnd          uint64    `json:"vcn_end,omitempty"`
	CompressionUnit uint16    `json:"compression_unit,omitempty"`
	AllocatedSize   uint64    `json:"allocated_size,omitempty"`
	RealSize        uint64    `json:"real_size,omitempty"`
	InitializedSize uint64    `json:"initialized_size,omitempty"`
	Runs            []DataRun `json:"runs,omitempty"`

	// Set when the run list could not be decoded. The attribute
	// content is then unavailable.
	RunlistError string `json:"runlist_error,omitempty"`

	View AttributeContent `json:"view,omitempty"`
}

// Logical size of the attribute content.
func (self *Attribute) Size() uint64 {
	if self.Resident {
		return uint64(self.ContentSize)
	}
	return self.RealSize
}

func (self *Attribute) ContentAvailable() bool {
	return self.RunlistError == ""
}

func (self *Attribute) DebugString() string {
	result := fmt.Sprintf("%v %q (id %d) @ %#x length %d",
		self.Type.Name(), self.Name, self.Id, self.Offset, self.Length)
	if self.Resident {
		result += fmt.Sprintf(" resident %d bytes", self.ContentSize)
	} else {
		result += fmt.Sprintf(" VCN %d-%d size %d/%d/%d runs %d",
			self.VcnStart, self.VcnEnd, self.AllocatedSize,
			self.RealSize, self.InitializedSize, len(self.Runs))
	}
	if self.RunlistError != "" {
		result += " (" + self.RunlistError + ")"
	}
	return result
}

// AttributeIterator walks the attributes of a fixed up record. It
// is finite and cannot be restarted: every call either advances past
// one attribute or ends the iteration.
type AttributeIterator struct {
	record      []byte
	offset      int
	end         int
	base_offset int64
	done        bool
}

// NewAttributeIterator starts at first_offset and never reads past
// used_size or the end of the record, whichever comes first.
// base_offset is the record position used in errors.
func NewAttributeIterator(record []byte, first_offset int,
	used_size int, base_offset int64) *AttributeIterator {
	end := len(record)
	if used_size > 0 && used_size < end {
		end = used_size
	}

	return &AttributeIterator{
		record:      record,
		offset:      first_offset,
		end:         end,
		base_offset: base_offset,
	}
}

// Next returns the next attribute. It returns io.EOF at the end
// marker or the end of the used area. An attribute may be returned
// together with an error when only part of it failed to decode (for
// example its run list); a nil attribute with an error means the
// attribute was skipped.
func (self *AttributeIterator) Next() (*Attribute, error) {
	if self.done {
		return nil, io.EOF
	}

	offset := self.offset
	if offset < 0 || offset+4 > self.end {
		self.done = true
		return nil, io.EOF
	}

	if AttributeType(getUint32(self.record, offset)) == ATTR_END {
		self.done = true
		return nil, io.EOF
	}

	if offset+16 > self.end {
		self.done = true
		return nil, newParseError(OutOfBoundsOffset,
			self.base_offset+int64(offset), "attribute header truncated")
	}

	length := int(getUint32(self.record, offset+4))
	if length < 16 || length > self.end-offset {
		self.done = true
		return nil, newParseError(OutOfBoundsOffset,
			self.base_offset+int64(offset),
			"attribute length %d exceeds record", length)
	}

	self.offset += length
	STATS.Inc_NTFS_ATTRIBUTE()

	return DecodeAttribute(self.record[offset:offset+length],
		int64(offset), self.base_offset)
}

// Collect drains the iterator.
func (self *AttributeIterator) Collect(cb func(err error)) []*Attribute {
	result := []*Attribute{}
	for {
		attr, err := self.Next()
		if err == io.EOF {
			return result
		}
		if err != nil && cb != nil {
			cb(err)
		}
		if attr != nil {
			result = append(result, attr)
		}
	}
}

// DecodeAttribute decodes one attribute from data which spans exactly
// the attribute's declared length.
func DecodeAttribute(data []byte, offset int64, base_offset int64) (*Attribute, error) {
	header := NewNTFS_ATTRIBUTE(data, offset)
	error_offset := base_offset + offset

	result := &Attribute{
		Type:     header.Type(),
		Offset:   offset,
		Length:   header.Length(),
		Resident: header.IsResident(),
		Flags:    header.Flags(),
		Id:       header.Attribute_id(),
	}

	if header.name_length() > 0 {
		name, err := getSlice(data, int(header.name_offset()),
			int(header.name_length())*2)
		if err != nil {
			return nil, newParseError(OutOfBoundsOffset, error_offset,
				"%v name outside attribute", result.Type.Name())
		}
		result.Name = ParseUTF16String(name)
	}

	if result.Resident {
		if len(data) < NTFS_ATTRIBUTE_RESIDENT_SIZE {
			return nil, newParseError(OutOfBoundsOffset, error_offset,
				"resident header truncated")
		}

		content, err := getSlice(data, int(header.Content_offset()),
			int(header.Content_size()))
		if err != nil {
			return nil, newParseError(OutOfBoundsOffset, error_offset,
				"%v content at %#x size %d outside attribute of %d bytes",
				result.Type.Name(), header.Content_offset(),
				header.Content_size(), len(data))
		}
		result.Content = content
		result.ContentSize = header.Content_size()

	} else {
		if len(data) < NTFS_ATTRIBUTE_NON_RESIDENT_SIZE {
			return nil, newParseError(OutOfBoundsOffset, error_offset,
				"non-resident header truncated")
		}

		result.VcnStart = header.Runlist_vcn_start()
		result.VcnEnd = header.Runlist_vcn_end()
		result.CompressionUnit = header.Compression_unit_size()
		result.AllocatedSize = header.Allocated_size()
		result.RealSize = header.Actual_size()
		result.InitializedSize = header.Initialized_size()

		runlist_offset := int(header.Runlist_offset())
		if runlist_offset < NTFS_ATTRIBUTE_NON_RESIDENT_SIZE ||
			runlist_offset > len(data) {
			err := newParseError(RunlistDecode, error_offset,
				"run list offset %#x outside attribute", runlist_offset)
			result.RunlistError = err.Error()
			result.View = decodeContent(result)
			return result, err
		}

		runs, err := DecodeRunList(data[runlist_offset:],
			error_offset+int64(runlist_offset))
		if err != nil {
			result.RunlistError = err.Error()
			result.View = decodeContent(result)
			return result, err
		}
		result.Runs = runs
	}

	result.View = decodeContent(result)
	return result, nil
}

// decodeContent builds the semantic view for the attribute type.
// Malformed content falls back to a raw view.
func decodeContent(attr *Attribute) AttributeContent {
	raw := &RawContent{Type: attr.Type}

	switch attr.Type {
	case ATTR_DATA:
		stream := &DataStream{
			Name:     attr.Name,
			Size:     attr.Size(),
			Resident: attr.Resident,
		}
		if attr.Resident && attr.Name == "Zone.Identifier" {
			stream.Text = string(attr.Content)
		}
		return stream

	case ATTR_LOGGED_UTILITY_STREAM:
		return &LoggedUtilityStream{Name: attr.Name, Size: attr.Size()}
	}

	if !attr.Resident {
		return raw
	}

	content := attr.Content
	switch attr.Type {
	case ATTR_STANDARD_INFORMATION:
		if si := NewStandardInformation(content); si != nil {
			return si
		}

	case ATTR_FILE_NAME:
		if fn := NewFileNameAttribute(content); fn != nil {
			return fn
		}

	case ATTR_ATTRIBUTE_LIST:
		return decodeAttributeList(content)

	case ATTR_OBJECT_ID:
		if len(content) >= 16 {
			result := &ObjectId{ObjectId: formatGUID(content[0:16])}
			if len(content) >= 64 {
				result.BirthVolumeId = formatGUID(content[16:32])
				result.BirthObjectId = formatGUID(content[32:48])
				result.DomainId = formatGUID(content[48:64])
			}
			return result
		}

	case ATTR_VOLUME_NAME:
		return &VolumeName{Name: ParseUTF16String(content)}

	case ATTR_VOLUME_INFORMATION:
		if len(content) >= 12 {
			return &VolumeInformation{
				MajorVersion: content[8],
				MinorVersion: content[9],
				Flags:        getUint16(content, 10),
			}
		}

	case ATTR_REPARSE_POINT:
		if rp := decodeReparsePoint(content); rp != nil {
			return rp
		}

	case ATTR_INDEX_ROOT:
		if len(content) >= 32 {
			return &IndexRoot{
				AttributeType:      AttributeType(getUint32(content, 0)),
				CollationRule:      getUint32(content, 4),
				IndexBlockSize:     getUint32(content, 8),
				ClustersPerBlock:   content[12],
				HasAllocationIndex: getUint8(content, 28)&1 != 0,
			}
		}
	}

	return raw
}

func NewStandardInformation(content []byte) *StandardInformation {
	if len(content) < STANDARD_INFORMATION_V1_SIZE {
		return nil
	}

	si := &STANDARD_INFORMATION{b: content}
	result := &StandardInformation{
		Created:     si.Create_time(),
		Modified:    si.File_altered_time(),
		MftModified: si.Mft_altered_time(),
		Accessed:    si.File_accessed_time(),
		Flags:       si.Flags(),
		FlagNames:   FileAttributeNames(si.Flags()),
		MaxVersions: si.Max_versions(),
		Version:     si.Version(),
		ClassId:     si.Class_id(),
	}

	if si.IsV3() {
		result.OwnerId = si.Owner_id()
		result.SecurityId = si.Sid_id()
		result.QuotaCharged = si.Quota_charged()
		result.Usn = si.Usn()
	}
	return result
}

// NewFileNameAttribute decodes $FILE_NAME content, as found both in
// MFT entries and index entry keys.
func NewFileNameAttribute(content []byte) *FileNameAttribute {
	if len(content) < FILE_NAME_SIZE {
		return nil
	}

	fn := &FILE_NAME{b: content}
	if FILE_NAME_SIZE+int(fn._length_of_name())*2 > len(content) {
		return nil
	}

	return &FileNameAttribute{
		Parent:        fn.MftReference(),
		Created:       fn.Created(),
		Modified:      fn.File_modified(),
		MftModified:   fn.Mft_modified(),
		Accessed:      fn.File_accessed(),
		AllocatedSize: fn.Allocated_size(),
		RealSize:      fn.FilenameSize(),
		Flags:         fn.Flags(),
		ReparseValue:  fn.Reparse_value(),
		Namespace:     fn.NameType(),
		Name:          fn.Name(),
	}
}

func decodeAttributeList(content []byte) *AttributeList {
	result := &AttributeList{}

	for offset := 0; offset+26 <= len(content); {
		length := int(getUint16(content, offset+4))
		if length < 26 || offset+length > len(content) {
			break
		}

		entry := AttributeListEntry{
			Type:        AttributeType(getUint32(content, offset)),
			Length:      uint16(length),
			StartingVcn: getUint64(content, offset+8),
			Reference:   NewMftReference(getUint64(content, offset+16)),
			AttributeId: getUint16(content, offset+24),
		}

		name_length := int(content[offset+6]) * 2
		name_offset := int(content[offset+7])
		if name_length > 0 && name_offset+name_length <= length {
			entry.Name = ParseUTF16String(
				content[offset+name_offset : offset+name_offset+name_length])
		}

		result.Entries = append(result.Entries, entry)
		offset += length
	}

	return result
}

const (
	IO_REPARSE_TAG_MOUNT_POINT = 0xA0000003
	IO_REPARSE_TAG_SYMLINK     = 0xA000000C
)

var reparseTagNames = map[uint32]string{
	IO_REPARSE_TAG_MOUNT_POINT: "MOUNT_POINT",
	IO_REPARSE_TAG_SYMLINK:     "SYMLINK",
	0x80000017:                 "WOF",
	0x8000001B:                 "APPEXECLINK",
	0x80000014:                 "NFS",
	0x80000023:                 "AF_UNIX",
	0x9000001A:                 "CLOUD",
	0x80000013:                 "DEDUP",
}

func decodeReparsePoint(content []byte) *ReparsePoint {
	if len(content) < 8 {
		return nil
	}

	result := &ReparsePoint{Tag: getUint32(content, 0)}
	result.TagName = reparseTagNames[result.Tag]
	if result.TagName == "" {
		result.TagName = fmt.Sprintf("%#x", result.Tag)
	}

	buffer_offset := 0
	switch result.Tag {
	case IO_REPARSE_TAG_MOUNT_POINT:
		buffer_offset = 16
	case IO_REPARSE_TAG_SYMLINK:
		buffer_offset = 20
	default:
		return result
	}

	names := content[8:]
	path_buffer, err := getSlice(content, buffer_offset,
		len(content)-buffer_offset)
	if err != nil {
		return result
	}

	substitute, err := getSlice(path_buffer,
		int(getUint16(names, 0)), int(getUint16(names, 2)))
	if err == nil {
		result.SubstituteName = ParseUTF16String(substitute)
	}

	print_name, err := getSlice(path_buffer,
		int(getUint16(names, 4)), int(getUint16(names, 6)))
	if err == nil {
		result.PrintName = ParseUTF16String(print_name)
	}

	return result
}
