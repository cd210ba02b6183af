package parser

import (
	"context"
	"fmt"
	"strings"
)

// The $Secure:$SDS stream is written in 256kb chunks, each followed
// by a mirror copy of itself. Entries are 16 byte aligned.
const (
	SDS_HEADER_SIZE    = 20
	SDS_BLOCK_SIZE     = 0x40000
	SDS_MAX_ENTRY_SIZE = 0x10000
	SDS_ALIGNMENT      = 16

	SECURITY_DESCRIPTOR_HEADER_SIZE = 20
	ACL_HEADER_SIZE                 = 8
	ACE_HEADER_SIZE                 = 8
	SID_MAX_SUB_AUTHORITIES         = 15
)

type Sid struct {
	Revision       uint8    `json:"revision"`
	Authority      uint64   `json:"authority"`
	SubAuthorities []uint32 `json:"sub_authorities"`
	String         string   `json:"string"`
}

func (self *Sid) format() string {
	result := fmt.Sprintf("S-%d-", self.Revision)
	if self.Authority >= 1<<32 {
		result += fmt.Sprintf("0x%012X", self.Authority)
	} else {
		result += fmt.Sprintf("%d", self.Authority)
	}

	for _, sub := range self.SubAuthorities {
		result += fmt.Sprintf("-%d", sub)
	}
	return result
}

type Ace struct {
	Type       uint8    `json:"type"`
	TypeName   string   `json:"type_name"`
	Flags      uint8    `json:"flags"`
	FlagNames  []string `json:"flag_names"`
	Size       uint16   `json:"size"`
	AccessMask uint32   `json:"access_mask"`

	// Object ACEs only.
	ObjectFlags         uint32 `json:"object_flags,omitempty"`
	ObjectType          string `json:"object_type,omitempty"`
	InheritedObjectType string `json:"inherited_object_type,omitempty"`

	Sid *Sid `json:"sid"`
}

type Acl struct {
	Revision uint8  `json:"revision"`
	Size     uint16 `json:"size"`
	AceCount uint16 `json:"ace_count"`
	Aces     []*Ace `json:"aces"`
}

// A nil Owner, Group, Dacl or Sacl means the descriptor stored a zero
// offset for it.
type SecurityDescriptor struct {
	Revision     uint8    `json:"revision"`
	Control      uint16   `json:"control"`
	ControlNames []string `json:"control_names"`
	Owner        *Sid     `json:"owner"`
	Group        *Sid     `json:"group"`
	Dacl         *Acl     `json:"dacl"`
	Sacl         *Acl     `json:"sacl"`
}

type SecurityDescriptorEntry struct {
	Hash   uint32 `json:"hash"`
	Id     uint32 `json:"id"`
	Offset uint64 `json:"offset"`
	Length uint32 `json:"length"`

	// Where the entry was found in the stream.
	StreamOffset int64 `json:"stream_offset"`

	Descriptor *SecurityDescriptor `json:"descriptor"`
}

// ParseSid decodes a SID at offset within data.
func ParseSid(data []byte, offset int) (*Sid, error) {
	header, err := getSlice(data, offset, 8)
	if err != nil {
		return nil, err
	}

	count := int(header[1])
	if count > SID_MAX_SUB_AUTHORITIES {
		return nil, newParseError(OutOfBoundsOffset, int64(offset),
			"SID with %d sub authorities", count)
	}

	subs, err := getSlice(data, offset+8, count*4)
	if err != nil {
		return nil, err
	}

	result := &Sid{
		Revision:       header[0],
		SubAuthorities: make([]uint32, 0, count),
	}

	// The authority is a 48 bit big endian value.
	for _, c := range header[2:8] {
		result.Authority = result.Authority<<8 | uint64(c)
	}

	for i := 0; i < count; i++ {
		result.SubAuthorities = append(result.SubAuthorities, getUint32(subs, i*4))
	}

	result.String = result.format()
	return result, nil
}

func isObjectAce(ace_type uint8) bool {
	switch ace_type {
	case 5, 6, 7, 8, 11, 12, 15, 16:
		return true
	}
	return false
}

// ParseAcl decodes an ACL at offset within data. Malformed ACEs end
// the ACL early; the ACEs decoded so far are kept.
func ParseAcl(data []byte, offset int) (*Acl, []error) {
	header, err := getSlice(data, offset, ACL_HEADER_SIZE)
	if err != nil {
		return nil, []error{err}
	}

	result := &Acl{
		Revision: header[0],
		Size:     getUint16(header, 2),
		AceCount: getUint16(header, 4),
	}

	errs := []error{}
	acl_end := offset + int(result.Size)
	if acl_end > len(data) || int(result.Size) < ACL_HEADER_SIZE {
		errs = append(errs, newParseError(OutOfBoundsOffset, int64(offset),
			"ACL size %d exceeds descriptor", result.Size))
		acl_end = len(data)
	}

	position := offset + ACL_HEADER_SIZE
	for i := 0; i < int(result.AceCount); i++ {
		if position+ACE_HEADER_SIZE > acl_end {
			errs = append(errs, newParseError(OutOfBoundsOffset, int64(position),
				"ACE %d of %d outside ACL", i, result.AceCount))
			break
		}

		size := int(getUint16(data, position+2))
		if size < ACE_HEADER_SIZE || position+size > acl_end {
			errs = append(errs, newParseError(OutOfBoundsOffset, int64(position),
				"ACE %d size %d outside ACL", i, size))
			break
		}

		ace, err := parseAce(data[position:position+size], position)
		if err != nil {
			errs = append(errs, err)
		} else {
			result.Aces = append(result.Aces, ace)
		}
		position += size
	}

	return result, errs
}

func parseAce(data []byte, offset int) (*Ace, error) {
	result := &Ace{
		Type:       data[0],
		TypeName:   aceTypeName(data[0]),
		Flags:      data[1],
		FlagNames:  flagNames(uint32(data[1]), aceFlags),
		Size:       getUint16(data, 2),
		AccessMask: getUint32(data, 4),
	}

	sid_offset := 8
	if isObjectAce(result.Type) {
		result.ObjectFlags = getUint32(data, 8)
		sid_offset = 12
		if result.ObjectFlags&1 != 0 {
			guid, err := getSlice(data, sid_offset, 16)
			if err != nil {
				return nil, newParseError(OutOfBoundsOffset, int64(offset),
					"object ACE type GUID truncated")
			}
			result.ObjectType = formatGUID(guid)
			sid_offset += 16
		}
		if result.ObjectFlags&2 != 0 {
			guid, err := getSlice(data, sid_offset, 16)
			if err != nil {
				return nil, newParseError(OutOfBoundsOffset, int64(offset),
					"object ACE inherited type GUID truncated")
			}
			result.InheritedObjectType = formatGUID(guid)
			sid_offset += 16
		}
	}

	sid, err := ParseSid(data, sid_offset)
	if err != nil {
		return nil, newParseError(OutOfBoundsOffset, int64(offset),
			"ACE SID: %v", err)
	}
	result.Sid = sid
	return result, nil
}

// ParseSecurityDescriptor decodes a self relative descriptor. Offsets
// inside it are relative to the start of blob. base_offset locates the
// blob for error reporting.
func ParseSecurityDescriptor(blob []byte, base_offset int64) (*SecurityDescriptor, []error) {
	if len(blob) < SECURITY_DESCRIPTOR_HEADER_SIZE {
		return nil, []error{newParseError(TruncatedRecord, base_offset,
			"security descriptor of %d bytes", len(blob))}
	}

	result := &SecurityDescriptor{
		Revision: blob[0],
		Control:  getUint16(blob, 2),
	}
	result.ControlNames = flagNames(uint32(result.Control), sdControlFlags)

	errs := []error{}
	relocate := func(err error, what string) error {
		if kind, ok := KindOf(err); ok {
			offset := base_offset
			if parse_error, ok := err.(*ParseError); ok {
				offset += parse_error.Offset
			}
			return newParseError(kind, offset, "%v: %v", what, err)
		}
		return err
	}

	owner_offset := int(getUint32(blob, 4))
	if owner_offset != 0 {
		sid, err := ParseSid(blob, owner_offset)
		if err != nil {
			errs = append(errs, relocate(err, "owner"))
		}
		result.Owner = sid
	}

	group_offset := int(getUint32(blob, 8))
	if group_offset != 0 {
		sid, err := ParseSid(blob, group_offset)
		if err != nil {
			errs = append(errs, relocate(err, "group"))
		}
		result.Group = sid
	}

	sacl_offset := int(getUint32(blob, 12))
	if sacl_offset != 0 {
		acl, acl_errs := ParseAcl(blob, sacl_offset)
		for _, err := range acl_errs {
			errs = append(errs, relocate(err, "SACL"))
		}
		result.Sacl = acl
	}

	dacl_offset := int(getUint32(blob, 16))
	if dacl_offset != 0 {
		acl, acl_errs := ParseAcl(blob, dacl_offset)
		for _, err := range acl_errs {
			errs = append(errs, relocate(err, "DACL"))
		}
		result.Dacl = acl
	}

	STATS.Inc_SECURITY_DESCRIPTOR()
	return result, errs
}

type SDSResult struct {
	Entries []*SecurityDescriptorEntry

	by_id map[uint32]*SecurityDescriptorEntry
}

func (self *SDSResult) FindById(id uint32) (*SecurityDescriptorEntry, error) {
	entry, pres := self.by_id[id]
	if !pres {
		return nil, fmt.Errorf("%w: security id %d", NotFoundError, id)
	}
	return entry, nil
}

func nextSDSBlock(offset int) int {
	return (offset/SDS_BLOCK_SIZE + 1) * SDS_BLOCK_SIZE
}

// ParseSDS walks the primary chunks of a $SDS stream. Mirror chunks
// are skipped and entries are de-duplicated by security id.
func ParseSDS(ctx context.Context, ntfs *NTFSContext, data []byte) *SDSResult {
	result := &SDSResult{
		by_id: make(map[uint32]*SecurityDescriptorEntry),
	}

	index := int64(0)
	for cursor := 0; cursor+SDS_HEADER_SIZE <= len(data); {
		select {
		case <-ctx.Done():
			DebugPrint("ParseSDS: stopped at %#x: %v\n", cursor, ctx.Err())
			return result
		default:
		}

		if (cursor/SDS_BLOCK_SIZE)%2 == 1 {
			cursor = nextSDSBlock(cursor)
			continue
		}

		entry := &SecurityDescriptorEntry{
			Hash:         getUint32(data, cursor),
			Id:           getUint32(data, cursor+4),
			Offset:       getUint64(data, cursor+8),
			Length:       getUint32(data, cursor+16),
			StreamOffset: int64(cursor),
		}

		// The rest of the chunk is padding.
		if entry.Length == 0 {
			cursor = nextSDSBlock(cursor)
			continue
		}

		if entry.Length < SDS_HEADER_SIZE || entry.Length > SDS_MAX_ENTRY_SIZE {
			ntfs.Diagnostics.Add(index, newParseError(OutOfBoundsOffset,
				int64(cursor), "SDS entry length %d", entry.Length))
			cursor = nextSDSBlock(cursor)
			continue
		}

		if cursor+int(entry.Length) > len(data) {
			ntfs.Diagnostics.Add(index, newParseError(TruncatedRecord,
				int64(cursor), "SDS entry length %d exceeds the %d remaining bytes",
				entry.Length, len(data)-cursor))
			break
		}

		blob := data[cursor+SDS_HEADER_SIZE : cursor+int(entry.Length)]
		descriptor, errs := ParseSecurityDescriptor(
			blob, int64(cursor+SDS_HEADER_SIZE))
		for _, err := range errs {
			ntfs.Diagnostics.Add(index, err)
		}
		entry.Descriptor = descriptor

		_, pres := result.by_id[entry.Id]
		if !pres {
			result.by_id[entry.Id] = entry
			result.Entries = append(result.Entries, entry)
		}

		index++
		cursor += (int(entry.Length) + SDS_ALIGNMENT - 1) &^ (SDS_ALIGNMENT - 1)
	}

	return result
}

// Owner and group as SID strings for display.
func (self *SecurityDescriptor) Summary() string {
	parts := []string{}
	if self.Owner != nil {
		parts = append(parts, "O:"+self.Owner.String)
	}
	if self.Group != nil {
		parts = append(parts, "G:"+self.Group.String)
	}
	if self.Dacl != nil {
		parts = append(parts, fmt.Sprintf("D:%d ACEs", len(self.Dacl.Aces)))
	}
	if self.Sacl != nil {
		parts = append(parts, fmt.Sprintf("S:%d ACEs", len(self.Sacl.Aces)))
	}
	return strings.Join(parts, " ")
}

var aceTypeNames = []string{
	"ACCESS_ALLOWED",
	"ACCESS_DENIED",
	"SYSTEM_AUDIT",
	"SYSTEM_ALARM",
	"ACCESS_ALLOWED_COMPOUND",
	"ACCESS_ALLOWED_OBJECT",
	"ACCESS_DENIED_OBJECT",
	"SYSTEM_AUDIT_OBJECT",
	"SYSTEM_ALARM_OBJECT",
	"ACCESS_ALLOWED_CALLBACK",
	"ACCESS_DENIED_CALLBACK",
	"ACCESS_ALLOWED_CALLBACK_OBJECT",
	"ACCESS_DENIED_CALLBACK_OBJECT",
	"SYSTEM_AUDIT_CALLBACK",
	"SYSTEM_ALARM_CALLBACK",
	"SYSTEM_AUDIT_CALLBACK_OBJECT",
	"SYSTEM_ALARM_CALLBACK_OBJECT",
	"SYSTEM_MANDATORY_LABEL",
	"SYSTEM_RESOURCE_ATTRIBUTE",
	"SYSTEM_SCOPED_POLICY_ID",
}

func aceTypeName(ace_type uint8) string {
	if int(ace_type) < len(aceTypeNames) {
		return aceTypeNames[ace_type]
	}
	return fmt.Sprintf("UNKNOWN_%d", ace_type)
}

var aceFlags = []flagName{
	{0x01, "OBJECT_INHERIT"},
	{0x02, "CONTAINER_INHERIT"},
	{0x04, "NO_PROPAGATE_INHERIT"},
	{0x08, "INHERIT_ONLY"},
	{0x10, "INHERITED"},
	{0x40, "SUCCESSFUL_ACCESS"},
	{0x80, "FAILED_ACCESS"},
}

var sdControlFlags = []flagName{
	{0x0001, "OWNER_DEFAULTED"},
	{0x0002, "GROUP_DEFAULTED"},
	{0x0004, "DACL_PRESENT"},
	{0x0008, "DACL_DEFAULTED"},
	{0x0010, "SACL_PRESENT"},
	{0x0020, "SACL_DEFAULTED"},
	{0x0100, "DACL_AUTO_INHERIT_REQ"},
	{0x0200, "SACL_AUTO_INHERIT_REQ"},
	{0x0400, "DACL_AUTO_INHERITED"},
	{0x0800, "SACL_AUTO_INHERITED"},
	{0x1000, "DACL_PROTECTED"},
	{0x2000, "SACL_PROTECTED"},
	{0x4000, "RM_CONTROL_VALID"},
	{0x8000, "SELF_RELATIVE"},
}
