package parser

import (
	"context"
	"fmt"
	"io"
)

// Parse USN records
// https://docs.microsoft.com/en-us/windows/win32/api/winioctl/ns-winioctl-usn_record_v2
// https://docs.microsoft.com/en-us/windows/win32/api/winioctl/ns-winioctl-usn_record_v3

const (
	USN_RECORD_V2_SIZE = 60
	USN_RECORD_V3_SIZE = 76

	// Larger records are treated as garbage when detecting a journal.
	USN_MAX_RECORD_SIZE = 0x10000
)

type UsnRecord struct {
	Offset       int64  `json:"offset"`
	RecordLength uint32 `json:"record_length"`
	MajorVersion uint16 `json:"major_version"`
	MinorVersion uint16 `json:"minor_version"`

	FileReference   MftReference `json:"file_reference"`
	ParentReference MftReference `json:"parent_reference"`

	// Full 128 bit identifiers of version 3 records.
	FileId       string `json:"file_id,omitempty"`
	ParentFileId string `json:"parent_file_id,omitempty"`

	Usn             int64       `json:"usn"`
	Timestamp       WinFileTime `json:"timestamp"`
	Reason          uint32      `json:"reason"`
	ReasonNames     []string    `json:"reason_names"`
	SourceInfo      uint32      `json:"source_info"`
	SourceInfoNames []string    `json:"source_info_names"`
	SecurityId      uint32      `json:"security_id"`
	FileAttributes  uint32      `json:"file_attributes"`
	AttributeNames  []string    `json:"file_attribute_names"`
	Filename        string      `json:"filename"`

	// Only set when MFT context is available.
	ParentPath string `json:"parent_path,omitempty"`
	FullPath   string `json:"full_path,omitempty"`
}

func (self *UsnRecord) DebugString() string {
	return fmt.Sprintf("USN %#x @ %#x: %v %v (%v) parent %v\n",
		self.Usn, self.Offset, self.Timestamp, self.Filename,
		self.ReasonNames, self.ParentReference)
}

func formatFileId(data []byte) string {
	result := ""
	for i := len(data) - 1; i >= 0; i-- {
		result += fmt.Sprintf("%02x", data[i])
	}
	return result
}

// DecodeUsnRecord decodes one record. data spans exactly the declared
// record length.
func DecodeUsnRecord(data []byte, offset int64) (*UsnRecord, error) {
	if len(data) < 8 {
		return nil, newParseError(OutOfBoundsOffset, offset,
			"record length %d is shorter than any header", len(data))
	}

	result := &UsnRecord{
		Offset:       offset,
		RecordLength: getUint32(data, 0),
		MajorVersion: getUint16(data, 4),
		MinorVersion: getUint16(data, 6),
	}

	var name_length, name_offset int

	switch result.MajorVersion {
	case 2:
		if len(data) < USN_RECORD_V2_SIZE {
			return nil, newParseError(OutOfBoundsOffset, offset,
				"v2 record of %d bytes is shorter than its header", len(data))
		}
		result.FileReference = NewMftReference(getUint64(data, 8))
		result.ParentReference = NewMftReference(getUint64(data, 16))
		result.Usn = int64(getUint64(data, 24))
		result.Timestamp = NewWinFileTime(getUint64(data, 32))
		result.Reason = getUint32(data, 40)
		result.SourceInfo = getUint32(data, 44)
		result.SecurityId = getUint32(data, 48)
		result.FileAttributes = getUint32(data, 52)
		name_length = int(getUint16(data, 56))
		name_offset = int(getUint16(data, 58))

	case 3:
		if len(data) < USN_RECORD_V3_SIZE {
			return nil, newParseError(OutOfBoundsOffset, offset,
				"v3 record of %d bytes is shorter than its header", len(data))
		}
		// On NTFS the low 64 bits of a file id are an MFT reference.
		result.FileReference = NewMftReference(getUint64(data, 8))
		result.ParentReference = NewMftReference(getUint64(data, 24))
		result.FileId = formatFileId(data[8:24])
		result.ParentFileId = formatFileId(data[24:40])
		result.Usn = int64(getUint64(data, 40))
		result.Timestamp = NewWinFileTime(getUint64(data, 48))
		result.Reason = getUint32(data, 56)
		result.SourceInfo = getUint32(data, 60)
		result.SecurityId = getUint32(data, 64)
		result.FileAttributes = getUint32(data, 68)
		name_length = int(getUint16(data, 72))
		name_offset = int(getUint16(data, 74))

	default:
		return nil, newParseError(UnsupportedUsnVersion, offset,
			"version %d.%d", result.MajorVersion, result.MinorVersion)
	}

	name, err := getSlice(data, name_offset, name_length)
	if err != nil {
		return nil, newParseError(OutOfBoundsOffset, offset,
			"filename at %#x length %d outside record of %d bytes",
			name_offset, name_length, len(data))
	}
	result.Filename = ParseUTF16String(name)
	result.ReasonNames = UsnReasonNames(result.Reason)
	result.SourceInfoNames = UsnSourceInfoNames(result.SourceInfo)
	result.AttributeNames = FileAttributeNames(result.FileAttributes)

	STATS.Inc_USN_RECORD()
	return result, nil
}

// UsnScanner walks a journal stream. Records are 8 byte aligned so the
// cursor advances by the declared length rounded up to 8.
type UsnScanner struct {
	data       []byte
	cursor     int64
	done       bool
	scan_ahead bool
}

func NewUsnScanner(data []byte, scan_ahead bool) *UsnScanner {
	return &UsnScanner{data: data, scan_ahead: scan_ahead}
}

// Offset of the next record to be read.
func (self *UsnScanner) Cursor() int64 {
	return self.cursor
}

// Next returns the next record or io.EOF. A nil record with an error
// means a record was skipped or a gap was crossed; the scan continues
// unless the scanner is done.
func (self *UsnScanner) Next() (*UsnRecord, error) {
	if self.done {
		return nil, io.EOF
	}

	size := int64(len(self.data))
	cursor := self.cursor
	if cursor >= size {
		self.done = true
		return nil, io.EOF
	}

	if cursor+4 > size {
		self.done = true
		if isZero(self.data[cursor:]) {
			return nil, io.EOF
		}
		return nil, newParseError(TruncatedRecord, cursor,
			"%d bytes left for a record length", size-cursor)
	}

	length := int64(getUint32(self.data, int(cursor)))
	if length == 0 {
		return nil, self.skipGap(cursor)
	}

	if length > size-cursor {
		self.done = true
		return nil, newParseError(TruncatedRecord, cursor,
			"record length %d exceeds the %d remaining bytes",
			length, size-cursor)
	}

	advance := (length + 7) &^ 7
	self.cursor = cursor + advance

	return DecodeUsnRecord(self.data[cursor:cursor+length], cursor)
}

// Journals are sparse so large zero filled areas precede the live
// records. Find the next aligned non-zero record length.
func (self *UsnScanner) skipGap(cursor int64) error {
	size := int64(len(self.data))

	next := cursor + 8
	for ; next+4 <= size; next += 8 {
		if getUint32(self.data, int(next)) != 0 {
			break
		}
	}

	if next+4 > size {
		// The rest of the journal is unused.
		self.done = true
		return io.EOF
	}

	err := newParseError(TruncatedRecord, cursor,
		"zero record length, %d byte gap before next record", next-cursor)
	if !self.scan_ahead {
		self.done = true
		return err
	}

	self.cursor = next
	return err
}

// ParseUSN streams the records of a journal. Problems are reported to
// the context diagnostics. With a resolver, records gain the path of
// their parent directory.
func ParseUSN(ctx context.Context, ntfs *NTFSContext, data []byte,
	resolver *PathResolver) chan *UsnRecord {
	output := make(chan *UsnRecord)

	go func() {
		defer close(output)

		options := ntfs.GetOptions()
		if options.DisableFullPathResolution {
			resolver = nil
		}

		scanner := NewUsnScanner(data, options.UsnScanAhead)
		for idx := int64(0); ; {
			offset := scanner.Cursor()
			record, err := scanner.Next()
			if err == io.EOF {
				return
			}

			if err != nil {
				ntfs.Diagnostics.Add(idx, err)
				if ctx.Err() != nil {
					return
				}
				continue
			}

			if resolver != nil {
				parent_path, err := resolver.ResolveParent(record.ParentReference)
				if err != nil {
					ntfs.Diagnostics.Add(idx, err)
				}
				record.ParentPath = parent_path
				record.FullPath = parent_path + "/" + record.Filename
			}

			select {
			case <-ctx.Done():
				DebugPrint("ParseUSN: stopped at %#x: %v\n", offset, ctx.Err())
				return

			case output <- record:
			}
			idx++
		}
	}()

	return output
}

var usnReasonFlags = []flagName{
	{0x00000001, "DATA_OVERWRITE"},
	{0x00000002, "DATA_EXTEND"},
	{0x00000004, "DATA_TRUNCATION"},
	{0x00000010, "NAMED_DATA_OVERWRITE"},
	{0x00000020, "NAMED_DATA_EXTEND"},
	{0x00000040, "NAMED_DATA_TRUNCATION"},
	{0x00000100, "FILE_CREATE"},
	{0x00000200, "FILE_DELETE"},
	{0x00000400, "EA_CHANGE"},
	{0x00000800, "SECURITY_CHANGE"},
	{0x00001000, "RENAME_OLD_NAME"},
	{0x00002000, "RENAME_NEW_NAME"},
	{0x00004000, "INDEXABLE_CHANGE"},
	{0x00008000, "BASIC_INFO_CHANGE"},
	{0x00010000, "HARD_LINK_CHANGE"},
	{0x00020000, "COMPRESSION_CHANGE"},
	{0x00040000, "ENCRYPTION_CHANGE"},
	{0x00080000, "OBJECT_ID_CHANGE"},
	{0x00100000, "REPARSE_POINT_CHANGE"},
	{0x00200000, "STREAM_CHANGE"},
	{0x00400000, "TRANSACTED_CHANGE"},
	{0x00800000, "INTEGRITY_CHANGE"},
	{0x80000000, "CLOSE"},
}

var usnSourceInfoFlags = []flagName{
	{0x00000001, "DATA_MANAGEMENT"},
	{0x00000002, "AUXILIARY_DATA"},
	{0x00000004, "REPLICATION_MANAGEMENT"},
	{0x00000008, "CLIENT_REPLICATION_MANAGEMENT"},
}

var fileAttributeFlags = []flagName{
	{0x00000001, "READONLY"},
	{0x00000002, "HIDDEN"},
	{0x00000004, "SYSTEM"},
	{0x00000010, "DIRECTORY"},
	{0x00000020, "ARCHIVE"},
	{0x00000040, "DEVICE"},
	{0x00000080, "NORMAL"},
	{0x00000100, "TEMPORARY"},
	{0x00000200, "SPARSE_FILE"},
	{0x00000400, "REPARSE_POINT"},
	{0x00000800, "COMPRESSED"},
	{0x00001000, "OFFLINE"},
	{0x00002000, "NOT_CONTENT_INDEXED"},
	{0x00004000, "ENCRYPTED"},
	{0x00008000, "INTEGRITY_STREAM"},
	{0x00010000, "VIRTUAL"},
	{0x00020000, "NO_SCRUB_DATA"},
	{0x10000000, "DIRECTORY_INDEX"},
	{0x20000000, "INDEX_VIEW"},
}

func UsnReasonNames(reason uint32) []string {
	return flagNames(reason, usnReasonFlags)
}

func UsnSourceInfoNames(source uint32) []string {
	return flagNames(source, usnSourceInfoFlags)
}

func FileAttributeNames(attributes uint32) []string {
	return flagNames(attributes, fileAttributeFlags)
}
