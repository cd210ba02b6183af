package parser

import (
	"bytes"
	"fmt"
)

type ArtifactKind int

const (
	ArtifactUnknown ArtifactKind = iota
	ArtifactMFT
	ArtifactUsnJournal
	ArtifactBoot
	ArtifactSDS
	ArtifactI30
)

var artifactNames = map[ArtifactKind]string{
	ArtifactUnknown:    "unknown",
	ArtifactMFT:        "mft",
	ArtifactUsnJournal: "usn",
	ArtifactBoot:       "boot",
	ArtifactSDS:        "sds",
	ArtifactI30:        "i30",
}

func (self ArtifactKind) String() string {
	name, pres := artifactNames[self]
	if pres {
		return name
	}
	return fmt.Sprintf("ArtifactKind(%d)", int(self))
}

func (self ArtifactKind) MarshalText() ([]byte, error) {
	return []byte(self.String()), nil
}

// ParseArtifactKind accepts the names printed by String().
func ParseArtifactKind(name string) (ArtifactKind, error) {
	for k, v := range artifactNames {
		if v == name && k != ArtifactUnknown {
			return k, nil
		}
	}
	return ArtifactUnknown, fmt.Errorf("unknown artifact kind %q", name)
}

const (
	NTFS_OEM_ID_OFFSET = 3

	// How far to look for the first journal record past the sparse
	// zero prefix.
	DETECT_SCAN_LIMIT = 64 * 1024 * 1024
)

// DetectArtifact selects the parser for data from its leading bytes.
// Magic values are checked first. Journals and $SDS streams carry no
// magic and are told apart by the shape of their first record.
func DetectArtifact(data []byte) (ArtifactKind, error) {
	if len(data) == 0 {
		return ArtifactUnknown, EmptyBufferError
	}

	switch {
	case bytes.HasPrefix(data, []byte(FILE_SIGNATURE)):
		return ArtifactMFT, nil

	case bytes.HasPrefix(data, []byte(INDX_SIGNATURE)):
		return ArtifactI30, nil

	case len(data) >= NTFS_OEM_ID_OFFSET+8 &&
		string(data[NTFS_OEM_ID_OFFSET:NTFS_OEM_ID_OFFSET+8]) == NTFS_OEM_ID:
		return ArtifactBoot, nil
	}

	if looksLikeSDS(data) {
		return ArtifactSDS, nil
	}

	if looksLikeUsn(data) {
		return ArtifactUsnJournal, nil
	}

	return ArtifactUnknown, newParseError(SignatureMismatch, 0,
		"no known signature in the first %d bytes", CapInt64(int64(len(data)), 16))
}

// An $SDS stream starts with a header whose offset field is the
// header's own position, followed by a revision 1 self relative
// descriptor.
func looksLikeSDS(data []byte) bool {
	if len(data) < SDS_HEADER_SIZE+20 {
		return false
	}

	offset := getUint64(data, 8)
	length := getUint32(data, 16)
	if offset != 0 || length < SDS_HEADER_SIZE+20 || length > SDS_MAX_ENTRY_SIZE {
		return false
	}

	// Descriptor revision and the self relative control bit.
	control := getUint16(data, SDS_HEADER_SIZE+2)
	return data[SDS_HEADER_SIZE] == 1 && control&0x8000 != 0
}

// A journal is a sequence of length prefixed records, 8 byte aligned,
// usually preceded by a zero filled region.
func looksLikeUsn(data []byte) bool {
	limit := len(data)
	if limit > DETECT_SCAN_LIMIT {
		limit = DETECT_SCAN_LIMIT
	}

	offset := 0
	for ; offset+8 <= limit; offset += 8 {
		if getUint32(data, offset) != 0 {
			break
		}
	}
	if offset+8 > limit {
		return false
	}

	length := getUint32(data, offset)
	major := getUint16(data, offset+4)
	if length < USN_RECORD_V2_SIZE || length >= USN_MAX_RECORD_SIZE {
		return false
	}

	switch major {
	case 2, 3, 4:
		return true
	}
	return false
}
