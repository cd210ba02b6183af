package parser

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

const (
	// 100ns intervals between 1601-01-01 and 1970-01-01.
	filetime_epoch_delta = 116444736000000000

	MAX_FILENAME_LENGTH = 1024
)

// A FileTime object is a timestamp in windows filetime format.
type WinFileTime struct {
	time.Time
}

func NewWinFileTime(filetime uint64) WinFileTime {
	if filetime == 0 {
		return WinFileTime{}
	}

	delta := int64(filetime) - filetime_epoch_delta
	return WinFileTime{time.Unix(delta/10000000, (delta%10000000)*100).UTC()}
}

func (self WinFileTime) GoString() string {
	return fmt.Sprintf("%v", self.Time)
}

func (self WinFileTime) DebugString() string {
	return fmt.Sprintf("%v", self.Time)
}

// Unix seconds or 0 for an unset timestamp.
func (self WinFileTime) UnixOrZero() int64 {
	if self.IsZero() {
		return 0
	}
	return self.Unix()
}

var utf16_decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Decodes UTF-16LE bytes. Unpaired surrogates become U+FFFD so
// adversarial names never fail decoding.
func ParseUTF16String(data []byte) string {
	if len(data)%2 == 1 {
		data = data[:len(data)-1]
	}

	decoded, err := utf16_decoder.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}

	return strings.TrimRight(string(decoded), "\x00")
}

// Bounds checked little endian accessors over an immutable buffer.
// Reads past the end return 0.

func getUint8(data []byte, offset int) uint8 {
	if offset < 0 || offset >= len(data) {
		return 0
	}
	return data[offset]
}

func getUint16(data []byte, offset int) uint16 {
	if offset < 0 || offset+2 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint16(data[offset:])
}

func getUint32(data []byte, offset int) uint32 {
	if offset < 0 || offset+4 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint32(data[offset:])
}

func getUint64(data []byte, offset int) uint64 {
	if offset < 0 || offset+8 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint64(data[offset:])
}

// Returns data[offset:offset+length] or an OutOfBoundsOffset error.
func getSlice(data []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset > len(data) ||
		length > len(data)-offset {
		return nil, newParseError(OutOfBoundsOffset, int64(offset),
			"range of %d bytes exceeds buffer of %d", length, len(data))
	}
	return data[offset : offset+length], nil
}

func formatGUID(data []byte) string {
	if len(data) < 16 {
		return ""
	}

	return fmt.Sprintf("%08x-%04x-%04x-%x-%x",
		binary.LittleEndian.Uint32(data[0:4]),
		binary.LittleEndian.Uint16(data[4:6]),
		binary.LittleEndian.Uint16(data[6:8]),
		data[8:10], data[10:16])
}

// Names the bits set in value, in the order of the flag table.
type flagName struct {
	Value uint32
	Name  string
}

func flagNames(value uint32, table []flagName) []string {
	result := []string{}
	for _, flag := range table {
		if value&flag.Value != 0 {
			result = append(result, flag.Name)
		}
	}
	return result
}
