// Implement some easy APIs.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var entrySpecError = errors.New(
	"Incorrect format for entry: e.g. 1234, 1234-5 or 0x4d2-0x5")

func parseNumber(value string, bits int) (uint64, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseUint(value[2:], 16, bits)
	}
	return strconv.ParseUint(value, 10, bits)
}

// ParseEntrySpec parses an entry number with an optional sequence
// number. Both may be decimal or 0x prefixed hex. sequence is nil when
// none is given.
func ParseEntrySpec(spec string) (entry uint64, sequence *uint16, err error) {
	parts := strings.Split(spec, "-")
	if len(parts) > 2 {
		return 0, nil, entrySpecError
	}

	entry, err = parseNumber(parts[0], 48)
	if err != nil {
		return 0, nil, entrySpecError
	}

	if len(parts) == 2 {
		seq, err := parseNumber(parts[1], 16)
		if err != nil {
			return 0, nil, entrySpecError
		}
		value := uint16(seq)
		sequence = &value
	}

	return entry, sequence, nil
}

// ParseInode parses an inode string of the form entry-type-id. A bare
// entry number selects the unnamed $DATA stream.
func ParseInode(inode string) (entry uint64, attr_type AttributeType,
	id uint16, err error) {
	// Named streams are separated by a colon.
	inode = strings.SplitN(inode, ":", 2)[0]
	parts := strings.Split(inode, "-")

	numbers := []uint64{}
	for _, part := range parts {
		x, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return 0, 0, 0, errors.New("Incorrect format for inode: e.g. 5-144-1")
		}
		numbers = append(numbers, x)
	}

	switch len(numbers) {
	case 1:
		return numbers[0], ATTR_DATA, 0, nil
	case 3:
		return numbers[0], AttributeType(numbers[1]), uint16(numbers[2]), nil
	default:
		return 0, 0, 0, errors.New("Incorrect format for inode: e.g. 5-144-1")
	}
}

// FindAttribute returns the attribute selected by an inode string. If
// the inode names no id the first attribute of the type is returned.
func FindAttribute(entry *MftEntry, inode string) (*Attribute, error) {
	_, attr_type, id, err := ParseInode(inode)
	if err != nil {
		return nil, err
	}

	has_id := strings.Count(strings.SplitN(inode, ":", 2)[0], "-") == 2
	for _, attr := range entry.Attributes {
		if attr.Type != attr_type {
			continue
		}
		if !has_id && attr.Name != "" {
			continue
		}
		if has_id && attr.Id != id {
			continue
		}
		return attr, nil
	}

	return nil, fmt.Errorf("%w: attribute %v in entry %d",
		NotFoundError, inode, entry.RecordNumber)
}
