package parser

import (
	"encoding/binary"
	"fmt"
)

// Update sequence stride. NTFS always protects 512 byte blocks
// regardless of the device sector size.
const SECTOR_SIZE = 512

type FixupResult struct {
	// A repaired copy of the record. The source buffer is never
	// modified since it is usually a read only mapping.
	Data []byte

	Signature uint16

	// Index of sectors whose trailing bytes did not carry the
	// signature. These sectors are still repaired.
	MismatchedSectors []int
}

func (self *FixupResult) Ok() bool {
	return len(self.MismatchedSectors) == 0
}

func (self *FixupResult) DebugString() string {
	return fmt.Sprintf("FixupResult: Signature %#04x Mismatched %v\n",
		self.Signature, self.MismatchedSectors)
}

// ApplyFixup restores the last two bytes of every 512 byte sector of
// record from the update sequence array at usa_offset. The array
// holds usa_count u16 values: the signature followed by one original
// value per sector.
func ApplyFixup(record []byte, usa_offset, usa_count int) (*FixupResult, error) {
	STATS.Inc_FixupApplied()

	if usa_count < 1 {
		return nil, newParseError(OutOfBoundsOffset, int64(usa_offset),
			"update sequence count %d", usa_count)
	}

	usa, err := getSlice(record, usa_offset, usa_count*2)
	if err != nil {
		return nil, err
	}

	sectors := usa_count - 1
	if sectors*SECTOR_SIZE > len(record) {
		return nil, newParseError(TruncatedRecord, int64(len(record)),
			"record needs %d sectors but only has %d bytes",
			sectors, len(record))
	}

	result := &FixupResult{
		Data:      append([]byte{}, record...),
		Signature: binary.LittleEndian.Uint16(usa),
	}

	for sector_idx := 0; sector_idx < sectors; sector_idx++ {
		fixup_offset := (sector_idx+1)*SECTOR_SIZE - 2
		sector_value := binary.LittleEndian.Uint16(result.Data[fixup_offset:])
		if sector_value != result.Signature {
			result.MismatchedSectors = append(
				result.MismatchedSectors, sector_idx)
		}

		original := usa[2+sector_idx*2 : 4+sector_idx*2]
		result.Data[fixup_offset] = original[0]
		result.Data[fixup_offset+1] = original[1]
	}

	if !result.Ok() {
		STATS.Inc_FixupMismatch()
		DebugPrint("Fixup mismatch in sectors %v (signature %#x)\n",
			result.MismatchedSectors, result.Signature)
	}

	return result, nil
}

// Converts a mismatched fixup into a diagnostic error.
func (self *FixupResult) Err(offset int64) error {
	if self.Ok() {
		return nil
	}
	return newParseError(FixupMismatch, offset,
		"sectors %v do not carry signature %#04x",
		self.MismatchedSectors, self.Signature)
}
