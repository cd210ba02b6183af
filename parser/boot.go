package parser

import (
	"fmt"
)

const (
	BOOT_SECTOR_SIZE = 512
	NTFS_OEM_ID      = "NTFS    "
)

type BootSector struct {
	OemId             string `json:"oem_id"`
	BytesPerSector    uint16 `json:"bytes_per_sector"`
	SectorsPerCluster int8   `json:"sectors_per_cluster"`
	TotalSectors      uint64 `json:"total_sectors"`
	MftCluster        uint64 `json:"mft_cluster"`
	MftMirrorCluster  uint64 `json:"mft_mirror_cluster"`
	ClustersPerRecord int8   `json:"clusters_per_record"`
	ClustersPerIndex  int8   `json:"clusters_per_index"`
	SerialNumber      uint64 `json:"serial_number"`

	// Derived sizes in bytes.
	ClusterSize    int64 `json:"cluster_size"`
	RecordSize     int64 `json:"record_size"`
	IndexBlockSize int64 `json:"index_block_size"`
	TotalClusters  int64 `json:"total_clusters"`

	// False when the 0xAA55 end marker is missing.
	EndMarkerValid bool `json:"end_marker_valid"`
}

// Sizes stored as a signed byte: a negative value -N means 2^N bytes,
// otherwise the value is a multiple of unit. 0x80 is read as 128 since
// 64k cluster volumes store it that way.
func signedExponentSize(value uint8, unit int64) int64 {
	if value > 0x80 {
		exponent := 256 - int(value)
		if exponent > 31 {
			return 0
		}
		return int64(1) << uint(exponent)
	}
	return int64(value) * unit
}

func (self *BootSector) Volume_serial() string {
	return fmt.Sprintf("%016X", self.SerialNumber)
}

func (self *BootSector) MftOffset() int64 {
	return int64(self.MftCluster) * self.ClusterSize
}

func (self *BootSector) DebugString() string {
	result := "struct NTFS_BOOT_SECTOR:\n"
	result += fmt.Sprintf("  OemId: %q\n", self.OemId)
	result += fmt.Sprintf("  BytesPerSector: %#0x\n", self.BytesPerSector)
	result += fmt.Sprintf("  SectorsPerCluster: %d\n", self.SectorsPerCluster)
	result += fmt.Sprintf("  TotalSectors: %#0x\n", self.TotalSectors)
	result += fmt.Sprintf("  MftCluster: %#0x\n", self.MftCluster)
	result += fmt.Sprintf("  MftMirrorCluster: %#0x\n", self.MftMirrorCluster)
	result += fmt.Sprintf("  ClustersPerRecord: %d\n", self.ClustersPerRecord)
	result += fmt.Sprintf("  ClustersPerIndex: %d\n", self.ClustersPerIndex)
	result += fmt.Sprintf("  SerialNumber: %v\n", self.Volume_serial())
	result += fmt.Sprintf("  ClusterSize: %d\n", self.ClusterSize)
	result += fmt.Sprintf("  RecordSize: %d\n", self.RecordSize)
	result += fmt.Sprintf("  IndexBlockSize: %d\n", self.IndexBlockSize)
	return result
}

// ParseBootSector decodes the first 512 bytes of data. Any failure is
// fatal since there is only one record.
func ParseBootSector(data []byte) (*BootSector, error) {
	if len(data) == 0 {
		return nil, EmptyBufferError
	}

	if len(data) < BOOT_SECTOR_SIZE {
		return nil, newParseError(TruncatedRecord, 0,
			"boot sector needs %d bytes, got %d", BOOT_SECTOR_SIZE, len(data))
	}

	oem := string(data[3:11])
	if oem != NTFS_OEM_ID {
		return nil, newParseError(SignatureMismatch, 3,
			"OEM identifier %q is not NTFS", oem)
	}

	result := &BootSector{
		OemId:             oem,
		BytesPerSector:    getUint16(data, 0x0B),
		SectorsPerCluster: int8(data[0x0D]),
		TotalSectors:      getUint64(data, 0x28),
		MftCluster:        getUint64(data, 0x30),
		MftMirrorCluster:  getUint64(data, 0x38),
		ClustersPerRecord: int8(data[0x40]),
		ClustersPerIndex:  int8(data[0x44]),
		SerialNumber:      getUint64(data, 0x48),
		EndMarkerValid:    getUint16(data, 0x1FE) == 0xAA55,
	}

	sector_size := int64(result.BytesPerSector)
	if sector_size < 256 || sector_size > 4096 ||
		sector_size&(sector_size-1) != 0 {
		return nil, newParseError(OutOfBoundsOffset, 0x0B,
			"invalid bytes per sector %d", sector_size)
	}

	result.ClusterSize = signedExponentSize(data[0x0D], sector_size)
	if result.ClusterSize <= 0 || result.ClusterSize&(result.ClusterSize-1) != 0 {
		return nil, newParseError(OutOfBoundsOffset, 0x0D,
			"invalid sectors per cluster %#x", data[0x0D])
	}

	result.RecordSize = signedExponentSize(data[0x40], result.ClusterSize)
	if result.RecordSize <= 0 {
		return nil, newParseError(OutOfBoundsOffset, 0x40,
			"invalid clusters per record %#x", data[0x40])
	}

	result.IndexBlockSize = signedExponentSize(data[0x44], result.ClusterSize)
	result.TotalClusters = int64(result.TotalSectors*uint64(sector_size)) /
		result.ClusterSize

	return result, nil
}
