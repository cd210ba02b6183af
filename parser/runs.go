package parser

import (
	"fmt"
)

// A DataRun maps Length clusters of an attribute to the volume. Sparse
// runs have no physical mapping and carry Lcn -1.
type DataRun struct {
	Length      uint64 `json:"length"`
	OffsetDelta int64  `json:"offset_delta"`
	Lcn         int64  `json:"lcn"`
	Sparse      bool   `json:"sparse"`
}

// DecodeRunList decodes a packed run list. Each run starts with a
// header byte: the low nibble is the width of the length field and
// the high nibble the width of the signed LCN delta. A zero header
// byte or the end of data terminates the list. base_offset is only
// used to report errors.
func DecodeRunList(data []byte, base_offset int64) ([]DataRun, error) {
	result := []DataRun{}
	lcn := int64(0)

	for offset := 0; offset < len(data); {
		header := data[offset]
		if header == 0 {
			break
		}

		length_size := int(header & 0x0f)
		offset_size := int(header >> 4)
		if length_size == 0 || length_size > 8 || offset_size > 8 {
			return result, newParseError(RunlistDecode,
				base_offset+int64(offset),
				"invalid run header %#02x", header)
		}

		if offset+1+length_size+offset_size > len(data) {
			return result, newParseError(RunlistDecode,
				base_offset+int64(offset),
				"run header %#02x extends past the attribute", header)
		}

		length := readUnsigned(data[offset+1 : offset+1+length_size])
		if length == 0 {
			return result, newParseError(RunlistDecode,
				base_offset+int64(offset), "zero length run")
		}

		run := DataRun{Length: length}
		if offset_size == 0 {
			run.Sparse = true
			run.Lcn = -1
		} else {
			start := offset + 1 + length_size
			run.OffsetDelta = readSigned(data[start : start+offset_size])
			lcn += run.OffsetDelta
			run.Lcn = lcn
		}

		result = append(result, run)
		offset += 1 + length_size + offset_size
	}

	return result, nil
}

func readUnsigned(data []byte) uint64 {
	result := uint64(0)
	for i := len(data) - 1; i >= 0; i-- {
		result = result<<8 | uint64(data[i])
	}
	return result
}

// Little endian with sign extension from the top bit of the last
// byte.
func readSigned(data []byte) int64 {
	result := readUnsigned(data)
	bits := uint(len(data) * 8)
	if bits < 64 && data[len(data)-1]&0x80 != 0 {
		result |= ^uint64(0) << bits
	}
	return int64(result)
}

// Total clusters covered by the runs, including sparse runs.
func RunsClusterCount(runs []DataRun) uint64 {
	result := uint64(0)
	for _, run := range runs {
		result += run.Length
	}
	return result
}

// ValidateRuns checks the runs against the volume size and the VCN
// range declared by the attribute. total_clusters of 0 skips the
// volume check.
func ValidateRuns(runs []DataRun, vcn_start, vcn_end uint64,
	total_clusters int64, base_offset int64) error {

	for idx, run := range runs {
		if run.Sparse {
			continue
		}

		if run.Lcn < 0 {
			return newParseError(RunlistDecode, base_offset,
				"run %d starts at negative LCN %d", idx, run.Lcn)
		}

		if total_clusters > 0 &&
			(uint64(run.Lcn) > uint64(total_clusters) ||
				run.Length > uint64(total_clusters)-uint64(run.Lcn)) {
			return newParseError(RunlistDecode, base_offset,
				"run %d (LCN %d length %d) exceeds volume of %d clusters",
				idx, run.Lcn, run.Length, total_clusters)
		}
	}

	if vcn_end >= vcn_start && vcn_end-vcn_start < 1<<48 {
		needed := vcn_end - vcn_start + 1
		if RunsClusterCount(runs) < needed {
			return newParseError(RunlistDecode, base_offset,
				"runs cover %d clusters but VCN range needs %d",
				RunsClusterCount(runs), needed)
		}
	}

	return nil
}

type RunInfo struct {
	Type        string `json:"type"`
	FromOffset  int64  `json:"from_offset"`
	ToOffset    int64  `json:"to_offset"`
	Length      int64  `json:"length"`
	IsSparse    bool   `json:"is_sparse"`
	ClusterSize int64  `json:"cluster_size"`
}

func (self RunInfo) String() string {
	properties := ""
	if self.IsSparse {
		properties += "Sparse "
	}

	return fmt.Sprintf("%v: FileOffset %v -> DiskOffset %v (Length %v, %vCluster %v)",
		self.Type, self.FromOffset, self.ToOffset, self.Length,
		properties, self.ClusterSize)
}

// DescribeRuns maps each run of a non-resident attribute to byte
// offsets within the attribute and on the volume.
func DescribeRuns(attr *Attribute, cluster_size int64) []*RunInfo {
	result := make([]*RunInfo, 0, len(attr.Runs))
	file_offset := int64(attr.VcnStart) * cluster_size

	for _, run := range attr.Runs {
		length := int64(run.Length) * cluster_size
		info := &RunInfo{
			Type:        attr.Type.Name(),
			FromOffset:  file_offset,
			ToOffset:    run.Lcn * cluster_size,
			Length:      length,
			IsSparse:    run.Sparse,
			ClusterSize: cluster_size,
		}
		if run.Sparse {
			info.ToOffset = -1
		}

		result = append(result, info)
		file_offset += length
	}

	return result
}
