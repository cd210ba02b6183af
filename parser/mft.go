package parser

import (
	"context"
	"fmt"
	"sync"
)

const (
	DEFAULT_RECORD_SIZE = 1024
	FILE_SIGNATURE      = "FILE"
)

// ParseMFTEntry decodes one FILE record. A returned error means the
// record was skipped (bad signature, truncated or unusable fixups).
// Recoverable problems are returned as warnings alongside the entry.
func ParseMFTEntry(record []byte, offset int64, index int64) (
	entry *MftEntry, warnings []error, err error) {

	header := NewMFT_ENTRY(record, offset)
	if len(record) < MFT_ENTRY_HEADER_SIZE {
		return nil, nil, newParseError(TruncatedRecord, offset,
			"record of %d bytes is shorter than the header", len(record))
	}

	if header.Magic() != FILE_SIGNATURE {
		return nil, nil, newParseError(SignatureMismatch, offset,
			"expected FILE, found %q", header.Magic())
	}

	fixup, err := ApplyFixup(record,
		int(header.Fixup_offset()), int(header.Fixup_count()))
	if err != nil {
		var parse_error *ParseError
		if kind, ok := KindOf(err); ok {
			parse_error = newParseError(kind, offset, "fixup: %v", err)
		} else {
			parse_error = newParseError(OutOfBoundsOffset, offset, "fixup: %v", err)
		}
		return nil, nil, parse_error
	}

	if fixup_err := fixup.Err(offset); fixup_err != nil {
		warnings = append(warnings, fixup_err)
	}

	data := fixup.Data
	header = NewMFT_ENTRY(data, offset)

	STATS.Inc_MFT_ENTRY()

	entry = &MftEntry{
		Offset:                offset,
		Index:                 index,
		RecordNumber:          uint64(index),
		SequenceNumber:        header.Sequence_value(),
		LinkCount:             header.Link_count(),
		Flags:                 header.Flags(),
		LogfileSequenceNumber: header.Logfile_sequence_number(),
		BaseRecord:            NewMftReference(header.Base_record_reference()),
		UsedSize:              header.Mft_entry_size(),
		AllocatedSize:         header.Mft_entry_allocated(),
		FixupOk:               fixup.Ok(),
		raw:                   data,
	}

	record_number, ok := header.Record_number()
	if ok {
		entry.RecordNumber = uint64(record_number)
	}

	first_attribute := int(header.Attribute_offset())
	if first_attribute < MFT_ENTRY_HEADER_SIZE-8 || first_attribute >= len(data) {
		warnings = append(warnings, newParseError(OutOfBoundsOffset, offset,
			"first attribute offset %#x outside record", first_attribute))
		return entry, warnings, nil
	}

	inodes := NewInodeFormatter(entry.RecordNumber)
	iterator := NewAttributeIterator(
		data, first_attribute, int(entry.UsedSize), offset)

	for _, attr := range iterator.Collect(func(err error) {
		warnings = append(warnings, err)
	}) {
		attr.Inode = inodes.Inode(attr.Type, attr.Id, attr.Name)
		entry.Attributes = append(entry.Attributes, attr)

		switch t := attr.View.(type) {
		case *StandardInformation:
			if entry.StandardInformation == nil {
				entry.StandardInformation = t
			}

		case *FileNameAttribute:
			entry.FileNames = append(entry.FileNames, t)

		case *DataStream:
			// Later extents of a fragmented attribute carry no sizes.
			if attr.Resident || attr.VcnStart == 0 {
				entry.DataStreams = append(entry.DataStreams, t)
			}

		case *ObjectId:
			entry.ObjectId = t

		case *ReparsePoint:
			entry.ReparsePoint = t

		case *LoggedUtilityStream:
			entry.LoggedUtilityStream = t
		}
	}

	return entry, warnings, nil
}

// MFTResult is the indexed collection of parsed entries. It is built
// once by ParseMFT and read only afterwards.
type MFTResult struct {
	Entries    []*MftEntry
	RecordSize int64

	index map[uint64]*MftEntry
}

func newMFTResult(entries []*MftEntry, record_size int64) *MFTResult {
	result := &MFTResult{
		Entries:    entries,
		RecordSize: record_size,
		index:      make(map[uint64]*MftEntry, len(entries)),
	}

	for _, entry := range entries {
		// Duplicate record numbers come from corrupt headers; the
		// first occurrence wins.
		_, pres := result.index[entry.RecordNumber]
		if !pres {
			result.index[entry.RecordNumber] = entry
		}
	}
	return result
}

func (self *MFTResult) GetEntry(entry_number uint64) (*MftEntry, bool) {
	entry, pres := self.index[entry_number]
	return entry, pres
}

// DumpEntry finds one entry. A non nil sequence must also match.
func (self *MFTResult) DumpEntry(entry_number uint64, sequence *uint16) (*MftEntry, error) {
	entry, pres := self.index[entry_number]
	if !pres {
		return nil, fmt.Errorf("%w: MFT entry %d", NotFoundError, entry_number)
	}

	if sequence != nil && *sequence != entry.SequenceNumber {
		return nil, fmt.Errorf("%w: MFT entry %d has sequence %d not %d",
			NotFoundError, entry_number, entry.SequenceNumber, *sequence)
	}
	return entry, nil
}

// DetectRecordSize uses the allocated size of the first FILE record
// when it is a known record size.
func DetectRecordSize(data []byte) int64 {
	for offset := 0; offset+MFT_ENTRY_HEADER_SIZE <= len(data) &&
		offset < 64*DEFAULT_RECORD_SIZE; offset += DEFAULT_RECORD_SIZE {
		header := NewMFT_ENTRY(data[offset:], int64(offset))
		if header.Magic() != FILE_SIGNATURE {
			continue
		}

		switch header.Mft_entry_allocated() {
		case 1024, 4096:
			return int64(header.Mft_entry_allocated())
		}
		break
	}
	return DEFAULT_RECORD_SIZE
}

func isZero(data []byte) bool {
	for _, c := range data {
		if c != 0 {
			return false
		}
	}
	return true
}

// ParseMFT decodes every record of an MFT stream using a pool of
// workers. Entries are returned in stream order. If ctx is done before
// all records are decoded, the entries decoded so far are returned.
func ParseMFT(ctx context.Context, ntfs *NTFSContext, data []byte) *MFTResult {
	record_size := ntfs.RecordSize
	if record_size <= 0 {
		record_size = DetectRecordSize(data)
		ntfs.RecordSize = record_size
	}

	count := int64(len(data)) / record_size
	if remainder := int64(len(data)) % record_size; remainder != 0 {
		ntfs.Diagnostics.AddDiagnostic(Diagnostic{
			Offset:      count * record_size,
			RecordIndex: count,
			Kind:        TruncatedRecord,
			Message: fmt.Sprintf("%d trailing bytes are shorter than a record",
				remainder),
		})
	}

	workers := ntfs.GetOptions().Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]*MftEntry, count)
	jobs := make(chan int64)

	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				results[idx] = parseMFTSlot(ntfs, data, idx, record_size)
			}
		}()
	}

feed:
	for idx := int64(0); idx < count; idx++ {
		select {
		case <-ctx.Done():
			DebugPrint("ParseMFT: stopped at record %d: %v\n", idx, ctx.Err())
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	entries := make([]*MftEntry, 0, len(results))
	for _, entry := range results {
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	return newMFTResult(entries, record_size)
}

func parseMFTSlot(ntfs *NTFSContext, data []byte, idx, record_size int64) *MftEntry {
	offset := idx * record_size
	record := data[offset : offset+record_size]

	// Never used slots are all zero and are not an error.
	if isZero(record[:4]) && isZero(record) {
		return nil
	}

	entry, warnings, err := ParseMFTEntry(record, offset, idx)
	if err != nil {
		ntfs.Diagnostics.Add(idx, err)
		return nil
	}

	total_clusters := ntfs.TotalClusters()
	for _, attr := range entry.Attributes {
		if attr.Resident || !attr.ContentAvailable() {
			continue
		}

		err := ValidateRuns(attr.Runs, attr.VcnStart, attr.VcnEnd,
			total_clusters, offset+attr.Offset)
		if err != nil {
			attr.RunlistError = err.Error()
			warnings = append(warnings, err)
		}
	}

	for _, warning := range warnings {
		ntfs.Diagnostics.Add(idx, warning)
	}
	return entry
}
