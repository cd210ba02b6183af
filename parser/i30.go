package parser

import (
	"context"
	"fmt"
	"io"
	"sort"
)

const (
	INDX_SIGNATURE           = "INDX"
	INDX_NODE_HEADER_OFFSET  = 24
	INDEX_ROOT_HEADER_OFFSET = 16
	INDEX_NODE_HEADER_SIZE   = 16
	INDEX_ENTRY_HEADER_SIZE  = 16
	DEFAULT_INDEX_BLOCK_SIZE = 4096

	INDEX_ENTRY_HAS_SUBNODE = 1
	INDEX_ENTRY_LAST        = 2

	I30_NAME = "$I30"
)

type IndexEntry struct {
	*FileNameAttribute

	FileReference MftReference `json:"file_reference"`
	EntryFlags    uint32       `json:"entry_flags"`
	HasSubNode    bool         `json:"has_sub_node"`
	SubNodeVcn    int64        `json:"sub_node_vcn,omitempty"`

	// VCN of the node holding the entry, -1 for $INDEX_ROOT.
	NodeVcn int64 `json:"node_vcn"`
	Offset  int64 `json:"offset"`

	// Carved from node slack space.
	IsSlack bool `json:"is_slack"`

	FullPath string `json:"full_path,omitempty"`
}

// An IndexBlockSource reads the INDX block at a VCN.
type IndexBlockSource interface {
	ReadBlock(vcn int64) (block []byte, offset int64, err error)
}

// StreamBlockSource serves blocks of an extracted $I30 stream. VCNs
// are taken from each block's own header rather than its position.
type StreamBlockSource struct {
	data       []byte
	block_size int64
	vcns       map[int64]int64
	order      []int64
}

func NewStreamBlockSource(data []byte, block_size int64) *StreamBlockSource {
	if block_size <= 0 {
		block_size = DEFAULT_INDEX_BLOCK_SIZE
	}

	result := &StreamBlockSource{
		data:       data,
		block_size: block_size,
		vcns:       make(map[int64]int64),
	}

	for offset := int64(0); offset+block_size <= int64(len(data)); offset += block_size {
		if string(data[offset:offset+4]) != INDX_SIGNATURE {
			continue
		}

		vcn := int64(getUint64(data, int(offset)+16))
		_, pres := result.vcns[vcn]
		if !pres {
			result.vcns[vcn] = offset
			result.order = append(result.order, vcn)
		}
	}

	return result
}

// VCNs of all blocks in stream order.
func (self *StreamBlockSource) VCNs() []int64 {
	return self.order
}

func (self *StreamBlockSource) ReadBlock(vcn int64) ([]byte, int64, error) {
	offset, pres := self.vcns[vcn]
	if !pres {
		return nil, 0, newParseError(OutOfBoundsOffset, 0,
			"no INDX block for VCN %d", vcn)
	}
	return self.data[offset : offset+self.block_size], offset, nil
}

// RunlistBlockSource reads blocks of a non-resident $INDEX_ALLOCATION
// attribute from a volume image through its run list.
type RunlistBlockSource struct {
	reader       io.ReaderAt
	runs         []DataRun
	cluster_size int64
	block_size   int64
}

func NewRunlistBlockSource(reader io.ReaderAt, runs []DataRun,
	cluster_size, block_size int64) *RunlistBlockSource {
	return &RunlistBlockSource{
		reader:       reader,
		runs:         runs,
		cluster_size: cluster_size,
		block_size:   block_size,
	}
}

// Index VCNs count clusters unless blocks are smaller than a
// cluster, in which case they count 512 byte units.
func (self *RunlistBlockSource) vcnUnit() int64 {
	if self.block_size < self.cluster_size {
		return SECTOR_SIZE
	}
	return self.cluster_size
}

// Maps an offset in the attribute to an offset on the volume and the
// number of contiguous bytes available there.
func (self *RunlistBlockSource) mapOffset(stream_offset int64) (int64, int64, error) {
	run_start := int64(0)
	for _, run := range self.runs {
		run_length := int64(run.Length) * self.cluster_size
		if stream_offset < run_start+run_length {
			if run.Sparse {
				return 0, 0, newParseError(OutOfBoundsOffset, stream_offset,
					"index block in sparse run")
			}
			delta := stream_offset - run_start
			return run.Lcn*self.cluster_size + delta, run_length - delta, nil
		}
		run_start += run_length
	}
	return 0, 0, newParseError(OutOfBoundsOffset, stream_offset,
		"offset past the end of the run list")
}

func (self *RunlistBlockSource) ReadBlock(vcn int64) ([]byte, int64, error) {
	stream_offset := vcn * self.vcnUnit()
	result := make([]byte, self.block_size)

	for read := int64(0); read < self.block_size; {
		disk_offset, available, err := self.mapOffset(stream_offset + read)
		if err != nil {
			return nil, 0, err
		}

		to_read := CapInt64(available, self.block_size-read)
		n, err := self.reader.ReadAt(result[read:read+to_read], disk_offset)
		if int64(n) < to_read {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, 0, newParseError(TruncatedRecord, disk_offset,
				"reading index block: %v", err)
		}
		read += to_read
	}

	return result, stream_offset, nil
}

// indexWalker traverses an index with an explicit work list of VCNs.
// Each VCN is visited at most once so cyclic sub-node pointers cannot
// cause repeated output.
type indexWalker struct {
	ntfs     *NTFSContext
	source   IndexBlockSource
	resolver *PathResolver
	options  Options

	seen   map[int64]bool
	work   []int64
	result []*IndexEntry
	nodes  int64
}

func newIndexWalker(ntfs *NTFSContext, source IndexBlockSource,
	resolver *PathResolver) *indexWalker {
	options := ntfs.GetOptions()
	if options.DisableFullPathResolution {
		resolver = nil
	}

	return &indexWalker{
		ntfs:     ntfs,
		source:   source,
		resolver: resolver,
		options:  options,
		seen:     make(map[int64]bool),
	}
}

func (self *indexWalker) push(vcn int64) {
	if self.source == nil || self.seen[vcn] {
		return
	}
	self.seen[vcn] = true
	self.work = append(self.work, vcn)
}

func (self *indexWalker) report(err error) {
	self.ntfs.Diagnostics.Add(self.nodes, err)
}

func (self *indexWalker) run(ctx context.Context) {
	for len(self.work) > 0 {
		select {
		case <-ctx.Done():
			DebugPrint("Index walk stopped with %d pending nodes: %v\n",
				len(self.work), ctx.Err())
			return
		default:
		}

		vcn := self.work[0]
		self.work = self.work[1:]

		block, offset, err := self.source.ReadBlock(vcn)
		if err != nil {
			self.report(err)
			continue
		}
		self.parseBlock(block, offset, vcn)
		self.nodes++
	}
}

func (self *indexWalker) parseBlock(block []byte, offset int64, vcn int64) {
	if len(block) < INDX_NODE_HEADER_OFFSET+INDEX_NODE_HEADER_SIZE ||
		string(block[:4]) != INDX_SIGNATURE {
		self.report(newParseError(SignatureMismatch, offset,
			"VCN %d is not an INDX block", vcn))
		return
	}

	fixup, err := ApplyFixup(block, int(getUint16(block, 4)),
		int(getUint16(block, 6)))
	if err != nil {
		self.report(newParseError(OutOfBoundsOffset, offset,
			"INDX fixup: %v", err))
		return
	}
	if err := fixup.Err(offset); err != nil {
		self.report(err)
	}

	self.parseNode(fixup.Data, INDX_NODE_HEADER_OFFSET, offset, vcn)
}

// parseNode reads the node header at header_offset in data and emits
// its entries. Sub-node VCNs are added to the work list.
func (self *indexWalker) parseNode(data []byte, header_offset int,
	base_offset int64, vcn int64) {

	entries_offset := int(getUint32(data, header_offset))
	total_size := int(getUint32(data, header_offset+4))
	allocated_size := int(getUint32(data, header_offset+8))

	end := header_offset + total_size
	start := header_offset + entries_offset
	if total_size < INDEX_NODE_HEADER_SIZE || end > len(data) ||
		entries_offset < INDEX_NODE_HEADER_SIZE || start > end ||
		allocated_size < total_size {
		self.report(newParseError(AllocationInconsistent, base_offset,
			"node VCN %d: entries %#x size %#x allocated %#x in %d bytes",
			vcn, entries_offset, total_size, allocated_size, len(data)))
		return
	}

	position := start
	for position+INDEX_ENTRY_HEADER_SIZE <= end {
		length := int(getUint16(data, position+8))
		key_length := int(getUint16(data, position+10))
		flags := getUint32(data, position+12)

		if length < INDEX_ENTRY_HEADER_SIZE || position+length > end {
			self.report(newParseError(AllocationInconsistent,
				base_offset+int64(position),
				"index entry length %d overruns node VCN %d", length, vcn))
			return
		}

		entry := &IndexEntry{
			FileReference: NewMftReference(getUint64(data, position)),
			EntryFlags:    flags,
			HasSubNode:    flags&INDEX_ENTRY_HAS_SUBNODE != 0,
			NodeVcn:       vcn,
			Offset:        base_offset + int64(position),
		}

		if entry.HasSubNode {
			if length < INDEX_ENTRY_HEADER_SIZE+8 {
				self.report(newParseError(AllocationInconsistent,
					entry.Offset, "sub-node entry too short"))
				return
			}
			entry.SubNodeVcn = int64(getUint64(data, position+length-8))
			self.push(entry.SubNodeVcn)
		}

		position += length
		if flags&INDEX_ENTRY_LAST != 0 {
			break
		}

		if key_length > length-INDEX_ENTRY_HEADER_SIZE {
			self.report(newParseError(OutOfBoundsOffset, entry.Offset,
				"index key length %d exceeds entry", key_length))
			continue
		}

		entry.FileNameAttribute = NewFileNameAttribute(
			data[position-length+INDEX_ENTRY_HEADER_SIZE : position-length+
				INDEX_ENTRY_HEADER_SIZE+key_length])
		if entry.FileNameAttribute == nil {
			self.report(newParseError(OutOfBoundsOffset, entry.Offset,
				"index key is not a $FILE_NAME"))
			continue
		}

		self.emit(entry)
	}

	if self.options.CarveSlack {
		slack_end := header_offset + allocated_size
		if slack_end > len(data) {
			slack_end = len(data)
		}
		self.carveSlack(data, position, slack_end, base_offset, vcn)
	}
}

func (self *indexWalker) emit(entry *IndexEntry) {
	if self.resolver != nil && entry.FileNameAttribute != nil {
		path, err := self.resolver.ResolveChild(entry.Parent, entry.Name)
		if err != nil {
			self.report(err)
		}
		entry.FullPath = path
	}

	STATS.Inc_INDEX_RECORD_ENTRY()
	self.result = append(self.result, entry)
}

const (
	earliest_valid_time = 1000000000 // Sun Sep  9 11:46:40 2001
	latest_valid_time   = 2000000000 // Wed May 18 13:33:20 2033
)

// Carved entries are accepted only when all timestamps are plausible.
func isValidSlackName(fn *FileNameAttribute) bool {
	if fn == nil || fn.Name == "" {
		return false
	}

	for _, ts := range []WinFileTime{
		fn.Created, fn.Modified, fn.MftModified, fn.Accessed} {
		x := ts.UnixOrZero()
		if x < earliest_valid_time || x > latest_valid_time {
			return false
		}
	}
	return true
}

func (self *indexWalker) carveSlack(data []byte, start, end int,
	base_offset int64, vcn int64) {
	for offset := start; offset+INDEX_ENTRY_HEADER_SIZE+FILE_NAME_SIZE <= end; {
		key := data[offset+INDEX_ENTRY_HEADER_SIZE : end]
		fn := NewFileNameAttribute(key)
		if !isValidSlackName(fn) {
			offset++
			continue
		}

		self.emit(&IndexEntry{
			FileNameAttribute: fn,
			FileReference:     NewMftReference(getUint64(data, offset)),
			NodeVcn:           vcn,
			Offset:            base_offset + int64(offset),
			IsSlack:           true,
		})

		// Step over the name as stored, in UTF-16 code units.
		name_length := int((&FILE_NAME{b: key})._length_of_name()) * 2
		size := INDEX_ENTRY_HEADER_SIZE + FILE_NAME_SIZE + name_length
		offset += (size + 7) &^ 7
	}
}

// ParseIndexRoot walks a directory index starting from the content of
// its $INDEX_ROOT attribute. source may be nil for small directories
// without an $INDEX_ALLOCATION attribute.
func ParseIndexRoot(ctx context.Context, ntfs *NTFSContext,
	root []byte, source IndexBlockSource, resolver *PathResolver) []*IndexEntry {
	walker := newIndexWalker(ntfs, source, resolver)
	walker.parseNode(root, INDEX_ROOT_HEADER_OFFSET, 0, -1)
	walker.run(ctx)
	return walker.result
}

// ParseI30Stream walks every INDX block of an extracted $I30 stream.
// Blocks that are also reached as sub-nodes are still visited once.
func ParseI30Stream(ctx context.Context, ntfs *NTFSContext,
	data []byte, resolver *PathResolver) []*IndexEntry {
	block_size := int64(DEFAULT_INDEX_BLOCK_SIZE)
	if ntfs.Boot != nil && ntfs.Boot.IndexBlockSize > 0 {
		block_size = ntfs.Boot.IndexBlockSize
	}

	source := NewStreamBlockSource(data, block_size)
	if len(source.VCNs()) == 0 {
		ntfs.Diagnostics.Add(0, newParseError(SignatureMismatch, 0,
			"no INDX blocks of %d bytes found", block_size))
	}

	walker := newIndexWalker(ntfs, source, resolver)
	for _, vcn := range source.VCNs() {
		walker.push(vcn)
	}
	walker.run(ctx)
	return walker.result
}

// ParseDirectoryIndex walks the $I30 index of a directory entry.
// Allocation blocks are read from image, a volume image, through the
// $INDEX_ALLOCATION run list.
func ParseDirectoryIndex(ctx context.Context, ntfs *NTFSContext,
	entry *MftEntry, image io.ReaderAt, resolver *PathResolver) ([]*IndexEntry, error) {

	var root, allocation *Attribute
	for _, attr := range entry.Attributes {
		if attr.Name != I30_NAME {
			continue
		}
		switch attr.Type {
		case ATTR_INDEX_ROOT:
			root = attr
		case ATTR_INDEX_ALLOCATION:
			if allocation == nil && attr.ContentAvailable() {
				allocation = attr
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: entry %d has no $I30 $INDEX_ROOT",
			NotFoundError, entry.RecordNumber)
	}

	var source IndexBlockSource
	if allocation != nil && image != nil {
		cluster_size := ntfs.ClusterSize
		if cluster_size <= 0 {
			return nil, fmt.Errorf("cluster size is needed to read $INDEX_ALLOCATION")
		}

		block_size := int64(DEFAULT_INDEX_BLOCK_SIZE)
		if view, ok := root.View.(*IndexRoot); ok && view.IndexBlockSize > 0 {
			block_size = int64(view.IndexBlockSize)
		}
		source = NewRunlistBlockSource(image, allocation.Runs,
			cluster_size, block_size)
	}

	return ParseIndexRoot(ctx, ntfs, root.Content, source, resolver), nil
}

// Sorts entries by name for display.
func SortIndexEntries(entries []*IndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FileNameAttribute == nil || entries[j].FileNameAttribute == nil {
			return entries[i].FileNameAttribute != nil
		}
		return entries[i].Name < entries[j].Name
	})
}
