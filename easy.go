// Implement some easy APIs.
package mfte

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mfte-go/mfte/parser"
)

type FileInfo struct {
	MFTId    string    `json:"MFTId,omitempty"`
	Mtime    time.Time `json:"Mtime,omitempty"`
	Atime    time.Time `json:"Atime,omitempty"`
	Ctime    time.Time `json:"Ctime,omitempty"`
	Btime    time.Time `json:"Btime,omitempty"` // Birth time.
	Name     string    `json:"Name,omitempty"`
	NameType string    `json:"NameType,omitempty"`
	IsDir    bool      `json:"IsDir,omitempty"`
	InUse    bool      `json:"InUse,omitempty"`
	Size     uint64
	FullPath string `json:"FullPath,omitempty"`
}

// DumpEntry decodes a single entry of an MFT stream. spec is an entry
// number with an optional sequence number, e.g. 1234-5. The slot is
// read directly so the rest of the MFT is not decoded.
func DumpEntry(data []byte, spec string, options parser.Options) (*parser.MftEntry, error) {
	entry_number, sequence, err := parser.ParseEntrySpec(spec)
	if err != nil {
		return nil, err
	}

	record_size := options.RecordSize
	if record_size <= 0 {
		record_size = parser.DetectRecordSize(data)
	}

	offset := int64(entry_number) * record_size
	if offset+record_size > int64(len(data)) {
		return nil, fmt.Errorf("%w: MFT entry %d is past the end of the MFT",
			parser.NotFoundError, entry_number)
	}

	entry, warnings, err := parser.ParseMFTEntry(
		data[offset:offset+record_size], offset, int64(entry_number))
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		parser.GetLogger().Warnf("Entry %d: %v", entry_number, warning)
	}

	if sequence != nil && *sequence != entry.SequenceNumber {
		return nil, fmt.Errorf("%w: MFT entry %d has sequence %d not %d",
			parser.NotFoundError, entry_number, entry.SequenceNumber, *sequence)
	}

	return entry, nil
}

// DumpSecurityDescriptor finds one security id in a $SDS stream.
func DumpSecurityDescriptor(ctx context.Context, data []byte, id uint32,
	options parser.Options) (*parser.SecurityDescriptorEntry, error) {
	if len(data) == 0 {
		return nil, parser.EmptyBufferError
	}

	ntfs := parser.NewNTFSContext(options)
	return parser.ParseSDS(ctx, ntfs, data).FindById(id)
}

func fileInfo(entry *parser.MftEntry, fn *parser.FileNameAttribute,
	resolver *parser.PathResolver) *FileInfo {
	result := &FileInfo{
		MFTId:    fmt.Sprintf("%d", entry.RecordNumber),
		Name:     fn.Name,
		NameType: fn.Namespace.String(),
		IsDir:    entry.IsDir(),
		InUse:    entry.InUse(),
		Size:     entry.FileSize(),
		Btime:    fn.Created.Time,
		Mtime:    fn.Modified.Time,
		Ctime:    fn.MftModified.Time,
		Atime:    fn.Accessed.Time,
	}

	if si := entry.StandardInformation; si != nil {
		result.Btime = si.Created.Time
		result.Mtime = si.Modified.Time
		result.Ctime = si.MftModified.Time
		result.Atime = si.Accessed.Time
	}

	if resolver != nil {
		result.FullPath, _ = resolver.ResolveChild(fn.Parent, fn.Name)
	}
	return result
}

// ListDir lists the entries whose $FILE_NAME names directory dir as
// parent. DOS names are skipped when the entry has a long name too.
func ListDir(mft *parser.MFTResult, resolver *parser.PathResolver,
	dir uint64) []*FileInfo {
	result := []*FileInfo{}

	parent, pres := mft.GetEntry(dir)
	if !pres {
		return result
	}

	for _, entry := range mft.Entries {
		if entry.RecordNumber == dir {
			continue
		}

		for _, fn := range entry.FileNames {
			if fn.Namespace == parser.NamespaceDOS && len(entry.FileNames) > 1 {
				continue
			}
			if fn.Parent.Entry != dir || fn.Parent.Sequence != parent.SequenceNumber {
				continue
			}
			result = append(result, fileInfo(entry, fn, resolver))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ParseImageDirectory walks the $I30 index of one directory using its
// $INDEX_ALLOCATION run list to read blocks from a volume image. The
// directory entry comes from mft_data, an extracted $MFT of the same
// volume.
func ParseImageDirectory(ctx context.Context, image io.ReaderAt,
	mft_data []byte, spec string, options parser.Options) (*Result, error) {
	if options.Timeout > 0 {
		sub_ctx, cancel := context.WithTimeout(ctx, options.Timeout)
		defer cancel()
		ctx = sub_ctx
	}

	boot_data := make([]byte, parser.SECTOR_SIZE)
	_, err := image.ReadAt(boot_data, 0)
	if err != nil {
		return nil, fmt.Errorf("reading boot sector: %w", err)
	}

	boot, err := parser.ParseBootSector(boot_data)
	if err != nil {
		return nil, err
	}

	ntfs := parser.NewNTFSContext(options)
	ntfs.SetBoot(boot)

	mft := parser.ParseMFT(ctx, ntfs, mft_data)
	resolver := parser.NewPathResolver(mft, options)

	entry_number, sequence, err := parser.ParseEntrySpec(spec)
	if err != nil {
		return nil, err
	}

	entry, err := mft.DumpEntry(entry_number, sequence)
	if err != nil {
		return nil, err
	}

	reader, err := NewPagedReader(image, boot.ClusterSize, DefaultPageCount)
	if err != nil {
		return nil, err
	}

	entries, err := parser.ParseDirectoryIndex(ctx, ntfs, entry, reader, resolver)
	if err != nil {
		return nil, err
	}

	parser.GetLogger().Debugf("Paged reader: %d hits %d misses",
		reader.Hits, reader.Misses)

	return &Result{
		Kind:         parser.ArtifactI30,
		Boot:         boot,
		IndexEntries: entries,
		Resolver:     resolver,
		Diagnostics:  ntfs.Diagnostics.Items(),
	}, nil
}
