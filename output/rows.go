// Package output renders parse results as flat rows and writes them
// as CSV, JSON, bodyfiles, console tables or SQLite tables.
package output

import (
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
)

const ZONE_IDENTIFIER = "Zone.Identifier"

type Options struct {
	// Add a ShortName column holding the DOS name of MFT entries.
	ShortNames bool

	// Bodyfile drive letter and line ending.
	DriveLetter string
	LineFeed    bool

	// Rows shown by WriteTable. 0 means DefaultTableRows.
	TableRows int
}

func GetDefaultOptions() Options {
	return Options{
		DriveLetter: "C",
		TableRows:   DefaultTableRows,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func joinNames(names []string) string {
	return strings.Join(names, "|")
}

// Rows flattens result into one ordered row per record. All rows of a
// result have the same keys in the same order.
func Rows(result *mfte.Result, options Options) []*ordereddict.Dict {
	switch result.Kind {
	case parser.ArtifactMFT:
		return MFTRows(result.MFT, result.Resolver, options)
	case parser.ArtifactUsnJournal:
		return UsnRows(result.UsnRecords)
	case parser.ArtifactBoot:
		return BootRows(result.Boot)
	case parser.ArtifactSDS:
		return SDSRows(result.SecurityDescriptors)
	case parser.ArtifactI30:
		return IndexRows(result.IndexEntries)
	}
	return nil
}

// MFTRows gives one row per entry and one more per named $DATA
// stream.
func MFTRows(mft *parser.MFTResult, resolver *parser.PathResolver,
	options Options) []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	if mft == nil {
		return result
	}

	for _, entry := range mft.Entries {
		result = append(result, mftRow(entry, resolver, nil, options))
		for _, stream := range entry.AlternateDataStreams() {
			result = append(result, mftRow(entry, resolver, stream, options))
		}
	}
	return result
}

func zoneIdentifier(entry *parser.MftEntry) string {
	for _, stream := range entry.DataStreams {
		if stream.Name == ZONE_IDENTIFIER {
			return stream.Text
		}
	}
	return ""
}

func shortName(entry *parser.MftEntry) string {
	for _, fn := range entry.FileNames {
		if fn.Namespace == parser.NamespaceDOS {
			return fn.Name
		}
	}
	return ""
}

// An entry without $STANDARD_INFORMATION or $FILE_NAME gets empty
// values for their columns.
func mftRow(entry *parser.MftEntry, resolver *parser.PathResolver,
	ads *parser.DataStream, options Options) *ordereddict.Dict {
	si := entry.StandardInformation
	if si == nil {
		si = &parser.StandardInformation{}
	}

	fn := entry.PrimaryFileName()
	if fn == nil {
		fn = &parser.FileNameAttribute{}
	}

	parent_path := ""
	if resolver != nil && len(entry.FileNames) > 0 {
		parent_path, _ = resolver.ResolveParent(fn.Parent)
	}

	name := fn.Name
	extension := fn.Extension()
	size := entry.FileSize()
	zone := zoneIdentifier(entry)
	if ads != nil {
		name += ":" + ads.Name
		extension = ""
		size = ads.Size
		zone = ads.Text
	}

	object_id := ""
	if entry.ObjectId != nil {
		object_id = entry.ObjectId.ObjectId
	}

	reparse_target := ""
	if entry.ReparsePoint != nil {
		reparse_target = entry.ReparsePoint.Target()
	}

	logged_utility_stream := ""
	if entry.LoggedUtilityStream != nil {
		logged_utility_stream = entry.LoggedUtilityStream.Name
	}

	created := si.Created.Time
	modified := si.Modified.Time

	row := ordereddict.NewDict().
		Set("EntryNumber", entry.RecordNumber).
		Set("SequenceNumber", entry.SequenceNumber).
		Set("InUse", entry.InUse()).
		Set("ParentEntryNumber", fn.Parent.Entry).
		Set("ParentSequenceNumber", fn.Parent.Sequence).
		Set("ParentPath", parent_path).
		Set("FileName", name).
		Set("Extension", extension).
		Set("FileSize", size).
		Set("ReferenceCount", entry.LinkCount).
		Set("IsDirectory", entry.IsDir()).
		Set("HasAds", entry.HasADS()).
		Set("IsAds", ads != nil).
		Set("SI_Lt_FN", !created.IsZero() && created.Before(fn.Created.Time)).
		Set("USecZeros", !created.IsZero() &&
			(created.Nanosecond() == 0 || modified.Nanosecond() == 0)).
		Set("Copied", created.After(modified)).
		Set("SIFlags", joinNames(si.FlagNames)).
		Set("NameType", fn.Namespace.String()).
		Set("Created0x10", formatTime(si.Created.Time)).
		Set("Created0x30", formatTime(fn.Created.Time)).
		Set("LastModified0x10", formatTime(si.Modified.Time)).
		Set("LastModified0x30", formatTime(fn.Modified.Time)).
		Set("LastRecordChange0x10", formatTime(si.MftModified.Time)).
		Set("LastRecordChange0x30", formatTime(fn.MftModified.Time)).
		Set("LastAccess0x10", formatTime(si.Accessed.Time)).
		Set("LastAccess0x30", formatTime(fn.Accessed.Time)).
		Set("UpdateSequenceNumber", si.Usn).
		Set("LogfileSequenceNumber", entry.LogfileSequenceNumber).
		Set("SecurityId", si.SecurityId).
		Set("ObjectId", object_id).
		Set("LoggedUtilStream", logged_utility_stream).
		Set("ReparseTarget", reparse_target).
		Set("ZoneIdContents", zone).
		Set("FixupOk", entry.FixupOk)

	if options.ShortNames {
		row.Set("ShortName", shortName(entry))
	}
	return row
}

func UsnRows(records []*parser.UsnRecord) []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	for _, record := range records {
		result = append(result, ordereddict.NewDict().
			Set("Offset", record.Offset).
			Set("UpdateSequenceNumber", record.Usn).
			Set("UpdateTimestamp", formatTime(record.Timestamp.Time)).
			Set("EntryNumber", record.FileReference.Entry).
			Set("SequenceNumber", record.FileReference.Sequence).
			Set("ParentEntryNumber", record.ParentReference.Entry).
			Set("ParentSequenceNumber", record.ParentReference.Sequence).
			Set("Name", record.Filename).
			Set("UpdateReasons", joinNames(record.ReasonNames)).
			Set("FileAttributes", joinNames(record.AttributeNames)).
			Set("SourceInfo", joinNames(record.SourceInfoNames)).
			Set("SecurityId", record.SecurityId).
			Set("MajorVersion", record.MajorVersion).
			Set("ParentPath", record.ParentPath).
			Set("FullPath", record.FullPath))
	}
	return result
}

func BootRows(boot *parser.BootSector) []*ordereddict.Dict {
	if boot == nil {
		return []*ordereddict.Dict{}
	}

	return []*ordereddict.Dict{ordereddict.NewDict().
		Set("OemId", boot.OemId).
		Set("BytesPerSector", boot.BytesPerSector).
		Set("SectorsPerCluster", boot.SectorsPerCluster).
		Set("ClusterSize", boot.ClusterSize).
		Set("RecordSize", boot.RecordSize).
		Set("IndexBlockSize", boot.IndexBlockSize).
		Set("TotalSectors", boot.TotalSectors).
		Set("TotalClusters", boot.TotalClusters).
		Set("MftCluster", boot.MftCluster).
		Set("MftMirrorCluster", boot.MftMirrorCluster).
		Set("SerialNumber", boot.SerialNumber).
		Set("EndMarkerValid", boot.EndMarkerValid)}
}

func sidString(sid *parser.Sid) string {
	if sid == nil {
		return ""
	}
	return sid.String
}

func aceCount(acl *parser.Acl) int {
	if acl == nil {
		return 0
	}
	return len(acl.Aces)
}

func SDSRows(sds *parser.SDSResult) []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	if sds == nil {
		return result
	}

	for _, entry := range sds.Entries {
		descriptor := entry.Descriptor
		if descriptor == nil {
			descriptor = &parser.SecurityDescriptor{}
		}

		result = append(result, ordereddict.NewDict().
			Set("Id", entry.Id).
			Set("Hash", entry.Hash).
			Set("Offset", entry.Offset).
			Set("StreamOffset", entry.StreamOffset).
			Set("Length", entry.Length).
			Set("Owner", sidString(descriptor.Owner)).
			Set("Group", sidString(descriptor.Group)).
			Set("Control", joinNames(descriptor.ControlNames)).
			Set("DaclAces", aceCount(descriptor.Dacl)).
			Set("SaclAces", aceCount(descriptor.Sacl)))
	}
	return result
}

func IndexRows(entries []*parser.IndexEntry) []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	for _, entry := range entries {
		fn := entry.FileNameAttribute
		if fn == nil {
			fn = &parser.FileNameAttribute{}
		}

		result = append(result, ordereddict.NewDict().
			Set("Offset", entry.Offset).
			Set("NodeVcn", entry.NodeVcn).
			Set("IsSlack", entry.IsSlack).
			Set("EntryNumber", entry.FileReference.Entry).
			Set("SequenceNumber", entry.FileReference.Sequence).
			Set("ParentEntryNumber", fn.Parent.Entry).
			Set("ParentSequenceNumber", fn.Parent.Sequence).
			Set("FileName", fn.Name).
			Set("NameType", fn.Namespace.String()).
			Set("FileSize", fn.RealSize).
			Set("AllocatedSize", fn.AllocatedSize).
			Set("Created", formatTime(fn.Created.Time)).
			Set("Modified", formatTime(fn.Modified.Time)).
			Set("RecordChanged", formatTime(fn.MftModified.Time)).
			Set("Accessed", formatTime(fn.Accessed.Time)).
			Set("FullPath", entry.FullPath))
	}
	return result
}
