package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
)

const (
	FILE_ATTRIBUTE_DIRECTORY = 0x10

	// $FILE_NAME flag of directory index entries.
	FILE_NAME_INDEX_PRESENT = 0x10000000
)

type bodyfileWriter struct {
	w        *bufio.Writer
	drive    string
	new_line string
}

func newBodyfileWriter(w io.Writer, options Options) *bodyfileWriter {
	drive := strings.TrimSuffix(options.DriveLetter, ":")
	if drive == "" {
		drive = "C"
	}

	new_line := "\r\n"
	if options.LineFeed {
		new_line = "\n"
	}

	return &bodyfileWriter{
		w:        bufio.NewWriter(w),
		drive:    drive,
		new_line: new_line,
	}
}

// MD5|name|inode|mode_as_string|UID|GID|size|atime|mtime|ctime|crtime
func (self *bodyfileWriter) line(path string, inode uint64, is_dir bool,
	size uint64, atime, mtime, ctime, crtime int64) error {
	mode := "r"
	if is_dir {
		mode = "d"
	}

	_, err := fmt.Fprintf(self.w, "0|%s:/%s|%d|%s/r-xr-xr-x|0|0|%d|%d|%d|%d|%d%s",
		self.drive, strings.TrimPrefix(path, "/"), inode, mode, size,
		atime, mtime, ctime, crtime, self.new_line)
	return err
}

// WriteBodyfile writes MFT, USN or index records as a mactime
// bodyfile. MFT entries use their $STANDARD_INFORMATION times and
// unused entries are skipped.
func WriteBodyfile(w io.Writer, result *mfte.Result, options Options) error {
	writer := newBodyfileWriter(w, options)

	switch result.Kind {
	case parser.ArtifactMFT:
		if result.MFT == nil {
			break
		}
		for _, entry := range result.MFT.Entries {
			if !entry.InUse() {
				continue
			}
			err := writeMFTBody(writer, entry, result.Resolver)
			if err != nil {
				return err
			}
		}

	case parser.ArtifactUsnJournal:
		for _, record := range result.UsnRecords {
			path := record.FullPath
			if path == "" {
				path = record.Filename
			}
			ts := record.Timestamp.UnixOrZero()
			err := writer.line(path, record.FileReference.Entry,
				record.FileAttributes&FILE_ATTRIBUTE_DIRECTORY != 0,
				0, ts, ts, ts, ts)
			if err != nil {
				return err
			}
		}

	case parser.ArtifactI30:
		for _, entry := range result.IndexEntries {
			fn := entry.FileNameAttribute
			if fn == nil {
				continue
			}
			path := entry.FullPath
			if path == "" {
				path = fn.Name
			}
			err := writer.line(path, entry.FileReference.Entry,
				fn.Flags&FILE_NAME_INDEX_PRESENT != 0, fn.RealSize,
				fn.Accessed.UnixOrZero(), fn.Modified.UnixOrZero(),
				fn.MftModified.UnixOrZero(), fn.Created.UnixOrZero())
			if err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("bodyfile output is not available for %v", result.Kind)
	}

	return writer.w.Flush()
}

func writeMFTBody(writer *bodyfileWriter, entry *parser.MftEntry,
	resolver *parser.PathResolver) error {
	fn := entry.PrimaryFileName()
	if fn == nil {
		return nil
	}

	path := fn.Name
	if resolver != nil {
		full_path, _ := resolver.FullPath(entry.RecordNumber)
		if full_path != "" {
			path = full_path
		}
	}

	si := entry.StandardInformation
	if si == nil {
		si = &parser.StandardInformation{}
	}

	return writer.line(path, entry.RecordNumber, entry.IsDir(),
		entry.FileSize(), si.Accessed.UnixOrZero(), si.Modified.UnixOrZero(),
		si.MftModified.UnixOrZero(), si.Created.UnixOrZero())
}
