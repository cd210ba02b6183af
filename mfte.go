// Package mfte decodes NTFS metadata artifacts: $MFT, $UsnJrnl:$J,
// $Boot, $Secure:$SDS and $I30 index streams.
//
// Detect() picks the decoder from the leading bytes and Parse() runs
// it, returning the decoded records together with every recoverable
// problem found on the way. Only whole artifact failures are returned
// as errors.
package mfte

import (
	"context"
	"fmt"

	"github.com/mfte-go/mfte/parser"
)

// Result of parsing one artifact. Only the field matching Kind is set.
type Result struct {
	Kind parser.ArtifactKind `json:"kind"`

	Boot                *parser.BootSector   `json:"boot,omitempty"`
	MFT                 *parser.MFTResult    `json:"mft,omitempty"`
	UsnRecords          []*parser.UsnRecord  `json:"usn_records,omitempty"`
	SecurityDescriptors *parser.SDSResult    `json:"security_descriptors,omitempty"`
	IndexEntries        []*parser.IndexEntry `json:"index_entries,omitempty"`

	// Set when MFT context was available.
	Resolver *parser.PathResolver `json:"-"`

	Diagnostics []parser.Diagnostic `json:"diagnostics"`
}

// Number of records decoded.
func (self *Result) Count() int {
	switch self.Kind {
	case parser.ArtifactBoot:
		if self.Boot != nil {
			return 1
		}
	case parser.ArtifactMFT:
		if self.MFT != nil {
			return len(self.MFT.Entries)
		}
	case parser.ArtifactUsnJournal:
		return len(self.UsnRecords)
	case parser.ArtifactSDS:
		if self.SecurityDescriptors != nil {
			return len(self.SecurityDescriptors.Entries)
		}
	case parser.ArtifactI30:
		return len(self.IndexEntries)
	}
	return 0
}

func Detect(data []byte) (parser.ArtifactKind, error) {
	return parser.DetectArtifact(data)
}

// Parse decodes data as kind, or the detected kind when kind is
// ArtifactUnknown. mft_context is an optional $MFT used to resolve the
// paths of USN and index records.
func Parse(ctx context.Context, data []byte, kind parser.ArtifactKind,
	mft_context []byte, options parser.Options) (*Result, error) {

	if len(data) == 0 {
		return nil, parser.EmptyBufferError
	}

	if kind == parser.ArtifactUnknown {
		detected, err := Detect(data)
		if err != nil {
			return nil, err
		}
		kind = detected
		parser.GetLogger().Debugf("Detected artifact kind %v", kind)
	}

	if options.Timeout > 0 {
		sub_ctx, cancel := context.WithTimeout(ctx, options.Timeout)
		defer cancel()
		ctx = sub_ctx
	}

	ntfs := parser.NewNTFSContext(options)
	result := &Result{Kind: kind}

	switch kind {
	case parser.ArtifactBoot, parser.ArtifactMFT, parser.ArtifactI30,
		parser.ArtifactUsnJournal, parser.ArtifactSDS:
	default:
		return nil, fmt.Errorf("unsupported artifact kind %v", kind)
	}

	if len(mft_context) > 0 && !options.DisableFullPathResolution &&
		(kind == parser.ArtifactUsnJournal || kind == parser.ArtifactI30) {
		resolver, err := buildResolver(ctx, mft_context, options, ntfs)
		if err != nil {
			return nil, err
		}
		result.Resolver = resolver
	}

	switch kind {
	case parser.ArtifactBoot:
		boot, err := parser.ParseBootSector(data)
		if err != nil {
			return nil, err
		}
		result.Boot = boot

	case parser.ArtifactMFT:
		if len(data) >= 4 && string(data[:4]) != parser.FILE_SIGNATURE {
			return nil, fmt.Errorf("%w: artifact does not start with a FILE record",
				parser.SignatureMismatchError)
		}
		result.MFT = parser.ParseMFT(ctx, ntfs, data)
		if !options.DisableFullPathResolution {
			result.Resolver = parser.NewPathResolver(result.MFT, options)
		}

	case parser.ArtifactUsnJournal:
		for record := range parser.ParseUSN(ctx, ntfs, data, result.Resolver) {
			result.UsnRecords = append(result.UsnRecords, record)
		}

	case parser.ArtifactSDS:
		result.SecurityDescriptors = parser.ParseSDS(ctx, ntfs, data)

	case parser.ArtifactI30:
		if len(data) >= 4 && string(data[:4]) != parser.INDX_SIGNATURE {
			return nil, fmt.Errorf("%w: artifact does not start with an INDX block",
				parser.SignatureMismatchError)
		}
		result.IndexEntries = parser.ParseI30Stream(
			ctx, ntfs, data, result.Resolver)
	}

	if ctx.Err() != nil {
		parser.GetLogger().Warnf("Parsing %v stopped early: %v", kind, ctx.Err())
	}

	result.Diagnostics = ntfs.Diagnostics.Items()
	return result, nil
}

// The MFT context is parsed with its own diagnostics: its problems do
// not belong to the artifact being parsed.
func buildResolver(ctx context.Context, mft_context []byte,
	options parser.Options, ntfs *parser.NTFSContext) (*parser.PathResolver, error) {
	if string(mft_context[:CapInt(len(mft_context), 4)]) != parser.FILE_SIGNATURE {
		return nil, fmt.Errorf("%w: MFT context does not start with a FILE record",
			parser.SignatureMismatchError)
	}

	mft_ntfs := parser.NewNTFSContext(options)
	mft_ntfs.Boot = ntfs.Boot
	mft := parser.ParseMFT(ctx, mft_ntfs, mft_context)

	parser.GetLogger().Debugf("MFT context: %d entries, %d diagnostics",
		len(mft.Entries), mft_ntfs.Diagnostics.Len())

	return parser.NewPathResolver(mft, options), nil
}

func CapInt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
