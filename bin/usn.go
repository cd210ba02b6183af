package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfte-go/mfte/parser"
)

var (
	usn_command = app.Command(
		"usn", "inspect the USN journal.")

	usn_command_file_arg = usn_command.Arg(
		"file", "The $UsnJrnl:$J stream to inspect",
	).Required().ExistingFile()

	usn_command_scan_ahead = usn_command.Flag(
		"scan_ahead", "Skip zero filled gaps instead of stopping.",
	).Bool()

	usn_command_mft = usn_command.Flag(
		"mft", "An $MFT used to resolve full paths.",
	).ExistingFile()
)

const template = `
USN ID: %x @ %x
Filename: %s
FullPath: %s
Timestamp: %v
Reason: %s
FileAttributes: %s
SourceInfo: %s
`

func doUSN() {
	artifact := openArtifact(*usn_command_file_arg)
	defer artifact.Close()

	ctx := context.Background()
	options := getOptions()
	if *usn_command_scan_ahead {
		options.UsnScanAhead = true
	}
	ntfs := parser.NewNTFSContext(options)

	var resolver *parser.PathResolver
	if *usn_command_mft != "" {
		mft_artifact := openArtifact(*usn_command_mft)
		defer mft_artifact.Close()

		mft := parser.ParseMFT(ctx, parser.NewNTFSContext(options), mft_artifact.Data)
		resolver = parser.NewPathResolver(mft, options)
	}

	for record := range parser.ParseUSN(ctx, ntfs, artifact.Data, resolver) {
		fmt.Printf(template, record.Usn, record.Offset,
			record.Filename,
			record.FullPath, record.Timestamp,
			strings.Join(record.ReasonNames, ", "),
			strings.Join(record.AttributeNames, ", "),
			strings.Join(record.SourceInfoNames, ", "),
		)
	}

	for _, d := range ntfs.Diagnostics.Items() {
		logger.Warn(d.String())
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case usn_command.FullCommand():
			doUSN()
		default:
			return false
		}
		return true
	})
}
