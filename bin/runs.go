package main

import (
	"fmt"
	"strings"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	runs_command = app.Command(
		"runs", "Display the runs of a non resident attribute.")

	runs_command_file_arg = runs_command.Arg(
		"file", "The $MFT to read",
	).Required().ExistingFile()

	runs_command_arg = runs_command.Arg(
		"mft_id", "An entry number or an inode in MFT notation e.g. 43-128-0.",
	).Required().String()

	runs_command_cluster_size = runs_command.Flag(
		"cluster_size", "Cluster size of the volume.",
	).Default("4096").Int64()

	runs_command_raw_runs = runs_command.Flag(
		"raw_runs", "Also show decoded runs.",
	).Bool()
)

func doRuns() {
	artifact := openArtifact(*runs_command_file_arg)
	defer artifact.Close()

	entry_number, _, _, err := parser.ParseInode(*runs_command_arg)
	kingpin.FatalIfError(err, "Inode")

	mft_entry, err := mfte.DumpEntry(artifact.Data,
		fmt.Sprintf("%d", entry_number), getOptions())
	kingpin.FatalIfError(err, "Can not open entry")

	// A bare entry number lists every non resident attribute.
	attrs := []*parser.Attribute{}
	if strings.Contains(*runs_command_arg, "-") {
		attr, err := parser.FindAttribute(mft_entry, *runs_command_arg)
		kingpin.FatalIfError(err, "Can not find attribute")
		attrs = append(attrs, attr)
	} else {
		for _, attr := range mft_entry.Attributes {
			if !attr.Resident {
				attrs = append(attrs, attr)
			}
		}
	}

	for _, attr := range attrs {
		printRuns(attr)
	}
}

func printRuns(attr *parser.Attribute) {
	if attr.Resident {
		fmt.Printf("%v is resident (%d bytes)\n", attr.Inode, attr.ContentSize)
		return
	}

	fmt.Printf("%v %v\n", attr.Inode, attr.Name)
	if attr.RunlistError != "" {
		logger.Warnf("Run list of %v: %v", attr.Inode, attr.RunlistError)
	}

	if *runs_command_raw_runs {
		fmt.Println(attr.DebugString())
		for _, run := range attr.Runs {
			parser.Debug(run)
		}
	}

	for idx, r := range parser.DescribeRuns(attr, *runs_command_cluster_size) {
		fmt.Printf("%d %v\n", idx, r)
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "runs":
			doRuns()
		default:
			return false
		}
		return true
	})
}
