package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mfte-go/mfte/output"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	stat_command = app.Command(
		"stat", "inspect the MFT record.")

	stat_command_file_arg = stat_command.Arg(
		"file", "The $MFT to read",
	).Required().ExistingFile()

	stat_command_arg = stat_command.Arg(
		"entry", "Entry number with an optional sequence e.g. 1234-5",
	).Default("5").String()

	stat_command_verbose = stat_command.Flag(
		"verbose", "Print the decoded attributes instead of the row.",
	).Short('v').Bool()
)

func doSTAT() {
	artifact := openArtifact(*stat_command_file_arg)
	defer artifact.Close()

	options := getOptions()
	ntfs := parser.NewNTFSContext(options)
	mft := parser.ParseMFT(context.Background(), ntfs, artifact.Data)
	resolver := parser.NewPathResolver(mft, options)

	entry_number, sequence, err := parser.ParseEntrySpec(*stat_command_arg)
	kingpin.FatalIfError(err, "Entry")

	mft_entry, err := mft.DumpEntry(entry_number, sequence)
	kingpin.FatalIfError(err, "Can not open entry")

	if *stat_command_verbose {
		fmt.Println(mft_entry.DebugString())
		for _, link := range resolver.Links(entry_number) {
			fmt.Printf("Link: %v\n", link)
		}
		return
	}

	single := &parser.MFTResult{Entries: []*parser.MftEntry{mft_entry}}
	rows := output.MFTRows(single, resolver, output.GetDefaultOptions())

	err = output.WriteJSON(os.Stdout, rows)
	kingpin.FatalIfError(err, "Marshal")
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "stat":
			doSTAT()
		default:
			return false
		}
		return true
	})
}
