package main

import (
	"fmt"
	"os"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/output"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	dump_command = app.Command(
		"dump", "Dump a single MFT entry.")

	dump_command_file_arg = dump_command.Arg(
		"file", "The $MFT to read",
	).Required().ExistingFile()

	dump_command_entry_arg = dump_command.Arg(
		"entry", "Entry number with an optional sequence e.g. 1234-5",
	).Required().String()

	dump_command_raw_out = dump_command.Flag(
		"raw_out", "Also write the fixed up record to this file.",
	).String()

	dump_command_verbose = dump_command.Flag(
		"verbose", "Print a text summary instead of JSON.",
	).Short('v').Bool()
)

func doDump() {
	artifact := openArtifact(*dump_command_file_arg)
	defer artifact.Close()

	entry, err := mfte.DumpEntry(artifact.Data, *dump_command_entry_arg, getOptions())
	kingpin.FatalIfError(err, "Entry %v", *dump_command_entry_arg)

	if *dump_command_verbose {
		fmt.Println(entry.DebugString())
	} else {
		err := output.WriteJSON(os.Stdout, entry)
		kingpin.FatalIfError(err, "JSON")
	}

	if *dump_command_raw_out != "" {
		err := os.WriteFile(*dump_command_raw_out, entry.Raw(), 0644)
		kingpin.FatalIfError(err, "Writing %v", *dump_command_raw_out)
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case dump_command.FullCommand():
			doDump()
		default:
			return false
		}
		return true
	})
}
