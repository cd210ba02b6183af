package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	ls_command = app.Command(
		"ls", "List the children of a directory entry.")

	ls_command_file_arg = ls_command.Arg(
		"file", "The $MFT to read",
	).Required().ExistingFile()

	ls_command_arg = ls_command.Arg(
		"entry", "The directory MFT entry.",
	).Default("5").Uint64()
)

func doLS() {
	artifact := openArtifact(*ls_command_file_arg)
	defer artifact.Close()

	options := getOptions()
	ntfs := parser.NewNTFSContext(options)
	mft := parser.ParseMFT(context.Background(), ntfs, artifact.Data)
	resolver := parser.NewPathResolver(mft, options)

	_, pres := mft.GetEntry(*ls_command_arg)
	if !pres {
		kingpin.Fatalf("MFT entry %d not found", *ls_command_arg)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"MFT Id",
		"FullPath",
		"Size",
		"Mtime",
		"IsDir",
		"Filename",
	})
	table.SetCaption(true, fmt.Sprintf(
		"Directory listing for MFT %v", *ls_command_arg))
	defer table.Render()

	for _, info := range mfte.ListDir(mft, resolver, *ls_command_arg) {
		table.Append([]string{
			info.MFTId,
			info.FullPath,
			fmt.Sprintf("%v", info.Size),
			fmt.Sprintf("%v", info.Mtime.In(time.UTC)),
			fmt.Sprintf("%v", info.IsDir),
			info.Name,
		})
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "ls":
			doLS()
		default:
			return false
		}
		return true
	})
}
