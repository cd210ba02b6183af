package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/mfte-go/mfte/output"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	i30_command = app.Command(
		"i30", "Extract entries from an $I30 stream.")

	i30_command_file_arg = i30_command.Arg(
		"file", "The I30 stream to inspect.",
	).Required().ExistingFile()

	i30_command_file_csv = i30_command.Flag(
		"csv", "Output in CSV.",
	).Bool()

	i30_command_slack = i30_command.Flag(
		"slack", "Carve deleted entries from slack space.",
	).Bool()
)

func doI30() {
	artifact := openArtifact(*i30_command_file_arg)
	defer artifact.Close()

	options := getOptions()
	options.CarveSlack = *i30_command_slack
	ntfs := parser.NewNTFSContext(options)

	data := parser.ParseI30Stream(context.Background(), ntfs, artifact.Data, nil)
	for _, d := range ntfs.Diagnostics.Items() {
		logger.Warn(d.String())
	}

	if *i30_command_file_csv {
		writer := csv.NewWriter(os.Stdout)
		defer writer.Flush()

		writer.Write([]string{"Name", "NameType", "Size", "AllocatedSize",
			"Mtime", "Atime", "Ctime", "Btime", "IsSlack"})

		for _, info := range data {
			writer.Write([]string{
				info.Name,
				info.Namespace.String(),
				fmt.Sprintf("%v", info.RealSize),
				fmt.Sprintf("%v", info.AllocatedSize),
				fmt.Sprintf("%v", info.Modified),
				fmt.Sprintf("%v", info.Accessed),
				fmt.Sprintf("%v", info.MftModified),
				fmt.Sprintf("%v", info.Created),
				fmt.Sprintf("%v", info.IsSlack),
			})
		}

	} else {
		err := output.WriteJSON(os.Stdout, data)
		kingpin.FatalIfError(err, "serialized")
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "i30":
			doI30()
		default:
			return false
		}
		return true
	})
}
