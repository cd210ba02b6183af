package main

import (
	"fmt"

	"github.com/mfte-go/mfte"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	detect_command = app.Command(
		"detect", "Print the kind of an artifact.")

	detect_command_file_arg = detect_command.Arg(
		"file", "The artifact to inspect",
	).Required().ExistingFile()
)

func doDetect() {
	artifact := openArtifact(*detect_command_file_arg)
	defer artifact.Close()

	kind, err := mfte.Detect(artifact.Data)
	kingpin.FatalIfError(err, "Detect")

	fmt.Println(kind)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case detect_command.FullCommand():
			doDetect()
		default:
			return false
		}
		return true
	})
}
