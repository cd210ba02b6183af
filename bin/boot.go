package main

import (
	"fmt"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	boot_command = app.Command(
		"boot", "inspect the boot record.")

	boot_command_arg = boot_command.Arg(
		"file", "A $Boot file or a volume image",
	).Required().ExistingFile()
)

func doBoot() {
	data, err := mfte.ReadArtifact(*boot_command_arg, parser.BOOT_SECTOR_SIZE)
	kingpin.FatalIfError(err, "Reading %v", *boot_command_arg)

	boot, err := parser.ParseBootSector(data)
	kingpin.FatalIfError(err, "Boot record")

	fmt.Println(boot.DebugString())
	if !boot.EndMarkerValid {
		logger.Warn("Boot sector end marker is missing")
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case "boot":
			doBoot()
		default:
			return false
		}
		return true
	})
}
