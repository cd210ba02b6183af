package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	secid_command = app.Command(
		"secid", "Show one security descriptor from an $SDS stream.")

	secid_command_file_arg = secid_command.Arg(
		"file", "The $SDS stream to read",
	).Required().ExistingFile()

	secid_command_id_arg = secid_command.Arg(
		"id", "The security id, as found in $STANDARD_INFORMATION",
	).Required().Uint32()
)

func doSecid() {
	artifact := openArtifact(*secid_command_file_arg)
	defer artifact.Close()

	entry, err := mfte.DumpSecurityDescriptor(context.Background(),
		artifact.Data, *secid_command_id_arg, getOptions())
	kingpin.FatalIfError(err, "Security id %v", *secid_command_id_arg)

	fmt.Printf("Id: %d Hash: %#08x @ %#x (%d bytes)\n",
		entry.Id, entry.Hash, entry.Offset, entry.Length)
	if entry.Descriptor == nil {
		return
	}

	fmt.Println(entry.Descriptor.Summary())
	for _, acl := range []*parser.Acl{entry.Descriptor.Dacl, entry.Descriptor.Sacl} {
		if acl == nil {
			continue
		}
		for _, ace := range acl.Aces {
			sid := ""
			if ace.Sid != nil {
				sid = ace.Sid.String
			}
			fmt.Printf("  %v %#08x %v %v\n", ace.TypeName, ace.AccessMask,
				sid, strings.Join(ace.FlagNames, "|"))
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case secid_command.FullCommand():
			doSecid()
		default:
			return false
		}
		return true
	})
}
