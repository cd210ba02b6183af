package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Velocidex/ordereddict"
	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/output"
	"github.com/mfte-go/mfte/parser"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	parse_command = app.Command(
		"parse", "Decode an NTFS artifact.")

	parse_command_file_arg = parse_command.Arg(
		"file", "The artifact to parse ($MFT, $J, $Boot, $SDS or $I30).",
	).Required().ExistingFile()

	parse_command_kind = parse_command.Flag(
		"kind", "Artifact kind. auto detects it from the data.",
	).Default("auto").Enum("auto", "mft", "usn", "boot", "sds", "i30")

	parse_command_mft = parse_command.Flag(
		"mft", "An $MFT used to resolve paths of USN and I30 records.",
	).ExistingFile()

	parse_command_format = parse_command.Flag(
		"format", "Console output format.",
	).Default("table").Enum("table", "json", "csv", "minimal")

	parse_command_csv_dir = parse_command.Flag(
		"csv", "Directory to write a CSV file to.",
	).String()

	parse_command_csv_name = parse_command.Flag(
		"csvf", "File name of the CSV file.",
	).String()

	parse_command_json_dir = parse_command.Flag(
		"json", "Directory to write a JSON file to.",
	).String()

	parse_command_json_name = parse_command.Flag(
		"jsonf", "File name of the JSON file.",
	).String()

	parse_command_body_dir = parse_command.Flag(
		"body", "Directory to write a bodyfile to.",
	).String()

	parse_command_body_name = parse_command.Flag(
		"bodyf", "File name of the bodyfile.",
	).String()

	parse_command_body_drive = parse_command.Flag(
		"bdl", "Drive letter used in bodyfile paths.",
	).Default("C").String()

	parse_command_body_lf = parse_command.Flag(
		"blf", "Use LF instead of CRLF in the bodyfile.",
	).Bool()

	parse_command_sqlite = parse_command.Flag(
		"sqlite", "SQLite database to write records to.",
	).String()

	parse_command_short_names = parse_command.Flag(
		"sn", "Include DOS short names in MFT rows.",
	).Bool()

	parse_command_carve_slack = parse_command.Flag(
		"carve_slack", "Carve deleted entries from INDX slack.",
	).Bool()

	parse_command_scan_ahead = parse_command.Flag(
		"scan_ahead", "Skip zero filled gaps in a USN journal instead of stopping.",
	).Bool()

	parse_command_rows = parse_command.Flag(
		"rows", "Rows shown in table output.",
	).Default("20").Int()

	parse_command_image = parse_command.Flag(
		"image", "A volume image to read a directory index from. Needs --mft and --entry.",
	).ExistingFile()

	parse_command_entry = parse_command.Flag(
		"entry", "The directory entry to walk in --image, e.g. 5 or 1234-3.",
	).String()
)

func getOutputOptions() output.Options {
	options := output.GetDefaultOptions()
	options.ShortNames = *parse_command_short_names
	options.DriveLetter = *parse_command_body_drive
	options.LineFeed = *parse_command_body_lf
	options.TableRows = *parse_command_rows
	return options
}

func outputPath(dir, name, kind, ext string) string {
	if name == "" {
		name = output.DefaultFileName(*parse_command_file_arg, kind, ext)
	}
	return filepath.Join(dir, name)
}

func createOutput(dir, name, kind, ext string) *os.File {
	err := os.MkdirAll(dir, 0755)
	kingpin.FatalIfError(err, "Creating %v", dir)

	path := outputPath(dir, name, kind, ext)
	fd, err := os.Create(path)
	kingpin.FatalIfError(err, "Creating %v", path)

	logger.WithField("path", path).Info("Writing output")
	return fd
}

func parseArtifact(ctx context.Context, options parser.Options) *mfte.Result {
	if *parse_command_image != "" {
		return parseImage(ctx, options)
	}

	kind := parser.ArtifactUnknown
	if *parse_command_kind != "auto" {
		k, err := parser.ParseArtifactKind(*parse_command_kind)
		kingpin.FatalIfError(err, "Kind")
		kind = k
	}

	artifact := openArtifact(*parse_command_file_arg)
	defer artifact.Close()

	var mft_context []byte
	if *parse_command_mft != "" {
		mft_artifact := openArtifact(*parse_command_mft)
		defer mft_artifact.Close()
		mft_context = mft_artifact.Data
	}

	result, err := mfte.Parse(ctx, artifact.Data, kind, mft_context, options)
	kingpin.FatalIfError(err, "Parsing %v", *parse_command_file_arg)
	return result
}

func parseImage(ctx context.Context, options parser.Options) *mfte.Result {
	if *parse_command_mft == "" || *parse_command_entry == "" {
		kingpin.Fatalf("--image needs --mft and --entry")
	}

	fd, err := os.Open(*parse_command_image)
	kingpin.FatalIfError(err, "Opening %v", *parse_command_image)
	defer fd.Close()

	mft_artifact := openArtifact(*parse_command_mft)
	defer mft_artifact.Close()

	result, err := mfte.ParseImageDirectory(ctx, fd, mft_artifact.Data,
		*parse_command_entry, options)
	kingpin.FatalIfError(err, "Reading directory %v", *parse_command_entry)
	return result
}

func writeConsole(result *mfte.Result, rows []*ordereddict.Dict,
	options output.Options) {
	switch *parse_command_format {
	case "json":
		err := output.WriteJSON(os.Stdout, result)
		kingpin.FatalIfError(err, "JSON")

	case "csv":
		err := output.WriteCSV(os.Stdout, rows)
		kingpin.FatalIfError(err, "CSV")

	case "minimal":
		fmt.Printf("%v: %d records, %d diagnostics\n",
			result.Kind, result.Count(), len(result.Diagnostics))

	default:
		output.WriteTable(os.Stdout, rows,
			output.TableColumns[result.Kind.String()], options)
	}
}

func doParse() {
	options := getOptions()
	if *parse_command_carve_slack {
		options.CarveSlack = true
	}
	if *parse_command_scan_ahead {
		options.UsnScanAhead = true
	}
	output_options := getOutputOptions()

	ctx := context.Background()
	result := parseArtifact(ctx, options)
	logDiagnostics(*parse_command_file_arg, result)

	kind := result.Kind.String()
	rows := output.Rows(result, output_options)

	if *parse_command_csv_dir != "" {
		fd := createOutput(*parse_command_csv_dir, *parse_command_csv_name, kind, "csv")
		err := output.WriteCSV(fd, rows)
		kingpin.FatalIfError(err, "CSV")
		fd.Close()
	}

	if *parse_command_json_dir != "" {
		fd := createOutput(*parse_command_json_dir, *parse_command_json_name, kind, "json")
		err := output.WriteJSON(fd, result)
		kingpin.FatalIfError(err, "JSON")
		fd.Close()
	}

	if *parse_command_body_dir != "" {
		fd := createOutput(*parse_command_body_dir, *parse_command_body_name, kind, "body")
		err := output.WriteBodyfile(fd, result, output_options)
		kingpin.FatalIfError(err, "Bodyfile")
		fd.Close()
	}

	if *parse_command_sqlite != "" {
		err := output.WriteSQLite(ctx, *parse_command_sqlite, kind, rows)
		kingpin.FatalIfError(err, "SQLite")
	}

	writeConsole(result, rows, output_options)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case parse_command.FullCommand():
			doParse()
		default:
			return false
		}
		return true
	})
}
