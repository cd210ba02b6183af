package main

import (
	"os"
	"time"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("mfte",
		"A tool for decoding NTFS metadata artifacts.")

	debug_flag = app.Flag("debug", "Enable debug logging").Bool()
	trace_flag = app.Flag("trace", "Enable trace logging").Bool()

	config_flag = app.Flag("config", "A YAML file with parser options").
			ExistingFile()

	timeout_flag = app.Flag("timeout", "Abort parsing after this long").
			Duration()

	workers_flag = app.Flag("workers", "Number of MFT decoding workers").
			Int()

	command_handlers []CommandHandler

	logger = logrus.New()
)

func configureLogging() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch {
	case *trace_flag:
		logger.SetLevel(logrus.TraceLevel)
	case *debug_flag:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	parser.SetLogger(logger)
}

// getOptions merges the config file and the global flags. Explicit
// flags win.
func getOptions() parser.Options {
	options := parser.GetDefaultOptions()
	if *config_flag != "" {
		data, err := mfte.ReadArtifact(*config_flag, 1024*1024)
		kingpin.FatalIfError(err, "Reading config")

		options, err = parser.ParseOptionsYAML(data)
		kingpin.FatalIfError(err, "Parsing config %v", *config_flag)
	}

	if *timeout_flag > 0 {
		options.Timeout = *timeout_flag
	}
	if *workers_flag > 0 {
		options.Workers = *workers_flag
	}
	return options
}

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	configureLogging()

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}

	if *debug_flag || *trace_flag {
		logger.Debug(parser.STATS.DebugString())
	}
}
