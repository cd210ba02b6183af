package main

import (
	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/parser"
	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

// openArtifact maps a file or exits.
func openArtifact(path string) *mfte.Artifact {
	artifact, err := mfte.OpenArtifact(path)
	kingpin.FatalIfError(err, "Can not open %v", path)

	logger.WithField("artifact", path).
		Debugf("Mapped %d bytes", artifact.Size())
	return artifact
}

func logDiagnostics(path string, result *mfte.Result) {
	fields := logrus.Fields{
		"artifact": path,
		"kind":     result.Kind.String(),
		"records":  result.Count(),
	}

	summary := parser.NewDiagnostics()
	for _, d := range result.Diagnostics {
		summary.AddDiagnostic(d)
		logger.Trace(d.String())
	}

	counts := summary.Summary()
	for _, key := range counts.Keys() {
		value, _ := counts.Get(key)
		fields[key] = value
	}

	entry := logger.WithFields(fields)
	if len(result.Diagnostics) > 0 {
		entry.Warn("Parsed with diagnostics")
	} else {
		entry.Info("Parsed")
	}
}
