package parser

import (
	"os"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	result := logrus.New()
	result.SetOutput(os.Stderr)

	// os.Environ() is expensive so only check it once.
	for _, x := range os.Environ() {
		if strings.HasPrefix(x, "NTFS_DEBUG=") {
			result.SetLevel(logrus.DebugLevel)
			break
		}
	}
	return result
}

// SetLogger replaces the logger used for parser debug output.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
}

func GetLogger() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()

	return logger
}

func Debug(arg interface{}) {
	spew.Dump(arg)
}

type Debugger interface {
	DebugString() string
}

func DebugString(arg interface{}, indent string) string {
	debugger, ok := arg.(Debugger)
	if ok {
		lines := strings.Split(debugger.DebugString(), "\n")
		for idx, line := range lines {
			lines[idx] = indent + line
		}
		return strings.Join(lines, "\n")
	}

	return ""
}

func DebugPrint(fmt_str string, v ...interface{}) {
	l := GetLogger()
	if l.IsLevelEnabled(logrus.DebugLevel) {
		l.Debugf(strings.TrimRight(fmt_str, "\n"), v...)
	}
}
