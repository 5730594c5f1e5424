// Package logutil builds the logrus logger shared by every ggufdeck component.
package logutil

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type levelFormatter struct{}

func (f *levelFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WRN]"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel, logrus.TraceLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(levelText)
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// New returns a logger writing to stderr at the named level.
// Unknown level names fall back to info.
func New(level string) *logrus.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&levelFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	return NewWithWriter(io.Discard, "panic")
}
