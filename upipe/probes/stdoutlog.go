package probes

import (
	"fmt"
	"io"
	"os"

	"github.com/upipe-go/upipe/internal/ulog"
	"github.com/upipe-go/upipe/upipe"
)

// StdoutLogProbe renders EventLog records for human consumption,
// level-gated like internal/ulog's default logger. Color is disabled
// when NO_COLOR is set in the environment, the usual convention for
// opting out of ANSI escapes on non-interactive output.
type StdoutLogProbe struct {
	Out   io.Writer
	Level ulog.Level
	Color bool

	Inner upipe.Probe
}

// NewStdoutLogProbe returns a probe writing to os.Stderr at
// ulog.LevelInfo, colored unless NO_COLOR is set.
func NewStdoutLogProbe(inner upipe.Probe) *StdoutLogProbe {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &StdoutLogProbe{Out: os.Stderr, Level: ulog.LevelInfo, Color: !noColor, Inner: inner}
}

var levelColor = map[ulog.Level]string{
	ulog.LevelVerbose: "\x1b[90m",
	ulog.LevelDebug:   "\x1b[36m",
	ulog.LevelInfo:    "\x1b[0m",
	ulog.LevelNotice:  "\x1b[32m",
	ulog.LevelWarning: "\x1b[33m",
	ulog.LevelError:   "\x1b[31m",
}

const colorReset = "\x1b[0m"

func (p *StdoutLogProbe) Throw(pipe *upipe.Pipe, event upipe.Event, args ...any) (bool, error) {
	if event == upipe.EventLog && len(args) == 1 {
		if rec, ok := args[0].(ulog.Record); ok {
			if rec.Level >= p.Level {
				p.render(rec)
			}
			return true, nil
		}
	}
	if p.Inner != nil {
		return p.Inner.Throw(pipe, event, args...)
	}
	return false, nil
}

func (p *StdoutLogProbe) render(rec ulog.Record) {
	tags := ""
	for _, t := range rec.Tags {
		tags += "[" + t + "]"
	}
	if p.Color {
		fmt.Fprintf(p.Out, "%s[%s]%s%s %s\n", levelColor[rec.Level], rec.Level, tags, colorReset, rec.Msg)
		return
	}
	fmt.Fprintf(p.Out, "[%s]%s %s\n", rec.Level, tags, rec.Msg)
}
