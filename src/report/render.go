package report

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/flaker/flaker/src/cli"
	"github.com/flaker/flaker/src/core"
)

// A Sink receives the rendered lines of a report.
// A *logging.Logger satisfies it.
type Sink interface {
	Notice(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// Render renders the given reports to the sink. Auto verbosity is resolved on the number of reports.
// The reports are not modified and output is always in a stable order.
func Render(sink Sink, reports []*Report, verbosity Verbosity) {
	verbosity = verbosity.Resolve(len(reports))
	for _, r := range reports {
		r.header(sink)
		if verbosity == Detailed {
			r.detailed(sink)
		} else {
			r.summary(sink)
		}
	}
}

func (r *Report) header(sink Sink) {
	sink.Notice("Report %s: %s vs %s on %s", r.ID, r.ParserA, r.ParserB, r.Folder)
	sink.Info("Started %s, took %0.1fs", r.Started.UTC().Format("2006-01-02 15:04:05 MST"), r.Duration)
	sink.Notice("%s files, %s divergent, %s failed", humanize.Comma(int64(r.Files)), humanize.Comma(int64(r.Divergent)), humanize.Comma(int64(r.Failed)))
	if r.Failed > 0 {
		sink.Warning("%s files couldn't be diffed and are missing from this report", humanize.Comma(int64(r.Failed)))
	}
	if r.PassEq != nil {
		sink.Notice("Pass: %t vs %t", r.PassEq.ResultA, r.PassEq.ResultB)
	}
	if r.ExitEq != nil {
		sink.Notice("Exit code: %s vs %s", exitCode(r.ExitEq.ResultA), exitCode(r.ExitEq.ResultB))
	}
}

func (r *Report) summary(sink Sink) {
	if len(r.Stdout) > 0 {
		sink.Notice("Stdout: %s distinct diffs in %s files", humanize.Comma(int64(distinct(r.Stdout))), humanize.Comma(int64(len(r.Stdout))))
	}
	forEachSeverity(r.Result, func(severity string, diff core.MessageDiff) {
		sink.Notice("%s: %s messages differ", severity, humanize.Comma(int64(len(diff))))
		for _, msg := range sortedKeys(diff) {
			d := diff[msg]
			sink.Notice("  %d / %d: %s", len(d.ResultA), len(d.ResultB), msg)
		}
	})
}

func (r *Report) detailed(sink Sink) {
	for _, file := range sortedKeys(r.Stdout) {
		d := r.Stdout[file]
		sink.Notice("Stdout of %s:", file)
		sink.Notice("  a: %q", d.ResultA)
		sink.Notice("  b: %q", d.ResultB)
	}
	forEachSeverity(r.Result, func(severity string, diff core.MessageDiff) {
		sink.Notice("%s:", severity)
		for _, msg := range sortedKeys(diff) {
			d := diff[msg]
			sink.Notice("  %s", msg)
			if len(d.ResultA) > 0 {
				sink.Notice("    only a: %s", strings.Join(d.ResultA.Sorted(), ", "))
			}
			if len(d.ResultB) > 0 {
				sink.Notice("    only b: %s", strings.Join(d.ResultB.Sorted(), ", "))
			}
		}
	})
}

// forEachSeverity calls the given function for each severity that has any differing messages.
func forEachSeverity(result *core.DiffResult, f func(string, core.MessageDiff)) {
	if result == nil {
		return
	}
	if len(result.ErrDiff) > 0 {
		f("Errors", result.ErrDiff)
	}
	if len(result.WrnDiff) > 0 {
		f("Warnings", result.WrnDiff)
	}
	if len(result.TrcDiff) > 0 {
		f("Traces", result.TrcDiff)
	}
}

// distinct returns the number of distinct pairs of stdouts.
func distinct(stdout map[core.Position]*core.Diff[core.Message]) int {
	seen := make(map[uint64]struct{}, len(stdout))
	for _, d := range stdout {
		h := xxhash.New()
		h.WriteString(d.ResultA)
		h.Write([]byte{0})
		h.WriteString(d.ResultB)
		seen[h.Sum64()] = struct{}{}
	}
	return len(seen)
}

func exitCode(code *int) string {
	if code == nil {
		return "signal"
	}
	return fmt.Sprint(*code)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Plain wraps a sink so that ANSI escape sequences are removed from everything rendered to it.
func Plain(sink Sink) Sink {
	return plainSink{sink: sink}
}

type plainSink struct {
	sink Sink
}

func (s plainSink) Notice(format string, args ...interface{}) {
	s.sink.Notice("%s", stripAnsi(format, args))
}

func (s plainSink) Warning(format string, args ...interface{}) {
	s.sink.Warning("%s", stripAnsi(format, args))
}

func (s plainSink) Info(format string, args ...interface{}) {
	s.sink.Info("%s", stripAnsi(format, args))
}

func stripAnsi(format string, args []interface{}) string {
	return cli.StripAnsi.ReplaceAllString(fmt.Sprintf(format, args...), "")
}
