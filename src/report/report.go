// Package report renders and persists the results of diffing two parsers over a corpus.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/diff"
)

var log = logging.Log

// A Report is everything we keep about one run over a corpus.
type Report struct {
	// ID uniquely identifies the run that produced this report.
	ID       string    `json:"id" msgpack:"id"`
	Folder   string    `json:"folder" msgpack:"folder"`
	ParserA  string    `json:"parser_a" msgpack:"parser_a"`
	ParserB  string    `json:"parser_b" msgpack:"parser_b"`
	Started  time.Time `json:"started" msgpack:"started"`
	Duration float64   `json:"duration_secs" msgpack:"duration_secs"`
	// Files is the number of files found; Divergent and Failed are subsets of it.
	Files     int `json:"files" msgpack:"files"`
	Divergent int `json:"divergent" msgpack:"divergent"`
	Failed    int `json:"failed" msgpack:"failed"`

	PassEq *core.Diff[bool] `json:"pass_eq,omitempty" msgpack:"pass_eq,omitempty"`
	ExitEq *core.Diff[*int] `json:"exit_eq,omitempty" msgpack:"exit_eq,omitempty"`
	// Stdout holds the stdout of both parsers for each file they printed different things for.
	Stdout map[core.Position]*core.Diff[core.Message] `json:"stdout,omitempty" msgpack:"stdout,omitempty"`
	Result *core.DiffResult                           `json:"result" msgpack:"result"`
}

// New creates a new report from the result of a run.
func New(folder, parserA, parserB string, started time.Time, result *diff.Result) *Report {
	stdout := map[core.Position]*core.Diff[core.Message]{}
	for _, d := range result.Diffs {
		if d.StdoutEq != nil {
			stdout[d.File] = d.StdoutEq
		}
	}
	acc := core.Fold(result.Diffs)
	return &Report{
		ID:        uuid.NewString(),
		Folder:    folder,
		ParserA:   parserA,
		ParserB:   parserB,
		Started:   started.UTC(),
		Duration:  time.Since(started).Seconds(),
		Files:     result.Files,
		Divergent: result.Divergent(),
		Failed:    result.Failed,
		PassEq:    acc.PassEq,
		ExitEq:    acc.ExitEq,
		Stdout:    stdout,
		Result:    core.NewDiffResult(acc),
	}
}
