package core

import (
	"sort"
)

// MultipleGiven replaces both sides of the stdout facet once more than one file disagreed on it;
// full stdout payloads from different files can't be meaningfully merged.
const MultipleGiven = "Multiple given"

// A ParserDiff records how two parsers disagreed on a single input file.
// Each facet is only present if the parsers disagree on it.
type ParserDiff struct {
	// File is the input file the diff was computed for. It's empty once diffs are folded together.
	File Position `json:"file,omitempty" msgpack:"file,omitempty"`
	// PassEq holds whether each parser succeeded.
	PassEq *Diff[bool] `json:"pass_eq,omitempty" msgpack:"pass_eq,omitempty"`
	// ExitEq holds each parser's exit code, which is nil if it was killed by a signal.
	ExitEq *Diff[*int] `json:"exit_eq,omitempty" msgpack:"exit_eq,omitempty"`
	// StdoutEq holds each parser's standard output.
	StdoutEq *Diff[Message]   `json:"stdout_eq,omitempty" msgpack:"stdout_eq,omitempty"`
	ErrEq    *Diff[ErrLog]   `json:"err_eq,omitempty" msgpack:"err_eq,omitempty"`
	WarnEq   *Diff[WarnLog]  `json:"warn_eq,omitempty" msgpack:"warn_eq,omitempty"`
	TraceEq  *Diff[TraceLog] `json:"trace_eq,omitempty" msgpack:"trace_eq,omitempty"`
}

// Merge folds another diff into this one.
// The pass & exit facets are first-wins, stdout collapses to MultipleGiven when both sides have one,
// and the log facets are extended message by message.
func (d *ParserDiff) Merge(other *ParserDiff) {
	if d.PassEq == nil {
		d.PassEq = other.PassEq
	}
	if d.ExitEq == nil {
		d.ExitEq = other.ExitEq
	}
	if d.StdoutEq == nil {
		d.StdoutEq = other.StdoutEq
	} else if other.StdoutEq != nil {
		d.StdoutEq = &Diff[Message]{ResultA: MultipleGiven, ResultB: MultipleGiven}
	}
	d.ErrEq = mergeCompLogs(d.ErrEq, other.ErrEq)
	d.WarnEq = mergeCompLogs(d.WarnEq, other.WarnEq)
	d.TraceEq = mergeCompLogs(d.TraceEq, other.TraceEq)
}

// Fold merges a sequence of diffs into a single accumulator, in order.
// The inputs are not modified.
func Fold(diffs []*ParserDiff) *ParserDiff {
	acc := &ParserDiff{}
	for _, diff := range diffs {
		acc.Merge(diff)
	}
	return acc
}

// SortByFile sorts diffs by their file, which makes the first-wins facets of Fold deterministic.
func SortByFile(diffs []*ParserDiff) {
	sort.SliceStable(diffs, func(i, j int) bool { return diffs[i].File < diffs[j].File })
}
