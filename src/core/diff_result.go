package core

// A MessageDiff maps each message to the positions only one parser reported it at.
type MessageDiff map[Message]*Diff[Finds]

// A DiffResult is the corpus-wide view of where two parsers disagreed, keyed by message.
// For every message at least one side has a position.
type DiffResult struct {
	ErrDiff MessageDiff `json:"err_diff" msgpack:"err_diff"`
	WrnDiff MessageDiff `json:"wrn_diff" msgpack:"wrn_diff"`
	TrcDiff MessageDiff `json:"trc_diff" msgpack:"trc_diff"`
}

// NewDiffResult projects a folded ParserDiff to a DiffResult.
func NewDiffResult(acc *ParserDiff) *DiffResult {
	return &DiffResult{
		ErrDiff: propagate(acc.ErrEq),
		WrnDiff: propagate(acc.WarnEq),
		TrcDiff: propagate(acc.TraceEq),
	}
}

// Aggregate folds a sequence of diffs and projects the result.
// An empty sequence gives an empty result.
func Aggregate(diffs []*ParserDiff) *DiffResult {
	return NewDiffResult(Fold(diffs))
}

// Empty returns true if no messages differ at any severity.
func (r *DiffResult) Empty() bool {
	return len(r.ErrDiff) == 0 && len(r.WrnDiff) == 0 && len(r.TrcDiff) == 0
}

// propagate flattens a log diff so each message holds both sides' positions.
func propagate(log *Diff[CompLog]) MessageDiff {
	ret := MessageDiff{}
	if log == nil {
		return ret
	}
	get := func(msg Message) *Diff[Finds] {
		if d, present := ret[msg]; present {
			return d
		}
		d := &Diff[Finds]{ResultA: Finds{}, ResultB: Finds{}}
		ret[msg] = d
		return d
	}
	for msg, finds := range log.ResultA {
		get(msg).ResultA = finds
	}
	for msg, finds := range log.ResultB {
		get(msg).ResultB = finds
	}
	return ret
}
