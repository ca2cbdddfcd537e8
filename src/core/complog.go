package core

import (
	"encoding/json"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// A Message is a diagnostic string after normalisation.
type Message = string

// A Position identifies where a diagnostic applies; usually a file path, possibly with
// line / column decoration. Positions are compared bytewise.
type Position = string

// Finds is the set of positions at which a message was reported.
type Finds map[Position]struct{}

// NewFinds returns a new set containing the given positions.
func NewFinds(positions ...Position) Finds {
	f := make(Finds, len(positions))
	for _, pos := range positions {
		f[pos] = struct{}{}
	}
	return f
}

// Add adds a position to this set. Adding an existing position is a no-op.
func (f Finds) Add(pos Position) {
	f[pos] = struct{}{}
}

// Contains returns true if the given position is in this set.
func (f Finds) Contains(pos Position) bool {
	_, present := f[pos]
	return present
}

// Equal returns true if both sets contain exactly the same positions.
func (f Finds) Equal(other Finds) bool {
	if len(f) != len(other) {
		return false
	}
	for pos := range f {
		if !other.Contains(pos) {
			return false
		}
	}
	return true
}

// Difference returns the positions in this set that are not in the other one.
func (f Finds) Difference(other Finds) Finds {
	ret := Finds{}
	for pos := range f {
		if !other.Contains(pos) {
			ret.Add(pos)
		}
	}
	return ret
}

// Sorted returns the positions in this set in lexical order.
func (f Finds) Sorted() []Position {
	ret := make([]Position, 0, len(f))
	for pos := range f {
		ret = append(ret, pos)
	}
	sort.Strings(ret)
	return ret
}

// MarshalJSON implements the json.Marshaler interface; sets are written as sorted lists.
func (f Finds) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Sorted())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *Finds) UnmarshalJSON(b []byte) error {
	var positions []Position
	if err := json.Unmarshal(b, &positions); err != nil {
		return err
	}
	*f = NewFinds(positions...)
	return nil
}

// MarshalMsgpack implements the msgpack.Marshaler interface.
func (f Finds) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(f.Sorted())
}

// UnmarshalMsgpack implements the msgpack.Unmarshaler interface.
func (f *Finds) UnmarshalMsgpack(b []byte) error {
	var positions []Position
	if err := msgpack.Unmarshal(b, &positions); err != nil {
		return err
	}
	*f = NewFinds(positions...)
	return nil
}

// A CompLog maps each message emitted at one severity to the positions it was reported at.
// It never contains an empty Finds.
type CompLog map[Message]Finds

// ErrLog holds diagnostics at error level (0).
type ErrLog = CompLog

// WarnLog holds diagnostics at warning level (1).
type WarnLog = CompLog

// TraceLog holds diagnostics at any other level.
type TraceLog = CompLog

// Add records a message at a position.
func (l CompLog) Add(msg Message, pos Position) {
	if finds, present := l[msg]; present {
		finds.Add(pos)
	} else {
		l[msg] = NewFinds(pos)
	}
}

// Equal returns true if the two logs have the same messages at the same positions.
func (l CompLog) Equal(other CompLog) bool {
	if len(l) != len(other) {
		return false
	}
	for msg, finds := range l {
		if otherFinds, present := other[msg]; !present || !finds.Equal(otherFinds) {
			return false
		}
	}
	return true
}

// extend copies all entries of the other log into this one. Colliding messages take the
// other log's positions.
func (l CompLog) extend(other CompLog) {
	for msg, finds := range other {
		l[msg] = finds
	}
}

func (l CompLog) clone() CompLog {
	ret := make(CompLog, len(l))
	ret.extend(l)
	return ret
}

// A Diff is a pair of observations of the same facet, one from each parser.
type Diff[T any] struct {
	ResultA T `json:"result_a" msgpack:"result_a"`
	ResultB T `json:"result_b" msgpack:"result_b"`
}

// NewCompLogDiff computes the position-level symmetric difference of two logs.
// ResultA holds each message's positions that were reported by A but not by B, and ResultB the reverse;
// messages reported at identical positions on both sides are absent from both.
func NewCompLogDiff(a, b CompLog) *Diff[CompLog] {
	return &Diff[CompLog]{
		ResultA: onlyIn(a, b),
		ResultB: onlyIn(b, a),
	}
}

// onlyIn returns the (message, position) pairs of a that do not appear in b.
func onlyIn(a, b CompLog) CompLog {
	ret := CompLog{}
	for msg, finds := range a {
		otherFinds, present := b[msg]
		if !present {
			ret[msg] = NewFinds(finds.Sorted()...)
		} else if diff := finds.Difference(otherFinds); len(diff) > 0 {
			ret[msg] = diff
		}
	}
	return ret
}

// mergeCompLogs folds an incoming log diff into an accumulated one, returning the result.
// The accumulator is adopted (as a copy) when absent and left alone when the incoming one is.
func mergeCompLogs(acc, incoming *Diff[CompLog]) *Diff[CompLog] {
	if incoming == nil {
		return acc
	} else if acc == nil {
		return &Diff[CompLog]{ResultA: incoming.ResultA.clone(), ResultB: incoming.ResultB.clone()}
	}
	acc.ResultA.extend(incoming.ResultA)
	acc.ResultB.extend(incoming.ResultB)
	return acc
}
