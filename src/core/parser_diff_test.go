package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int {
	return &i
}

func TestMergeFirstWins(t *testing.T) {
	acc := &ParserDiff{}
	acc.Merge(&ParserDiff{PassEq: &Diff[bool]{ResultA: true, ResultB: false}})
	acc.Merge(&ParserDiff{
		PassEq: &Diff[bool]{ResultA: false, ResultB: true},
		ExitEq: &Diff[*int]{ResultA: intPtr(1), ResultB: nil},
	})
	acc.Merge(&ParserDiff{ExitEq: &Diff[*int]{ResultA: intPtr(2), ResultB: intPtr(3)}})
	assert.Equal(t, &Diff[bool]{ResultA: true, ResultB: false}, acc.PassEq)
	assert.Equal(t, 1, *acc.ExitEq.ResultA)
	assert.Nil(t, acc.ExitEq.ResultB)
}

func TestMergeStdoutSentinel(t *testing.T) {
	diffs := []*ParserDiff{
		{StdoutEq: &Diff[Message]{ResultA: "a1", ResultB: "b1"}},
		{StdoutEq: &Diff[Message]{ResultA: "a2", ResultB: "b2"}},
		{StdoutEq: &Diff[Message]{ResultA: "a3", ResultB: "b3"}},
	}
	acc := Fold(diffs)
	assert.Equal(t, &Diff[Message]{ResultA: MultipleGiven, ResultB: MultipleGiven}, acc.StdoutEq)
	// The inputs are left alone.
	assert.Equal(t, "a1", diffs[0].StdoutEq.ResultA)
}

func TestMergeSingleStdoutAdopted(t *testing.T) {
	acc := Fold([]*ParserDiff{
		{},
		{StdoutEq: &Diff[Message]{ResultA: "a", ResultB: "b"}},
		{},
	})
	assert.Equal(t, &Diff[Message]{ResultA: "a", ResultB: "b"}, acc.StdoutEq)
}

func TestMergeCompLogs(t *testing.T) {
	first := &ParserDiff{ErrEq: NewCompLogDiff(CompLog{"e": NewFinds("1.nix")}, CompLog{})}
	second := &ParserDiff{
		ErrEq:  NewCompLogDiff(CompLog{}, CompLog{"f": NewFinds("2.nix")}),
		WarnEq: NewCompLogDiff(CompLog{"w": NewFinds("2.nix")}, CompLog{"w": NewFinds("3.nix")}),
	}
	acc := Fold([]*ParserDiff{first, second})
	assert.Equal(t, CompLog{"e": NewFinds("1.nix")}, acc.ErrEq.ResultA)
	assert.Equal(t, CompLog{"f": NewFinds("2.nix")}, acc.ErrEq.ResultB)
	assert.Equal(t, CompLog{"w": NewFinds("2.nix")}, acc.WarnEq.ResultA)
	assert.Equal(t, CompLog{"w": NewFinds("3.nix")}, acc.WarnEq.ResultB)
	assert.Nil(t, acc.TraceEq)
	// The first diff must not have been extended in place.
	assert.Equal(t, 0, len(first.ErrEq.ResultB))
}

func TestMergeCompLogCollisionTakesIncoming(t *testing.T) {
	acc := Fold([]*ParserDiff{
		{TraceEq: &Diff[CompLog]{ResultA: CompLog{"t": NewFinds("1.nix")}, ResultB: CompLog{}}},
		{TraceEq: &Diff[CompLog]{ResultA: CompLog{"t": NewFinds("2.nix")}, ResultB: CompLog{}}},
	})
	assert.Equal(t, CompLog{"t": NewFinds("2.nix")}, acc.TraceEq.ResultA)
}

func TestSortByFile(t *testing.T) {
	diffs := []*ParserDiff{{File: "c.nix"}, {File: "a.nix"}, {File: "b.nix"}}
	SortByFile(diffs)
	assert.Equal(t, "a.nix", diffs[0].File)
	assert.Equal(t, "b.nix", diffs[1].File)
	assert.Equal(t, "c.nix", diffs[2].File)
}
