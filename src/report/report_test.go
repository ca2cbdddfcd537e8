package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/diff"
)

func TestNew(t *testing.T) {
	result := &diff.Result{
		Files:  10,
		Failed: 2,
		Diffs: []*core.ParserDiff{
			{
				File:     "a.nix",
				PassEq:   &core.Diff[bool]{ResultA: true, ResultB: false},
				StdoutEq: &core.Diff[core.Message]{ResultA: "1", ResultB: "2"},
			},
			{
				File:     "b.nix",
				PassEq:   &core.Diff[bool]{ResultA: false, ResultB: true},
				StdoutEq: &core.Diff[core.Message]{ResultA: "3", ResultB: "4"},
				WarnEq: &core.Diff[core.WarnLog]{
					ResultA: core.CompLog{"w": core.NewFinds("b.nix")},
					ResultB: core.CompLog{},
				},
			},
		},
	}
	started := time.Now().Add(-time.Second)
	r := New("corpus", "nix-a", "nix-b", started, result)
	_, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Files)
	assert.Equal(t, 2, r.Divergent)
	assert.Equal(t, 2, r.Failed)
	assert.GreaterOrEqual(t, r.Duration, 1.0)
	assert.Equal(t, &core.Diff[bool]{ResultA: true, ResultB: false}, r.PassEq, "first one wins")
	assert.Equal(t, map[core.Position]*core.Diff[core.Message]{
		"a.nix": {ResultA: "1", ResultB: "2"},
		"b.nix": {ResultA: "3", ResultB: "4"},
	}, r.Stdout)
	assert.Equal(t, core.MessageDiff{"w": {ResultA: core.NewFinds("b.nix"), ResultB: core.Finds{}}}, r.Result.WrnDiff)
	assert.Equal(t, 0, len(r.Result.ErrDiff))
}

func TestNewEmpty(t *testing.T) {
	r := New("corpus", "nix-a", "nix-b", time.Now(), &diff.Result{})
	assert.True(t, r.Result.Empty())
	assert.Nil(t, r.PassEq)
	assert.Nil(t, r.ExitEq)
	assert.Equal(t, 0, len(r.Stdout))
}
