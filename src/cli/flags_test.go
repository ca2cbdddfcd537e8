package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thought-machine/go-flags"
)

func TestDurationFlag(t *testing.T) {
	opts := struct {
		D Duration `short:"d" default:"3h"`
	}{}
	_, err := flags.NewParser(&opts, flags.None).ParseArgs([]string{})
	assert.NoError(t, err)
	assert.EqualValues(t, 3*time.Hour, opts.D)

	_, err = flags.NewParser(&opts, flags.None).ParseArgs([]string{"-d=5m"})
	assert.NoError(t, err)
	assert.EqualValues(t, 5*time.Minute, opts.D)
}

func TestFlagsError(t *testing.T) {
	assert.NoError(t, FlagsError(nil))
	err := FlagsError(os.ErrNotExist)
	ferr, ok := err.(*flags.Error)
	require.True(t, ok)
	assert.Equal(t, flags.ErrMarshal, ferr.Type)
}

func TestFilepathComplete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "corpus"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus", "default.nix"), nil, 0644))
	var f Filepath
	completions := f.Complete(filepath.Join(dir, "cor"))
	require.Equal(t, 1, len(completions))
	assert.Equal(t, filepath.Join(dir, "corpus", "default.nix"), completions[0].Item)
}

func TestFilepathsAsStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Filepaths{"a", "b"}.AsStrings())
}
