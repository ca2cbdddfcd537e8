package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/karrick/godirwalk"

	"github.com/flaker/flaker/src/core"
)

type Mode interface {
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool
}

type mode os.FileMode

func (m mode) IsDir() bool {
	return os.FileMode(m).IsDir()
}

func (m mode) IsRegular() bool {
	return os.FileMode(m).IsRegular()
}

func (m mode) IsSymlink() bool {
	return os.FileMode(m)&os.ModeSymlink != 0
}

// Walk walks the tree under rootPath, calling the callback for every entry.
// It's implemented over github.com/karrick/godirwalk but the provided interface doesn't use that
// to make it a little easier to handle.
//
// Symlinks beneath the root are never followed. Errors on individual entries, the root included,
// are logged as warnings and that entry skipped; only a cancelled context ends the walk early.
// N.B. The mode only includes the bits that determine the mode type, not the permissions.
func Walk(ctx context.Context, rootPath string, callback func(name string, mode Mode) error) error {
	info, err := os.Lstat(rootPath)
	if err != nil {
		log.Warning("Skipping %s: %s", rootPath, err)
		return nil
	} else if !info.IsDir() {
		// Compatibility with filepath.Walk which allows passing a file as the root argument.
		return callback(rootPath, mode(info.Mode()))
	}
	err = godirwalk.Walk(rootPath, &godirwalk.Options{
		Callback: func(name string, info *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return callback(name, info)
		},
		ErrorCallback: func(name string, err error) godirwalk.ErrorAction {
			if ctx.Err() != nil {
				return godirwalk.Halt
			}
			log.Warning("Skipping %s: %s", name, err)
			return godirwalk.SkipNode
		},
		Unsorted: true,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	} else if err != nil {
		return fmt.Errorf("%w: %s", core.ErrWalk, err)
	}
	return nil
}
