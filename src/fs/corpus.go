package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FindCorpusFiles walks the tree under root and sends every regular file whose name ends in the
// given suffix down the channel, which is closed once the walk is done.
//
// If root is itself a symlink it's followed once, but the paths sent are still under root as given.
// Symlinks beneath it are skipped (with a warning if they're broken), as are names that aren't
// valid UTF-8. A root that's missing or a broken symlink is warned about and yields no files.
func FindCorpusFiles(ctx context.Context, root, suffix string, ch chan<- string) error {
	defer close(ch)
	realRoot := root
	if info, err := os.Lstat(root); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			log.Warning("Skipping broken symlink %s: %s", root, err)
			return nil
		}
		log.Debug("Following root symlink %s -> %s", root, resolved)
		realRoot = resolved
	}
	return Walk(ctx, realRoot, func(name string, mode Mode) error {
		if realRoot != root {
			if rel, err := filepath.Rel(realRoot, name); err == nil {
				name = filepath.Join(root, rel)
			}
		}
		if mode.IsSymlink() {
			if _, err := os.Stat(name); err != nil {
				log.Warning("Skipping broken symlink %s: %s", name, err)
			} else {
				log.Debug("Not following symlink %s", name)
			}
			return nil
		} else if !mode.IsRegular() || !strings.HasSuffix(name, suffix) {
			return nil
		} else if !utf8.ValidString(name) {
			log.Warning("Skipping %q: path is not valid UTF-8", name)
			return nil
		}
		select {
		case ch <- name:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
