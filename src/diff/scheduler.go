package diff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/fs"
	"github.com/flaker/flaker/src/metrics"
)

// A Result is the outcome of diffing a whole corpus.
type Result struct {
	// Diffs are the per-file diffs of every file the parsers disagreed on.
	Diffs []*core.ParserDiff
	// Files is the number of files found in the corpus.
	Files int
	// Failed is the number of files that were dropped because a parser couldn't be run on them.
	Failed int
	// Failures holds the errors for each dropped file.
	Failures *multierror.Error
}

// Divergent returns the number of files the parsers disagreed on.
func (r *Result) Divergent() int {
	return len(r.Diffs)
}

type fileResult struct {
	file     string
	diff     *core.ParserDiff
	err      error
	duration time.Duration
}

// Run walks the corpus under the given folder and diffs every file in it, running at most
// the configured number of files at once. Results arrive in whatever order files finish in;
// if configured they're sorted by file afterwards.
//
// Files whose diff fails are dropped from the result; that never fails the run, and nor does a
// folder that can't be walked, which just yields no files. Run only returns an error if the context
// is cancelled, in which case all parsers still running are killed first.
func Run(ctx context.Context, config *core.Configuration, folder string, differ *Differ) (*Result, error) {
	files := make(chan string)
	walkErr := make(chan error, 1)
	go func() {
		walkErr <- fs.FindCorpusFiles(ctx, folder, config.Parse.Extension, files)
	}()

	results := make(chan fileResult)
	collected := make(chan *Result)
	go func() {
		collected <- collect(results, metrics.Record)
	}()

	var g errgroup.Group
	g.SetLimit(config.Parse.Concurrency)
	for file := range files {
		file := file
		g.Go(func() error {
			start := time.Now()
			diff, err := differ.DiffFile(ctx, file)
			results <- fileResult{file: file, diff: diff, err: err, duration: time.Since(start)}
			return nil
		})
	}
	g.Wait()
	close(results)
	result := <-collected

	if err := <-walkErr; err != nil {
		return result, err
	} else if err := ctx.Err(); err != nil {
		return result, err
	}
	if config.Parse.Sorted {
		core.SortByFile(result.Diffs)
	}
	log.Notice("Diffed %d files: %d divergent, %d failed", result.Files, result.Divergent(), result.Failed)
	return result, nil
}

// collect receives results until the channel is closed, recording the outcome of each file.
// Files abandoned because the run was cancelled are neither recorded nor counted as failed.
func collect(results <-chan fileResult, record func(outcome string, duration time.Duration)) *Result {
	result := &Result{}
	for r := range results {
		result.Files++
		if r.err != nil {
			if errors.Is(r.err, context.Canceled) {
				continue
			}
			record(metrics.Failed, r.duration)
			result.Failed++
			result.Failures = multierror.Append(result.Failures, fmt.Errorf("%s: %w", r.file, r.err))
			if errors.Is(r.err, core.ErrProtocolViolation) {
				log.Warning("Dropping %s, a parser's log output couldn't be understood: %s", r.file, r.err)
			} else {
				log.Warning("Dropping %s: %s", r.file, r.err)
			}
		} else if r.diff != nil {
			record(metrics.Divergent, r.duration)
			result.Diffs = append(result.Diffs, r.diff)
		} else {
			record(metrics.Equal, r.duration)
		}
	}
	return result
}
