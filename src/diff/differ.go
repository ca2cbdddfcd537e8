// Package diff runs two parsers over a corpus and works out where they disagree.
package diff

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/nixlog"
	"github.com/flaker/flaker/src/process"
)

var log = logging.Log

var tracer = otel.Tracer("github.com/flaker/flaker/src/diff")

// A Runner runs a single parser on a single file.
type Runner interface {
	Run(ctx context.Context, binary, file string) (*process.Output, error)
}

// A Differ compares two parsers on one file at a time.
type Differ struct {
	runner           Runner
	parserA, parserB string
}

// NewDiffer returns a new Differ comparing the two given parser binaries.
func NewDiffer(runner Runner, parserA, parserB string) *Differ {
	return &Differ{runner: runner, parserA: parserA, parserB: parserB}
}

// DiffFile runs both parsers concurrently on the given file and compares what they did.
// It returns nil if they behaved identically. If either parser fails to run, the other is
// cancelled and the error returned.
func (d *Differ) DiffFile(ctx context.Context, file string) (*core.ParserDiff, error) {
	ctx, span := tracer.Start(ctx, "diff", trace.WithAttributes(attribute.String("file", file)))
	defer span.End()

	var a, b *process.Output
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = d.runner.Run(ctx, d.parserA, file)
		return err
	})
	g.Go(func() (err error) {
		b, err = d.runner.Run(ctx, d.parserB, file)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	diff, err := Compare(file, a, b)
	span.SetAttributes(attribute.Bool("divergent", diff != nil))
	return diff, err
}

// Compare compares the outputs of two parsers on the given file.
// It returns nil if they're bytewise identical; otherwise each facet of the result is only
// populated if the parsers disagreed on it.
func Compare(file string, a, b *process.Output) (*core.ParserDiff, error) {
	if a.Equal(b) {
		log.Debug("Parsers agree on %s", file)
		return nil, nil
	}
	diff := &core.ParserDiff{File: file}
	if a.Status.Success() != b.Status.Success() {
		diff.PassEq = &core.Diff[bool]{ResultA: a.Status.Success(), ResultB: b.Status.Success()}
	}
	if a.Status != b.Status {
		diff.ExitEq = &core.Diff[*int]{ResultA: a.Status.ExitCode(), ResultB: b.Status.ExitCode()}
	}
	if string(a.Stdout) != string(b.Stdout) {
		if !utf8.Valid(a.Stdout) || !utf8.Valid(b.Stdout) {
			return nil, fmt.Errorf("%w: stdout of parsers on %s", core.ErrEncoding, file)
		}
		diff.StdoutEq = &core.Diff[core.Message]{ResultA: string(a.Stdout), ResultB: string(b.Stdout)}
	}
	if string(a.Stderr) != string(b.Stderr) {
		errsA, warnsA, tracesA, err := nixlog.Split(a.Stderr, file)
		if err != nil {
			return nil, fmt.Errorf("parsing stderr of first parser on %s: %w", file, err)
		}
		errsB, warnsB, tracesB, err := nixlog.Split(b.Stderr, file)
		if err != nil {
			return nil, fmt.Errorf("parsing stderr of second parser on %s: %w", file, err)
		}
		if !errsA.Equal(errsB) {
			diff.ErrEq = core.NewCompLogDiff(errsA, errsB)
		}
		if !warnsA.Equal(warnsB) {
			diff.WarnEq = core.NewCompLogDiff(warnsA, warnsB)
		}
		if !tracesA.Equal(tracesB) {
			diff.TraceEq = core.NewCompLogDiff(tracesA, tracesB)
		}
	}
	log.Info("Parsers disagree on %s", file)
	return diff, nil
}
