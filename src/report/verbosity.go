package report

import (
	"fmt"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/flaker/flaker/src/cli"
)

// A Verbosity controls how much of a report is rendered.
type Verbosity int

const (
	// Summary renders counts only.
	Summary Verbosity = iota
	// Detailed renders every divergence.
	Detailed
	// Auto is Detailed for a single report and Summary for several.
	Auto
)

var verbosityNames = map[string]Verbosity{
	"summary":  Summary,
	"detailed": Detailed,
	"auto":     Auto,
	"0":        Summary,
	"1":        Detailed,
	"":         Auto,
}

// verbosityChoices are the names offered back when a verbosity isn't recognised.
var verbosityChoices = []string{"summary", "detailed", "auto"}

const maxSuggestionDistance = 4

// ParseVerbosity parses a verbosity from its name.
func ParseVerbosity(s string) (Verbosity, error) {
	if v, present := verbosityNames[s]; present {
		return v, nil
	} else if suggestion := suggestVerbosity(s); suggestion != "" {
		return Auto, fmt.Errorf("Unknown verbosity %q; did you mean %s?", s, suggestion)
	}
	return Auto, fmt.Errorf("Unknown verbosity %q; must be one of summary, detailed or auto", s)
}

// suggestVerbosity returns the verbosity name closest to s, or the empty string if none are close.
func suggestVerbosity(s string) string {
	needle := []rune(s)
	best, bestDistance := "", maxSuggestionDistance+1
	for _, name := range verbosityChoices {
		if d := levenshtein.DistanceForStrings(needle, []rune(name), levenshtein.DefaultOptions); d < bestDistance {
			best, bestDistance = name, d
		}
	}
	return best
}

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (v *Verbosity) UnmarshalFlag(value string) error {
	verbosity, err := ParseVerbosity(value)
	if err != nil {
		return cli.FlagsError(err)
	}
	*v = verbosity
	return nil
}

// String implements the fmt.Stringer interface.
func (v Verbosity) String() string {
	switch v {
	case Summary:
		return "summary"
	case Detailed:
		return "detailed"
	}
	return "auto"
}

// Resolve returns the concrete verbosity to render the given number of reports at.
func (v Verbosity) Resolve(reports int) Verbosity {
	if v != Auto {
		return v
	} else if reports == 1 {
		return Detailed
	}
	return Summary
}
