package nixlog

import (
	"github.com/peterebden/go-deferred-regex"

	"github.com/flaker/flaker/src/core"
)

// DeprecatedFeaturePrefix starts every message that names a deprecated feature after normalisation.
const DeprecatedFeaturePrefix = "Deprecated Feature: "

var deprecatedFeatureRex = deferredregex.DeferredRegex{Re: `--extra-deprecated-features ([\w-]+)\b`}

// Normalise canonicalises a diagnostic so that messages denoting the same phenomenon share a key.
// Any message that mentions --extra-deprecated-features <name> becomes "Deprecated Feature: <name>";
// everything else is returned unchanged.
func Normalise(msg core.Message) core.Message {
	if match := deprecatedFeatureRex.FindStringSubmatch(msg); match != nil {
		return DeprecatedFeaturePrefix + match[1]
	}
	return msg
}
