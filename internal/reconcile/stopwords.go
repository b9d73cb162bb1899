package reconcile

import "strings"

// stopWords are dropped before sequence and significant-word matching.
// Clinical values keep their load-bearing tokens (drug names, dosages,
// dates); these connectives carry no positional signal.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "per": true, "she": true, "that": true, "the": true,
	"to": true, "was": true, "were": true, "will": true, "with": true,
}

// SignificantWords splits value into lowercase tokens with stop words and
// single characters removed.
func SignificantWords(value string) []string {
	fields := strings.Fields(strings.ToLower(value))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:()[]\"'")
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
