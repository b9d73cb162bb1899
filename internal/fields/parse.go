package fields

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/carelane/chartscan/internal/model"
)

// fieldLineRe matches the start of one `index|` line. Content runs from the
// end of a match to the start of the next (or end of input).
var fieldLineRe = regexp.MustCompile(`(?m)^\s*(\d{1,2})\s*\|`)

// nonInformative is the closed set of answers that count as "nothing found".
// It is part of the extraction contract: models that can't find a field emit
// one of these shapes, and treating them as values would poison merging and
// reconciliation.
var nonInformative = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\[?not\s+found\]?$`),
	regexp.MustCompile(`(?i)^n/?a$`),
	regexp.MustCompile(`(?i)^(none|unknown|not\s+specified|not\s+mentioned|not\s+documented|not\s+applicable|no\s+information(\s+available)?|no\s+data)$`),
	regexp.MustCompile(`^\[[^\]]*\]$`),                      // bracket-only placeholder
	regexp.MustCompile(`(?i)^(insert|enter)\b.*\bhere\b`),   // instruction echo
	regexp.MustCompile(`(?i)^as\s+(listed|stated|above)\b`), // instruction echo
}

// IsNonInformative reports whether content should be rejected and treated as
// an empty field.
func IsNonInformative(content string) bool {
	s := strings.TrimSpace(content)
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, re := range nonInformative {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ParseResponse sweeps the model output for `index|content` lines. It
// returns the informative values keyed by field plus the count of lines that
// matched the grammar at all (informative or not). Zero matched lines means
// the model ignored the contract; matched lines with no informative content
// mean the document genuinely held nothing.
func ParseResponse(raw string) (map[model.FieldKey]string, int) {
	keys := model.FieldKeys()
	out := make(map[model.FieldKey]string)
	matched := 0

	matches := fieldLineRe.FindAllStringSubmatchIndex(raw, -1)
	for i, m := range matches {
		idx, err := strconv.Atoi(raw[m[2]:m[3]])
		if err != nil || idx < 1 || idx > len(keys) {
			continue
		}
		matched++

		contentEnd := len(raw)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		content := strings.TrimSpace(raw[m[1]:contentEnd])
		if IsNonInformative(content) {
			continue
		}

		key := keys[idx-1]
		// First informative answer wins within one response.
		if _, exists := out[key]; !exists {
			out[key] = content
		}
	}

	return out, matched
}
