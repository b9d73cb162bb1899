package fields

import (
	"strings"

	"github.com/carelane/chartscan/internal/model"
)

// multiValueSeparator joins de-duplicated values of a multi-value field.
const multiValueSeparator = "; "

// MergeChunkValues combines per-chunk extraction results into one value set.
//
// Single-value fields take the longest non-empty candidate: the longer
// string more likely captured full context. Multi-value fields take the
// union of candidates, dropping exact duplicates and values wholly contained
// in another candidate. Merging is idempotent: feeding a chunk's own result
// in twice changes nothing.
func MergeChunkValues(chunks []map[model.FieldKey]string) map[model.FieldKey]string {
	merged := make(map[model.FieldKey]string, len(model.FieldKeys()))

	for _, key := range model.FieldKeys() {
		var candidates []string
		for _, chunk := range chunks {
			if v := strings.TrimSpace(chunk[key]); v != "" {
				candidates = append(candidates, v)
			}
		}
		if len(candidates) == 0 {
			merged[key] = ""
			continue
		}

		if model.IsMultiValue(key) {
			merged[key] = strings.Join(dedupeValues(candidates), multiValueSeparator)
		} else {
			merged[key] = longest(candidates)
		}
	}

	return merged
}

func longest(candidates []string) string {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// dedupeValues removes exact duplicates (case-insensitive) and candidates
// wholly contained in another candidate, preserving first-seen order.
func dedupeValues(candidates []string) []string {
	var kept []string
	for i, c := range candidates {
		lc := strings.ToLower(c)
		redundant := false
		for j, other := range candidates {
			if i == j {
				continue
			}
			lo := strings.ToLower(other)
			if lc == lo {
				// Exact duplicate: only the first occurrence survives.
				if j < i {
					redundant = true
					break
				}
				continue
			}
			if strings.Contains(lo, lc) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, c)
		}
	}
	return kept
}
