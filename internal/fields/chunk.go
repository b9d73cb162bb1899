package fields

import "strings"

// SplitChunks splits text into overlapping chunks no longer than ceiling.
// Cut points prefer a paragraph boundary in the back half of the chunk so a
// field's supporting sentence isn't severed; consecutive chunks overlap by
// roughly overlap characters.
func SplitChunks(text string, ceiling, overlap int) []string {
	if ceiling <= 0 || len(text) <= ceiling {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= ceiling {
		overlap = ceiling / 2
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + ceiling
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		// Prefer cutting at a paragraph break in the back half of the chunk.
		if cut := strings.LastIndex(text[start:end], "\n\n"); cut > ceiling/2 {
			end = start + cut
		}

		chunks = append(chunks, text[start:end])

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
