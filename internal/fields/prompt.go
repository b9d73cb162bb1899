package fields

import (
	"fmt"
	"strings"

	"github.com/carelane/chartscan/internal/model"
)

// systemText is the system prompt for structured field extraction. Chunked
// documents reuse it verbatim so later chunks read the warm prompt cache.
const systemText = "You are a medical records analyst extracting a fixed set of clinical fields from document text. You follow the output contract exactly: numbered lines with a pipe delimiter, one line per field, no commentary."

// notFoundSentinel is what the model must emit for a field absent from the
// document. The parser rejects it so the field stays empty.
const notFoundSentinel = "[not found]"

// stopSequence guards against runaway generation past the last field.
const stopSequence = "16|"

// buildPrompt renders the extraction instruction for one chunk of document
// text. The contract is a single-character pipe delimiter, chosen because it
// almost never occurs in clinical narrative text.
func buildPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Extract the following fields from the medical document below.\n\n")
	b.WriteString("Fields:\n")
	for i, key := range model.FieldKeys() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, model.FieldLabel(key))
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Respond with exactly 15 lines and nothing else.\n")
	b.WriteString("- Each line has the form: index|content (for example: 1|Jane Doe).\n")
	fmt.Fprintf(&b, "- If a field is not present in the document, write: index|%s\n", notFoundSentinel)
	b.WriteString("- Do not stop early; always emit all 15 lines in order.\n")
	b.WriteString("- Copy values verbatim from the document where possible.\n")

	b.WriteString("\nDocument:\n")
	b.WriteString(text)

	return b.String()
}
