package discord

const (
	// maxMessageRunes is Discord's hard limit on message length.
	maxMessageRunes = 2000

	// fenceOverhead is the cost of wrapping a chunk in ``` fences.
	fenceOverhead = 6

	// messageChunkSize leaves room for the fences so a chunk fits the
	// limit fenced or not.
	messageChunkSize = maxMessageRunes - fenceOverhead
)

// splitMessage cuts text into chunks of at most size runes. Discord counts
// characters, not bytes, so the split must too.
func splitMessage(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// fence wraps a chunk in a code block so Discord renders typeset source
// verbatim.
func fence(chunk string) string {
	return "```" + chunk + "```"
}
