package utils

import "unicode/utf8"

// SplitMessage cuts text into consecutive chunks of at most size runes.
// Text that already fits is returned as a single chunk; empty text yields none.
func SplitMessage(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
