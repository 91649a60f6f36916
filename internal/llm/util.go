package llm

import "strings"

// CleanJSONBlock strips a surrounding markdown code fence, with or without a
// language tag, from a model answer.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceTag(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// isFenceTag reports whether the text after an opening fence is a language tag.
func isFenceTag(s string) bool {
	return len(s) < 20 && !strings.ContainsAny(s, " {[")
}

// ExtractJSONObject returns the outermost {...} span of text, or text unchanged
// when no object delimiters are present. Handles preambles like "Here is the JSON:".
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
