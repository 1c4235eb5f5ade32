package shell

// TruncateMarker is inserted where the middle of an oversized capture
// was removed.
const TruncateMarker = "\n[... output truncated due to length ...]\n"

// Truncate bounds content to maxSize characters, keeping the first and
// last maxSize/2 and joining them with TruncateMarker. Content within
// the budget is returned unchanged. The budget counts characters, not
// bytes, and the cut falls on rune boundaries so multibyte output
// never yields invalid UTF-8. The marker is not counted against the
// budget; this approximation is deliberate.
func Truncate(content string, maxSize int) string {
	if maxSize <= 0 || len(content) <= maxSize {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxSize {
		return content
	}
	half := maxSize / 2
	return string(runes[:half]) + TruncateMarker + string(runes[len(runes)-half:])
}
