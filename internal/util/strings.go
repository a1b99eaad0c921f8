package util

// SafeTruncate returns at most the first maxLen bytes of s. It is used to
// log a recognizable prefix of an identifier instead of the whole value.
// A negative maxLen yields "".
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
