package editor

import "strings"

// MatchDraftTitle finds the expected title among draft-list candidates.
// Exact match wins; otherwise a prefix match covers the editor truncating
// long titles in the list. The prefix is the first 12 runes (min 6, so short
// noise strings cannot false-match) and must appear as a substring of the
// candidate.
func MatchDraftTitle(expected string, candidates []string) (string, bool) {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return "", false
	}

	for _, c := range candidates {
		if strings.TrimSpace(c) == expected {
			return c, true
		}
	}

	runes := []rune(expected)
	if len(runes) < 6 {
		return "", false
	}
	n := 12
	if len(runes) < n {
		n = len(runes)
	}
	prefix := string(runes[:n])
	for _, c := range candidates {
		if strings.Contains(c, prefix) {
			return c, true
		}
	}
	return "", false
}
