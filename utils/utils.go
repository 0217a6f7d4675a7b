package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContainsString returns true iff the provided string slice hay contains string
// needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// DedupStrings drops empty and repeated entries, keeping first occurrence
// order, and truncates the result to limit entries when limit > 0.
func DedupStrings(in []string, limit int) []string {
	seen := make(map[string]bool, len(in))
	out := []string{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// TextToSha256Hash returns the hex encoded sha256 digest of text.
func TextToSha256Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
