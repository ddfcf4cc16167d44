package controller

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxBranchLen bounds generated feature branch names.
const maxBranchLen = 50

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// sanitizeBranchSource reduces arbitrary text to a branch-safe slug:
// compatibility-decompose Unicode, drop non-ASCII, collapse every run of
// non-alphanumerics to a single hyphen, trim hyphens, lowercase.
func sanitizeBranchSource(source string) string {
	decomposed := norm.NFKD.String(source)
	var ascii strings.Builder
	for _, r := range decomposed {
		if r < 128 {
			ascii.WriteRune(r)
		}
	}
	slug := nonAlnum.ReplaceAllString(ascii.String(), "-")
	return strings.ToLower(strings.Trim(slug, "-"))
}

// deriveFeatureBranchName builds a unique branch name from the preferred
// text, falling back to the fallback string and finally the literal
// "feature". The result is non-empty, at most maxBranchLen characters, and
// absent from the existing branch set.
func deriveFeatureBranchName(preferred, fallback string, existing map[string]bool) string {
	source := preferred
	if source == "" {
		source = fallback
	}
	if source == "" {
		source = "feature"
	}

	sanitized := sanitizeBranchSource(source)
	if sanitized == "" && fallback != "" {
		sanitized = sanitizeBranchSource(fallback)
	}
	if sanitized == "" {
		sanitized = "feature"
	}

	if len(sanitized) > maxBranchLen {
		sanitized = sanitized[:maxBranchLen]
	}
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "feature"
	}

	name := sanitized
	for suffix := 1; existing[name] || len(name) > maxBranchLen || name == ""; suffix++ {
		fragment := fmt.Sprintf("-%d", suffix)
		baseLen := maxBranchLen - len(fragment)
		if baseLen < 1 {
			baseLen = 1
		}
		base := truncateTrim(sanitized, baseLen)
		if base == "" {
			base = truncateTrim("feature", baseLen)
		}
		if base == "" {
			base = "f"
		}
		name = base + fragment
	}
	return name
}

func truncateTrim(s string, limit int) string {
	if len(s) > limit {
		s = s[:limit]
	}
	return strings.TrimRight(s, "-")
}
