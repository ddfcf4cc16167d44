package k8sjob

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// maxJobNameLen is the DNS label length limit for job names.
const maxJobNameLen = 63

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9-]`)
	repeatedHyphens  = regexp.MustCompile(`-+`)
)

// sanitizeName reduces an arbitrary string to a DNS-label-safe form.
func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(repeatedHyphens.ReplaceAllString(name, "-"), "-")
	if name == "" {
		return "ai-coder"
	}
	return name
}

// GenerateJobName derives a unique job name from an optional base name. The
// result matches [a-z0-9-], carries a random suffix, and fits within the 63
// character DNS label limit.
func GenerateJobName(baseName string) string {
	if baseName == "" {
		baseName = "ai-coder-run"
	}
	base := sanitizeName(baseName)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]

	maxPrefix := maxJobNameLen - len(suffix) - 1
	if maxPrefix < 1 {
		maxPrefix = 1
	}
	prefix := base
	if len(prefix) > maxPrefix {
		prefix = prefix[:maxPrefix]
	}
	prefix = strings.TrimRight(prefix, "-")
	if prefix == "" {
		prefix = "ai-coder"
		if len(prefix) > maxPrefix {
			prefix = prefix[:maxPrefix]
		}
	}

	name := prefix + "-" + suffix
	name = strings.Trim(repeatedHyphens.ReplaceAllString(name, "-"), "-")
	if len(name) > maxJobNameLen {
		name = name[:maxJobNameLen]
	}
	return name
}
