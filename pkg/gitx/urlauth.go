package gitx

import "strings"

// Credentials carries the optional authentication material for one task.
// Values are used transiently to build authenticated URLs and are never
// written to repository configuration permanently.
type Credentials struct {
	APIToken string
	Username string
	Password string
}

// Empty reports whether no credential fields are set.
func (c Credentials) Empty() bool {
	return c.APIToken == "" && c.Username == "" && c.Password == ""
}

// InjectCredentials returns the clone-path authenticated variant of repoURL.
// API tokens use the oauth2 username convention on every host. Non-HTTP(S)
// URLs and empty credential sets are returned unchanged.
func InjectCredentials(repoURL string, creds Credentials) string {
	return injectAuth(repoURL, authSegment(creds, ""))
}

// InjectPushCredentials returns the push-path authenticated variant of repoURL.
// GitLab hosts use the gitlab-ci-token username convention for API tokens;
// every other host uses oauth2. The clone and push call sites intentionally
// keep their distinct host conventions.
func InjectPushCredentials(repoURL string, creds Credentials) string {
	tokenUser := "oauth2"
	if strings.Contains(strings.ToLower(repoURL), "gitlab") {
		tokenUser = "gitlab-ci-token"
	}
	return injectAuth(repoURL, authSegment(creds, tokenUser))
}

// authSegment selects the auth portion by priority: token > user+pass > user.
// tokenUser overrides the default oauth2 username for API tokens when set.
func authSegment(creds Credentials, tokenUser string) string {
	switch {
	case creds.APIToken != "":
		if tokenUser == "" {
			tokenUser = "oauth2"
		}
		return tokenUser + ":" + creds.APIToken
	case creds.Username != "" && creds.Password != "":
		return creds.Username + ":" + creds.Password
	case creds.Username != "":
		return creds.Username
	default:
		return ""
	}
}

// injectAuth inserts segment before the host portion of an HTTP(S) URL,
// replacing any credentials already present.
func injectAuth(repoURL, segment string) string {
	if segment == "" {
		return repoURL
	}
	if !strings.HasPrefix(repoURL, "http://") && !strings.HasPrefix(repoURL, "https://") {
		return repoURL
	}

	scheme, remainder, ok := strings.Cut(repoURL, "//")
	if !ok {
		return repoURL
	}
	// Drop any existing user[:pass]@ prefix from the host portion.
	hostEnd := strings.Index(remainder, "/")
	if hostEnd == -1 {
		hostEnd = len(remainder)
	}
	if at := strings.Index(remainder[:hostEnd], "@"); at >= 0 {
		remainder = remainder[at+1:]
	}
	return scheme + "//" + segment + "@" + remainder
}
