// Package k8sjob runs a container image as a Kubernetes Job in a docker-like
// fashion: create the job, wait for its pod, stream logs, wait for
// completion, clean up.
package k8sjob

import (
	"fmt"
	"strings"
	"time"
)

// Options shapes one job invocation. Constructed once from CLI flags and
// immutable afterwards.
type Options struct {
	Image      string
	Command    []string
	Entrypoint []string

	Namespace     string
	Name          string
	ContainerName string

	Env         map[string]string
	Labels      map[string]string
	Annotations map[string]string

	ImagePullSecrets []string
	ServiceAccount   string

	RequestCPU    string
	RequestMemory string
	LimitCPU      string
	LimitMemory   string

	WorkspaceMount string
	NoWorkspace    bool

	Timeout     time.Duration
	KubeContext string

	BackoffLimit    int32
	RestartPolicy   string
	ImagePullPolicy string

	AutoClean bool
}

// DefaultOptions returns the option defaults shared by the CLI.
func DefaultOptions() Options {
	return Options{
		Namespace:       "default",
		ContainerName:   "ai-coder",
		WorkspaceMount:  "/workspace",
		Timeout:         30 * time.Minute,
		RestartPolicy:   "Never",
		ImagePullPolicy: "IfNotPresent",
		AutoClean:       true,
	}
}

// ParseKeyValuePairs parses repeatable key=value flag values. flagName is
// used in error messages only.
func ParseKeyValuePairs(pairs []string, flagName string) (map[string]string, error) {
	parsed := make(map[string]string, len(pairs))
	for _, item := range pairs {
		key, value, found := strings.Cut(item, "=")
		if !found {
			return nil, fmt.Errorf("%s values must be in key=value format: %q", flagName, item)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%s entries require a non-empty key: %q", flagName, item)
		}
		parsed[key] = value
	}
	return parsed, nil
}
