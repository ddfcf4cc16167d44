// Command k8srun runs a container image as a Kubernetes Job in a docker-like
// fashion: it creates the job, waits for the pod, streams its logs, waits for
// completion, and cleans up.
//
// Usage:
//
//	k8srun <image> [flags] [-- command args...]
//
// Exit codes: 0 success, 1 operational failure or timeout, 2 bad arguments,
// 130 interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"aicoder/pkg/k8sjob"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	defaults := k8sjob.DefaultOptions()

	flags := flag.NewFlagSet("k8srun", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: k8srun <image> [flags] [-- command args...]\n\nFlags:\n%s", flags.FlagUsages())
	}

	namespace := flags.String("namespace", defaults.Namespace, "Target Kubernetes namespace.")
	name := flags.String("name", "", "Optional base name for the Job/Pod. A unique suffix is automatically added.")
	containerName := flags.String("container-name", defaults.ContainerName, "Container name inside the Pod.")
	entrypoint := flags.StringArray("entrypoint", nil, "Override the container entrypoint. Repeatable.")
	env := flags.StringArray("env", nil, "Environment variable in KEY=VALUE form. Repeatable.")
	labels := flags.StringArray("label", nil, "Additional label in key=value form applied to Job and Pod. Repeatable.")
	annotations := flags.StringArray("annotation", nil, "Annotation in key=value form applied to the Pod template. Repeatable.")
	pullSecrets := flags.StringArray("image-pull-secret", nil, "Name of an imagePullSecret to attach. Repeatable.")
	serviceAccount := flags.String("service-account", "", "Service account to use for the Pod.")
	requestCPU := flags.String("request-cpu", "", "CPU request for the container (e.g. 500m).")
	requestMemory := flags.String("request-memory", "", "Memory request for the container (e.g. 1Gi).")
	limitCPU := flags.String("limit-cpu", "", "CPU limit for the container (e.g. 1).")
	limitMemory := flags.String("limit-memory", "", "Memory limit for the container (e.g. 2Gi).")
	workspaceMount := flags.String("workspace-mount", defaults.WorkspaceMount, "Mount path for an ephemeral emptyDir workspace.")
	noWorkspace := flags.Bool("no-workspace", false, "Disable creation of the ephemeral workspace volume.")
	timeout := flags.Int("timeout", int(defaults.Timeout/time.Second), "Maximum time in seconds to wait for Job completion.")
	kubeContext := flags.String("context", "", "Kubeconfig context to use. Falls back to in-cluster configuration.")
	backoffLimit := flags.Int32("backoff-limit", defaults.BackoffLimit, "Number of retries before the Job is considered failed.")
	restartPolicy := flags.String("restart-policy", defaults.RestartPolicy, "Pod restart policy (Never or OnFailure).")
	imagePullPolicy := flags.String("image-pull-policy", defaults.ImagePullPolicy, "Container image pull policy (Always, IfNotPresent, or Never).")
	autoClean := flags.Bool("auto-clean", defaults.AutoClean, "Automatically delete the Job and Pods when execution finishes.")
	keep := flags.Bool("keep", false, "Keep the created Job and Pods after completion.")

	if err := flags.Parse(argv); err != nil {
		return k8sjob.ExitUsage
	}

	positional := flags.Args()
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "Error: a container image reference is required.")
		flags.Usage()
		return k8sjob.ExitUsage
	}

	opts := defaults
	opts.Image = positional[0]
	opts.Command = positional[1:]
	opts.Entrypoint = *entrypoint
	opts.Namespace = *namespace
	opts.Name = *name
	opts.ContainerName = *containerName
	opts.ImagePullSecrets = *pullSecrets
	opts.ServiceAccount = *serviceAccount
	opts.RequestCPU = *requestCPU
	opts.RequestMemory = *requestMemory
	opts.LimitCPU = *limitCPU
	opts.LimitMemory = *limitMemory
	opts.WorkspaceMount = *workspaceMount
	opts.NoWorkspace = *noWorkspace
	opts.Timeout = time.Duration(*timeout) * time.Second
	opts.KubeContext = *kubeContext
	opts.BackoffLimit = *backoffLimit
	opts.RestartPolicy = *restartPolicy
	opts.ImagePullPolicy = *imagePullPolicy
	opts.AutoClean = *autoClean && !*keep

	if err := validateEnum(*restartPolicy, "restart-policy", "Never", "OnFailure"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitUsage
	}
	if err := validateEnum(*imagePullPolicy, "image-pull-policy", "Always", "IfNotPresent", "Never"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitUsage
	}

	var err error
	if opts.Env, err = k8sjob.ParseKeyValuePairs(*env, "--env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitUsage
	}
	if opts.Labels, err = k8sjob.ParseKeyValuePairs(*labels, "--label"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitUsage
	}
	if opts.Annotations, err = k8sjob.ParseKeyValuePairs(*annotations, "--annotation"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitUsage
	}

	client, err := k8sjob.NewClient(opts.KubeContext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return k8sjob.ExitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return k8sjob.NewRunner(client, opts).Run(ctx)
}

func validateEnum(value, flagName string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("--%s must be one of %v, got %q", flagName, allowed, value)
}
