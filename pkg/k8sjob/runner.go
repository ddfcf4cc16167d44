package k8sjob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"aicoder/pkg/logx"
)

var (
	// ErrPodBlocked marks a pod stuck in a waiting state that will never
	// resolve on its own, such as an image pull failure.
	ErrPodBlocked = errors.New("pod is stuck waiting")
	// ErrTimeout marks an exceeded wait deadline.
	ErrTimeout = errors.New("timed out")
)

// blockedWaitingReasons never resolve by polling longer.
var blockedWaitingReasons = map[string]bool{
	"ErrImagePull":               true,
	"ImagePullBackOff":           true,
	"CreateContainerConfigError": true,
}

// Exit codes for the driver CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// Runner drives one job through creation, pod readiness, log streaming,
// completion, and cleanup.
type Runner struct {
	client kubernetes.Interface
	opts   Options
	logger *logx.Logger
	stdout io.Writer

	sleep           func(time.Duration)
	now             func() time.Time
	podPollInterval time.Duration
	jobPollInterval time.Duration
}

// NewRunner creates a runner for the given cluster client and options.
func NewRunner(client kubernetes.Interface, opts Options) *Runner {
	return &Runner{
		client:          client,
		opts:            opts,
		logger:          logx.NewLogger("k8sjob"),
		stdout:          os.Stdout,
		sleep:           time.Sleep,
		now:             time.Now,
		podPollInterval: time.Second,
		jobPollInterval: 2 * time.Second,
	}
}

// Run executes the full job lifecycle and returns the process exit code.
// Cleanup runs on every path once the job has been created, when enabled.
func (r *Runner) Run(ctx context.Context) int {
	jobName := GenerateJobName(r.opts.Name)

	job, err := BuildJob(r.opts, jobName)
	if err != nil {
		r.logger.Error("Invalid job definition: %v", err)
		return ExitUsage
	}

	if _, err := r.client.BatchV1().Jobs(r.opts.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		r.logger.Error("Failed to create job: %v", err)
		return ExitFailure
	}
	fmt.Fprintf(r.stdout, "Job %q created in namespace %q.\n", jobName, r.opts.Namespace)

	exitCode := r.execute(ctx, jobName)

	if r.opts.AutoClean {
		// The run context may already be cancelled; cleanup gets its own.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.Cleanup(cleanupCtx, jobName); err != nil {
			r.logger.Warn("Failed to clean up job %q: %v", jobName, err)
		} else {
			fmt.Fprintf(r.stdout, "Cleaned up job %q.\n", jobName)
		}
	} else {
		fmt.Fprintf(r.stdout, "Job resources retained. Manually delete with: kubectl delete job %s -n %s\n",
			jobName, r.opts.Namespace)
	}

	return exitCode
}

// execute waits for the pod, streams logs, and waits for job completion.
func (r *Runner) execute(ctx context.Context, jobName string) int {
	pod, err := r.WaitForPod(ctx, jobName)
	if err != nil {
		return r.classify(err)
	}

	fmt.Fprintf(r.stdout, "Streaming logs from pod %q...\n", pod.Name)
	if err := r.StreamLogs(ctx, pod.Name); err != nil {
		return r.classify(err)
	}

	outcome, err := r.WaitForCompletion(ctx, jobName)
	if err != nil {
		return r.classify(err)
	}
	if outcome == "succeeded" || outcome == "complete" {
		fmt.Fprintln(r.stdout, "Job completed successfully.")
		return ExitOK
	}
	r.logger.Error("Job finished with status: %s", outcome)
	return ExitFailure
}

func (r *Runner) classify(err error) int {
	if errors.Is(err, context.Canceled) {
		r.logger.Error("Execution interrupted by user.")
		return ExitInterrupted
	}
	r.logger.Error("%v", err)
	return ExitFailure
}

// WaitForPod polls for a pod belonging to the job until it reaches a
// running or terminal phase. Waiting reasons that cannot resolve, such as
// image pull failures, are reported immediately as ErrPodBlocked.
func (r *Runner) WaitForPod(ctx context.Context, jobName string) (*corev1.Pod, error) {
	selector := "job-name=" + jobName
	deadline := r.now().Add(r.opts.Timeout)

	for r.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pods, err := r.client.CoreV1().Pods(r.opts.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		if err != nil {
			return nil, fmt.Errorf("failed to list pods for job %q: %w", jobName, err)
		}
		if len(pods.Items) > 0 {
			pod := &pods.Items[0]
			switch pod.Status.Phase {
			case corev1.PodRunning, corev1.PodSucceeded, corev1.PodFailed:
				return pod, nil
			}
			if reason, message, blocked := blockedState(pod); blocked {
				detail := message
				if detail == "" {
					detail = reason
				}
				return nil, fmt.Errorf("%w: pod %s: %s", ErrPodBlocked, pod.Name, detail)
			}
		}
		r.sleep(r.podPollInterval)
	}
	return nil, fmt.Errorf("%w waiting for a pod from job %q to become ready (timeout=%s)",
		ErrTimeout, jobName, r.opts.Timeout)
}

// blockedState inspects container waiting states for unrecoverable reasons.
func blockedState(pod *corev1.Pod) (reason, message string, blocked bool) {
	var reasons []string
	for _, containerStatus := range pod.Status.ContainerStatuses {
		waiting := containerStatus.State.Waiting
		if waiting == nil {
			continue
		}
		reasons = append(reasons, waiting.Reason)
		if waiting.Message != "" {
			message = waiting.Message
		}
		if blockedWaitingReasons[waiting.Reason] {
			blocked = true
		}
	}
	sort.Strings(reasons)
	return strings.Join(reasons, ", "), message, blocked
}

// StreamLogs follows the pod's container log, copying it to stdout. Stream
// errors with an ok/no-content status are tolerated as a normal end of log.
func (r *Runner) StreamLogs(ctx context.Context, podName string) error {
	req := r.client.CoreV1().Pods(r.opts.Namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: r.opts.ContainerName,
		Follow:    true,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		if isBenignStreamErr(err) {
			return nil
		}
		return fmt.Errorf("failed to open log stream for pod %q: %w", podName, err)
	}
	defer stream.Close()

	if _, err := io.Copy(r.stdout, stream); err != nil {
		if isBenignStreamErr(err) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("log stream for pod %q failed: %w", podName, err)
	}
	return nil
}

func isBenignStreamErr(err error) bool {
	statusErr := &apierrors.StatusError{}
	if errors.As(err, &statusErr) {
		code := statusErr.Status().Code
		return code == 0 || code == 200
	}
	return false
}

// WaitForCompletion polls the job status until it succeeds or fails, or the
// timeout elapses. Returns "succeeded", "failed", or a lowercased terminal
// condition type.
func (r *Runner) WaitForCompletion(ctx context.Context, jobName string) (string, error) {
	deadline := r.now().Add(r.opts.Timeout)

	for r.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		job, err := r.client.BatchV1().Jobs(r.opts.Namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			return "", fmt.Errorf("failed to read job %q status: %w", jobName, err)
		}
		if job.Status.Succeeded > 0 {
			return "succeeded", nil
		}
		if job.Status.Failed > 0 {
			return "failed", nil
		}
		for _, condition := range job.Status.Conditions {
			if condition.Status != corev1.ConditionTrue {
				continue
			}
			if condition.Type == batchv1.JobComplete || condition.Type == batchv1.JobFailed {
				return strings.ToLower(string(condition.Type)), nil
			}
		}
		r.sleep(r.jobPollInterval)
	}
	return "", fmt.Errorf("%w: job %q did not complete within %s", ErrTimeout, jobName, r.opts.Timeout)
}

// Cleanup deletes the job with foreground cascading so dependent pods are
// removed too. A missing job counts as already clean.
func (r *Runner) Cleanup(ctx context.Context, jobName string) error {
	propagation := metav1.DeletePropagationForeground
	err := r.client.BatchV1().Jobs(r.opts.Namespace).Delete(ctx, jobName, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete job %q: %w", jobName, err)
	}
	return nil
}
