package k8sjob

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const workspaceVolumeName = "workspace"

// BuildJob assembles the Job resource for one invocation.
func BuildJob(opts Options, jobName string) (*batchv1.Job, error) {
	container := corev1.Container{
		Name:            opts.ContainerName,
		Image:           opts.Image,
		ImagePullPolicy: corev1.PullPolicy(opts.ImagePullPolicy),
		Command:         opts.Entrypoint,
		Args:            opts.Command,
		Env:             buildEnv(opts.Env),
	}

	resources, err := buildResources(opts)
	if err != nil {
		return nil, err
	}
	container.Resources = resources

	var volumes []corev1.Volume
	if !opts.NoWorkspace {
		volumes = append(volumes, corev1.Volume{
			Name:         workspaceVolumeName,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		})
		container.VolumeMounts = []corev1.VolumeMount{{
			Name:      workspaceVolumeName,
			MountPath: opts.WorkspaceMount,
		}}
	}

	podLabels := map[string]string{"app": "ai-coder"}
	for k, v := range opts.Labels {
		podLabels[k] = v
	}

	var pullSecrets []corev1.LocalObjectReference
	for _, name := range opts.ImagePullSecrets {
		pullSecrets = append(pullSecrets, corev1.LocalObjectReference{Name: name})
	}

	backoffLimit := opts.BackoffLimit
	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   jobName,
			Labels: podLabels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      podLabels,
					Annotations: opts.Annotations,
				},
				Spec: corev1.PodSpec{
					RestartPolicy:      corev1.RestartPolicy(opts.RestartPolicy),
					Containers:         []corev1.Container{container},
					ServiceAccountName: opts.ServiceAccount,
					Volumes:            volumes,
					ImagePullSecrets:   pullSecrets,
				},
			},
		},
	}
	return job, nil
}

func buildEnv(env map[string]string) []corev1.EnvVar {
	if len(env) == 0 {
		return nil
	}
	vars := make([]corev1.EnvVar, 0, len(env))
	for name, value := range env {
		vars = append(vars, corev1.EnvVar{Name: name, Value: value})
	}
	return vars
}

func buildResources(opts Options) (corev1.ResourceRequirements, error) {
	requirements := corev1.ResourceRequirements{}

	requests, err := parseQuantities(opts.RequestCPU, opts.RequestMemory)
	if err != nil {
		return requirements, err
	}
	limits, err := parseQuantities(opts.LimitCPU, opts.LimitMemory)
	if err != nil {
		return requirements, err
	}

	requirements.Requests = requests
	requirements.Limits = limits
	return requirements, nil
}

func parseQuantities(cpu, memory string) (corev1.ResourceList, error) {
	if cpu == "" && memory == "" {
		return nil, nil
	}
	list := corev1.ResourceList{}
	if cpu != "" {
		quantity, err := resource.ParseQuantity(cpu)
		if err != nil {
			return nil, err
		}
		list[corev1.ResourceCPU] = quantity
	}
	if memory != "" {
		quantity, err := resource.ParseQuantity(memory)
		if err != nil {
			return nil, err
		}
		list[corev1.ResourceMemory] = quantity
	}
	return list, nil
}
