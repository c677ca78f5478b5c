/*
 * Copyright 2023 nebuly.com.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kube

import (
	"context"
	"fmt"
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"strconv"
)

// Orchestrator performs the mutations of the reconciliation on the Kubernetes cluster:
// each worker runs in the Pod of a dedicated Job.
type Orchestrator struct {
	client.Client
	namespace string
}

func NewOrchestrator(c client.Client, namespace string) Orchestrator {
	return Orchestrator{
		Client:    c,
		namespace: namespace,
	}
}

// CreateJob creates the Job running the worker described by spec.
// Creating a Job that already exists is not an error.
func (o Orchestrator) CreateJob(ctx context.Context, spec core.JobSpec) error {
	logger := log.FromContext(ctx)
	job := BuildJob(o.namespace, spec)
	if err := o.Create(ctx, job); err != nil {
		if apierrors.IsAlreadyExists(err) {
			logger.V(1).Info("job already exists", "job", klog.KObj(job))
			return nil
		}
		return fmt.Errorf("unable to create job %s: %w", spec.Name, err)
	}
	logger.V(1).Info("created job", "job", klog.KObj(job), "algorithm", spec.AlgorithmName, "hot", spec.Hot)
	return nil
}

// DeleteJob deletes the Job and, in background, its Pods. Deleting a Job that does not exist is not an error.
func (o Orchestrator) DeleteJob(ctx context.Context, jobName string) error {
	logger := log.FromContext(ctx)
	job := batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: o.namespace,
		},
	}
	if err := o.Delete(ctx, &job, client.PropagationPolicy(metav1.DeletePropagationBackground)); err != nil {
		if apierrors.IsNotFound(err) {
			logger.V(1).Info("job already deleted", "job", klog.KObj(&job))
			return nil
		}
		return fmt.Errorf("unable to delete job %s: %w", jobName, err)
	}
	logger.V(1).Info("deleted job", "job", klog.KObj(&job))
	return nil
}

// SetHotWorker updates the hot worker label of the Pod running the worker
func (o Orchestrator) SetHotWorker(ctx context.Context, podName string, hot bool) error {
	desired := strconv.FormatBool(hot)
	return o.patchPod(ctx, podName, func(pod *v1.Pod) bool {
		if pod.Labels[v1alpha1.LabelHotWorker] == desired {
			return false
		}
		if pod.Labels == nil {
			pod.Labels = make(map[string]string)
		}
		pod.Labels[v1alpha1.LabelHotWorker] = desired
		return true
	})
}

// ResumeWorker asks the worker running in the Pod to resume accepting tasks
func (o Orchestrator) ResumeWorker(ctx context.Context, podName string) error {
	return o.patchPod(ctx, podName, func(pod *v1.Pod) bool {
		if pod.Annotations[v1alpha1.AnnotationWorkerCommand] == string(v1alpha1.WorkerCommandResume) {
			return false
		}
		if pod.Annotations == nil {
			pod.Annotations = make(map[string]string)
		}
		pod.Annotations[v1alpha1.AnnotationWorkerCommand] = string(v1alpha1.WorkerCommandResume)
		return true
	})
}

// patchPod applies mutate to the Pod, patching it only if mutate returns true.
// Pods that do not exist anymore are ignored.
func (o Orchestrator) patchPod(ctx context.Context, podName string, mutate func(pod *v1.Pod) bool) error {
	logger := log.FromContext(ctx)
	var pod v1.Pod
	if err := o.Get(ctx, client.ObjectKey{Namespace: o.namespace, Name: podName}, &pod); err != nil {
		if apierrors.IsNotFound(err) {
			logger.V(1).Info("pod not found, nothing to do", "pod", podName)
			return nil
		}
		return fmt.Errorf("unable to get pod %s: %w", podName, err)
	}

	original := pod.DeepCopy()
	if !mutate(&pod) {
		return nil
	}
	if err := o.Patch(ctx, &pod, client.MergeFrom(original)); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("unable to patch pod %s: %w", podName, err)
	}
	logger.V(1).Info("patched pod", "pod", klog.KObj(&pod))
	return nil
}

// BuildJob returns the Job running the worker described by spec. The Pod runs two containers:
// the worker, which talks with the platform, and the algorunner, which runs the algorithm.
func BuildJob(namespace string, spec core.JobSpec) *batchv1.Job {
	labels := map[string]string{
		v1alpha1.LabelType:          constant.LabelValueWorker,
		v1alpha1.LabelAlgorithmName: spec.AlgorithmName,
		v1alpha1.LabelHotWorker:     strconv.FormatBool(spec.Hot),
	}
	podLabels := make(map[string]string, len(labels))
	for k, v := range labels {
		podLabels[k] = v
	}

	workerEnv := []v1.EnvVar{
		{Name: constant.EnvVarAlgorithmType, Value: spec.AlgorithmName},
		{Name: constant.EnvVarAlgorithmStateType, Value: string(spec.StateType)},
		{Name: constant.EnvVarAlgorithmImage, Value: spec.AlgorithmImage},
		{Name: constant.EnvVarWorkerImage, Value: spec.WorkerImage},
		{Name: constant.EnvVarHotWorker, Value: strconv.FormatBool(spec.Hot)},
		{
			Name: constant.EnvVarPodName,
			ValueFrom: &v1.EnvVarSource{
				FieldRef: &v1.ObjectFieldSelector{FieldPath: "metadata.name"},
			},
		},
		{
			Name: constant.EnvVarNamespace,
			ValueFrom: &v1.EnvVarSource{
				FieldRef: &v1.ObjectFieldSelector{FieldPath: "metadata.namespace"},
			},
		},
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: util.Int32Addr(0),
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: podLabels,
					Annotations: map[string]string{
						v1alpha1.AnnotationAlgorithmImage: spec.AlgorithmImage,
						v1alpha1.AnnotationWorkerImage:    spec.WorkerImage,
					},
				},
				Spec: v1.PodSpec{
					RestartPolicy: v1.RestartPolicyNever,
					Containers: []v1.Container{
						{
							Name:  constant.ContainerNameWorker,
							Image: spec.WorkerImage,
							Env:   workerEnv,
						},
						{
							Name:  constant.ContainerNameAlgorunner,
							Image: spec.AlgorithmImage,
							Env:   spec.Env,
							Resources: v1.ResourceRequirements{
								Requests: spec.Resources,
								Limits:   spec.Resources,
							},
						},
					},
				},
			},
		},
	}
}
