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

package factory

import (
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"strconv"
)

type namespaceBuilder struct {
	v1.Namespace
}

func (b *namespaceBuilder) Get() v1.Namespace {
	return b.Namespace
}

func BuildNamespace(name string) *namespaceBuilder {
	namespace := v1.Namespace{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Namespace",
			APIVersion: v1.SchemeGroupVersion.String(),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
	}
	return &namespaceBuilder{namespace}
}

type podBuilder struct {
	v1.Pod
}

func (b *podBuilder) WithContainer(c v1.Container) *podBuilder {
	b.Spec.Containers = append(b.Spec.Containers, c)
	return b
}

func (b *podBuilder) WithLabel(label, value string) *podBuilder {
	if b.Labels == nil {
		b.Labels = make(map[string]string)
	}
	b.Labels[label] = value
	return b
}

func (b *podBuilder) WithAnnotation(annotation, value string) *podBuilder {
	if b.Annotations == nil {
		b.Annotations = make(map[string]string)
	}
	b.Annotations[annotation] = value
	return b
}

func (b *podBuilder) WithJobOwner(jobName string) *podBuilder {
	b.OwnerReferences = append(b.OwnerReferences, metav1.OwnerReference{
		APIVersion: batchv1.SchemeGroupVersion.String(),
		Kind:       "Job",
		Name:       jobName,
	})
	return b.WithLabel(constant.LabelJobName, jobName)
}

func (b *podBuilder) WithNodeName(nodeName string) *podBuilder {
	b.Spec.NodeName = nodeName
	return b
}

func (b *podBuilder) WithPhase(phase v1.PodPhase) *podBuilder {
	b.Status.Phase = phase
	return b
}

func (b *podBuilder) WithUnschedulableCondition() *podBuilder {
	b.Status.Phase = v1.PodPending
	b.Status.Conditions = append(b.Status.Conditions, v1.PodCondition{
		Type:   v1.PodScheduled,
		Status: v1.ConditionFalse,
		Reason: v1.PodReasonUnschedulable,
	})
	return b
}

// WithWorkerStatus sets the annotations a registered worker reports on its Pod
func (b *podBuilder) WithWorkerStatus(status string, paused bool) *podBuilder {
	return b.WithAnnotation(v1alpha1.AnnotationWorkerStatus, status).
		WithAnnotation(v1alpha1.AnnotationWorkerPaused, strconv.FormatBool(paused))
}

func (b *podBuilder) Get() v1.Pod {
	return b.Pod
}

func BuildPod(namespace, name string) *podBuilder {
	pod := v1.Pod{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Pod",
			APIVersion: v1.SchemeGroupVersion.String(),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}
	return &podBuilder{pod}
}

// BuildWorkerPod returns a builder of a Pod created by the task executor for the provided algorithm
func BuildWorkerPod(namespace, name, jobName, algorithmName string) *podBuilder {
	return BuildPod(namespace, name).
		WithLabel(v1alpha1.LabelType, constant.LabelValueWorker).
		WithLabel(v1alpha1.LabelAlgorithmName, algorithmName).
		WithLabel(v1alpha1.LabelHotWorker, "false").
		WithJobOwner(jobName)
}

type jobBuilder struct {
	batchv1.Job
}

func (b *jobBuilder) WithLabel(label, value string) *jobBuilder {
	if b.Labels == nil {
		b.Labels = make(map[string]string)
	}
	b.Labels[label] = value
	return b
}

func (b *jobBuilder) WithCondition(conditionType batchv1.JobConditionType) *jobBuilder {
	b.Status.Conditions = append(b.Status.Conditions, batchv1.JobCondition{
		Type:   conditionType,
		Status: v1.ConditionTrue,
	})
	return b
}

func (b *jobBuilder) Get() batchv1.Job {
	return b.Job
}

func BuildJob(namespace, name string) *jobBuilder {
	job := batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Job",
			APIVersion: batchv1.SchemeGroupVersion.String(),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}
	return &jobBuilder{job}
}

// BuildWorkerJob returns a builder of a Job created by the task executor for the provided algorithm
func BuildWorkerJob(namespace, name, algorithmName string) *jobBuilder {
	return BuildJob(namespace, name).
		WithLabel(v1alpha1.LabelType, constant.LabelValueWorker).
		WithLabel(v1alpha1.LabelAlgorithmName, algorithmName)
}

type containerBuilder struct {
	v1.Container
}

func (b *containerBuilder) Get() v1.Container {
	return b.Container
}

func BuildContainer(name, image string) *containerBuilder {
	c := v1.Container{
		Name:  name,
		Image: image,
	}
	return &containerBuilder{c}
}
