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

package kube_test

import (
	"context"
	"errors"
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/internal/reconciliation/kube"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/test/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"testing"
)

const namespace = "hkube"

type failingClient struct {
	client.Client
	err error
}

func (c failingClient) Create(_ context.Context, _ client.Object, _ ...client.CreateOption) error {
	return c.err
}

func (c failingClient) Delete(_ context.Context, _ client.Object, _ ...client.DeleteOption) error {
	return c.err
}

func (c failingClient) Patch(_ context.Context, _ client.Object, _ client.Patch, _ ...client.PatchOption) error {
	return c.err
}

func newJobSpec(name string) core.JobSpec {
	return core.JobSpec{
		Name:           name,
		AlgorithmName:  "green-alg",
		AlgorithmImage: "registry.io/green-alg:v1",
		WorkerImage:    "registry.io/hkube/worker:v2.0.0",
		Resources: v1.ResourceList{
			v1.ResourceCPU:    resource.MustParse("500m"),
			v1.ResourceMemory: resource.MustParse("256Mi"),
		},
		Env:       []v1.EnvVar{{Name: "FOO", Value: "bar"}},
		StateType: state.StateTypeBatch,
		Hot:       true,
	}
}

func TestBuildJob(t *testing.T) {
	spec := newJobSpec("green-alg-abcde")

	job := kube.BuildJob(namespace, spec)

	assert.Equal(t, "green-alg-abcde", job.Name)
	assert.Equal(t, namespace, job.Namespace)
	for _, labels := range []map[string]string{job.Labels, job.Spec.Template.Labels} {
		assert.Equal(t, constant.LabelValueWorker, labels[v1alpha1.LabelType])
		assert.Equal(t, "green-alg", labels[v1alpha1.LabelAlgorithmName])
		assert.Equal(t, "true", labels[v1alpha1.LabelHotWorker])
	}
	assert.Equal(t, spec.AlgorithmImage, job.Spec.Template.Annotations[v1alpha1.AnnotationAlgorithmImage])
	assert.Equal(t, spec.WorkerImage, job.Spec.Template.Annotations[v1alpha1.AnnotationWorkerImage])
	assert.Equal(t, v1.RestartPolicyNever, job.Spec.Template.Spec.RestartPolicy)
	assert.Equal(t, int32(0), *job.Spec.BackoffLimit)

	require.Len(t, job.Spec.Template.Spec.Containers, 2)
	worker := job.Spec.Template.Spec.Containers[0]
	assert.Equal(t, constant.ContainerNameWorker, worker.Name)
	assert.Equal(t, spec.WorkerImage, worker.Image)
	assert.Contains(t, worker.Env, v1.EnvVar{Name: constant.EnvVarAlgorithmType, Value: "green-alg"})
	algorunner := job.Spec.Template.Spec.Containers[1]
	assert.Equal(t, constant.ContainerNameAlgorunner, algorunner.Name)
	assert.Equal(t, spec.AlgorithmImage, algorunner.Image)
	assert.Equal(t, spec.Resources, algorunner.Resources.Requests)
	assert.Equal(t, spec.Env, algorunner.Env)
}

func TestOrchestrator__CreateJob(t *testing.T) {
	t.Run("Job is created", func(t *testing.T) {
		c := fake.NewClientBuilder().Build()
		orchestrator := kube.NewOrchestrator(c, namespace)

		require.NoError(t, orchestrator.CreateJob(context.Background(), newJobSpec("green-alg-abcde")))

		var job batchv1.Job
		require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: "green-alg-abcde"}, &job))
		assert.Equal(t, "green-alg", job.Labels[v1alpha1.LabelAlgorithmName])
	})

	t.Run("Creating the same job twice is idempotent", func(t *testing.T) {
		c := fake.NewClientBuilder().Build()
		orchestrator := kube.NewOrchestrator(c, namespace)

		require.NoError(t, orchestrator.CreateJob(context.Background(), newJobSpec("green-alg-abcde")))
		require.NoError(t, orchestrator.CreateJob(context.Background(), newJobSpec("green-alg-abcde")))

		var jobs batchv1.JobList
		require.NoError(t, c.List(context.Background(), &jobs, client.InNamespace(namespace)))
		assert.Len(t, jobs.Items, 1)
	})

	t.Run("API errors are returned", func(t *testing.T) {
		apiErr := apierrors.NewServiceUnavailable("unavailable")
		c := failingClient{Client: fake.NewClientBuilder().Build(), err: apiErr}
		orchestrator := kube.NewOrchestrator(c, namespace)

		err := orchestrator.CreateJob(context.Background(), newJobSpec("green-alg-abcde"))
		assert.ErrorIs(t, err, apiErr)
		assert.True(t, core.IsRetriable(err))
	})
}

func TestOrchestrator__DeleteJob(t *testing.T) {
	t.Run("Job is deleted", func(t *testing.T) {
		job := factory.BuildWorkerJob(namespace, "green-alg-abcde", "green-alg").Get()
		c := fake.NewClientBuilder().WithObjects(&job).Build()
		orchestrator := kube.NewOrchestrator(c, namespace)

		require.NoError(t, orchestrator.DeleteJob(context.Background(), "green-alg-abcde"))

		var deleted batchv1.Job
		err := c.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: "green-alg-abcde"}, &deleted)
		assert.True(t, apierrors.IsNotFound(err))
	})

	t.Run("Deleting a missing job is not an error", func(t *testing.T) {
		orchestrator := kube.NewOrchestrator(fake.NewClientBuilder().Build(), namespace)
		assert.NoError(t, orchestrator.DeleteJob(context.Background(), "missing"))
	})

	t.Run("API errors are returned", func(t *testing.T) {
		apiErr := apierrors.NewForbidden(schema.GroupResource{Resource: "jobs"}, "green-alg-abcde", errors.New("forbidden"))
		c := failingClient{Client: fake.NewClientBuilder().Build(), err: apiErr}
		orchestrator := kube.NewOrchestrator(c, namespace)
		assert.ErrorIs(t, orchestrator.DeleteJob(context.Background(), "green-alg-abcde"), apiErr)
	})
}

func TestOrchestrator__SetHotWorker(t *testing.T) {
	testCases := []struct {
		name     string
		pod      v1.Pod
		hot      bool
		expected string
	}{
		{
			name:     "Warm up",
			pod:      factory.BuildWorkerPod(namespace, "pd-1", "green-alg-abcde", "green-alg").Get(),
			hot:      true,
			expected: "true",
		},
		{
			name: "Cool down",
			pod: factory.BuildWorkerPod(namespace, "pd-1", "green-alg-abcde", "green-alg").
				WithLabel(v1alpha1.LabelHotWorker, "true").
				Get(),
			hot:      false,
			expected: "false",
		},
		{
			name:     "Pod without labels",
			pod:      factory.BuildPod(namespace, "pd-1").Get(),
			hot:      true,
			expected: "true",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			c := fake.NewClientBuilder().WithObjects(&tt.pod).Build()
			orchestrator := kube.NewOrchestrator(c, namespace)

			require.NoError(t, orchestrator.SetHotWorker(context.Background(), tt.pod.Name, tt.hot))

			var pod v1.Pod
			require.NoError(t, c.Get(context.Background(), client.ObjectKeyFromObject(&tt.pod), &pod))
			assert.Equal(t, tt.expected, pod.Labels[v1alpha1.LabelHotWorker])
		})
	}

	t.Run("Missing pod is ignored", func(t *testing.T) {
		orchestrator := kube.NewOrchestrator(fake.NewClientBuilder().Build(), namespace)
		assert.NoError(t, orchestrator.SetHotWorker(context.Background(), "missing", true))
	})

	t.Run("Pod already in the desired state is not patched", func(t *testing.T) {
		pod := factory.BuildWorkerPod(namespace, "pd-1", "green-alg-abcde", "green-alg").Get()
		apiErr := apierrors.NewServiceUnavailable("unavailable")
		c := failingClient{Client: fake.NewClientBuilder().WithObjects(&pod).Build(), err: apiErr}
		orchestrator := kube.NewOrchestrator(c, namespace)

		assert.NoError(t, orchestrator.SetHotWorker(context.Background(), "pd-1", false))
		assert.ErrorIs(t, orchestrator.SetHotWorker(context.Background(), "pd-1", true), apiErr)
	})
}

func TestOrchestrator__ResumeWorker(t *testing.T) {
	pod := factory.BuildWorkerPod(namespace, "pd-1", "green-alg-abcde", "green-alg").
		WithWorkerStatus("ready", true).
		Get()
	c := fake.NewClientBuilder().WithObjects(&pod).Build()
	orchestrator := kube.NewOrchestrator(c, namespace)

	require.NoError(t, orchestrator.ResumeWorker(context.Background(), "pd-1"))
	require.NoError(t, orchestrator.ResumeWorker(context.Background(), "pd-1"))

	var updated v1.Pod
	require.NoError(t, c.Get(context.Background(), client.ObjectKeyFromObject(&pod), &updated))
	assert.Equal(t, string(v1alpha1.WorkerCommandResume), updated.Annotations[v1alpha1.AnnotationWorkerCommand])
	assert.Equal(t, "true", updated.Annotations[v1alpha1.AnnotationWorkerPaused])
}
