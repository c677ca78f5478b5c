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

package state_test

import (
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/factory"
	testfactory "github.com/kube-hpc/task-executor/pkg/test/factory"
	"github.com/stretchr/testify/assert"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"testing"
)

func TestParseStateType(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    state.StateType
		expectedErr bool
	}{
		{
			name:     "Empty string defaults to batch",
			input:    "",
			expected: state.StateTypeBatch,
		},
		{
			name:     "Stateful",
			input:    "stateful",
			expected: state.StateTypeStateful,
		},
		{
			name:     "Stateless",
			input:    "stateless",
			expected: state.StateTypeStateless,
		},
		{
			name:        "Unknown type defaults to batch and returns error",
			input:       "streaming",
			expected:    state.StateTypeBatch,
			expectedErr: true,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			res, err := state.ParseStateType(tt.input)
			assert.Equal(t, tt.expected, res)
			if tt.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStateType__IsStreaming(t *testing.T) {
	assert.False(t, state.StateTypeBatch.IsStreaming())
	assert.True(t, state.StateTypeStateful.IsStreaming())
	assert.True(t, state.StateTypeStateless.IsStreaming())
}

func TestParseWorkerStatus(t *testing.T) {
	status, err := state.ParseWorkerStatus("working")
	assert.NoError(t, err)
	assert.Equal(t, state.WorkerStatusWorking, status)

	status, err = state.ParseWorkerStatus("exit")
	assert.Error(t, err)
	assert.Equal(t, state.WorkerStatusBootstrap, status)
}

func TestNewWorkerFromPod(t *testing.T) {
	testCases := []struct {
		name               string
		pod                v1.Pod
		expectedWorker     state.Worker
		expectedRegistered bool
		expectedErr        bool
	}{
		{
			name:               "Pod without status annotation is not registered",
			pod:                testfactory.BuildWorkerPod("ns-1", "pod-1", "job-1", "green-alg").Get(),
			expectedRegistered: false,
		},
		{
			name: "Registered hot worker executing a task",
			pod: testfactory.BuildWorkerPod("ns-1", "pod-1", "job-1", "green-alg").
				WithLabel(v1alpha1.LabelHotWorker, "true").
				WithWorkerStatus("working", false).
				WithAnnotation(v1alpha1.AnnotationWorkerID, "worker-1").
				WithAnnotation(v1alpha1.AnnotationJobID, "main:pipeline:1").
				WithAnnotation(v1alpha1.AnnotationTaskID, "task-1").
				WithAnnotation(v1alpha1.AnnotationAlgorithmImage, "hkube/green-alg:v1").
				Get(),
			expectedWorker: state.Worker{
				ID:             "worker-1",
				AlgorithmName:  "green-alg",
				PodName:        "pod-1",
				Status:         state.WorkerStatusWorking,
				Hot:            true,
				JobID:          "main:pipeline:1",
				TaskID:         "task-1",
				AlgorithmImage: "hkube/green-alg:v1",
			},
			expectedRegistered: true,
		},
		{
			name: "Worker id defaults to the pod name",
			pod: testfactory.BuildWorkerPod("ns-1", "pod-1", "job-1", "green-alg").
				WithWorkerStatus("ready", true).
				Get(),
			expectedWorker: state.Worker{
				ID:            "pod-1",
				AlgorithmName: "green-alg",
				PodName:       "pod-1",
				Status:        state.WorkerStatusReady,
				Paused:        true,
			},
			expectedRegistered: true,
		},
		{
			name: "Unknown status is reported as bootstrap with an error",
			pod: testfactory.BuildWorkerPod("ns-1", "pod-1", "job-1", "green-alg").
				WithWorkerStatus("dancing", false).
				Get(),
			expectedWorker: state.Worker{
				ID:            "pod-1",
				AlgorithmName: "green-alg",
				PodName:       "pod-1",
				Status:        state.WorkerStatusBootstrap,
			},
			expectedRegistered: true,
			expectedErr:        true,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			worker, registered, err := state.NewWorkerFromPod(tt.pod)
			assert.Equal(t, tt.expectedRegistered, registered)
			if tt.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if registered {
				assert.Equal(t, tt.expectedWorker, worker)
			}
		})
	}
}

func TestNewAlgorithmTemplate(t *testing.T) {
	algorithm := factory.BuildAlgorithm("ns-1", "eval-alg").
		WithImage("hkube/eval-alg:v2").
		WithStateType("stateful").
		WithMinHotWorkers(2).
		WithMaxWorkers(4).
		WithQuotaGuarantee(1).
		WithCPUMilli(500).
		WithMemory(256*1024*1024).
		WithEnv("LOG_LEVEL", "debug").
		Get()

	template, err := state.NewAlgorithmTemplate(algorithm)
	assert.NoError(t, err)
	assert.Equal(t, "eval-alg", template.Name)
	assert.Equal(t, "hkube/eval-alg:v2", template.Image)
	assert.Equal(t, state.StateTypeStateful, template.StateType)
	assert.Equal(t, 2, template.MinHotWorkers)
	assert.Equal(t, 4, *template.MaxWorkers)
	assert.Equal(t, 1, *template.QuotaGuarantee)
	assert.True(t, template.Resources.Cpu().Equal(*resource.NewMilliQuantity(500, resource.DecimalSI)))
	assert.Equal(t, int64(256*1024*1024), template.Resources.Memory().Value())
	assert.Equal(t, []v1.EnvVar{{Name: "LOG_LEVEL", Value: "debug"}}, template.Env)
	assert.False(t, template.IsBatch())

	template, err = state.NewAlgorithmTemplate(factory.BuildAlgorithm("ns-1", "black-alg").Get())
	assert.NoError(t, err)
	assert.True(t, template.IsBatch())
	assert.Nil(t, template.MaxWorkers)
	assert.Nil(t, template.QuotaGuarantee)

	template, err = state.NewAlgorithmTemplate(factory.BuildAlgorithm("ns-1", "black-alg").WithStateType("unknown").Get())
	assert.Error(t, err)
	assert.True(t, template.IsBatch())
}

func TestVersions__ImageTag(t *testing.T) {
	versions := state.Versions{
		SystemVersion: "v2.1.0",
		Images:        map[string]string{"worker": "v2.1.3"},
	}
	assert.Equal(t, "v2.1.3", versions.ImageTag("worker", "latest"))
	assert.Equal(t, "v2.1.0", versions.ImageTag("algorunner", "latest"))
	assert.Equal(t, "latest", state.Versions{}.ImageTag("worker", "latest"))
}

func TestWithRegistry(t *testing.T) {
	assert.Equal(t, "hkube/worker", state.WithRegistry("", "hkube/worker"))
	assert.Equal(t, "docker.io/hkube/worker", state.WithRegistry("docker.io/", "hkube/worker"))
	assert.Equal(t, "docker.io/hkube/worker", state.WithRegistry("docker.io", "docker.io/hkube/worker"))
}

func TestWithTag(t *testing.T) {
	assert.Equal(t, "hkube/worker:v1", state.WithTag("hkube/worker", "v1"))
	assert.Equal(t, "hkube/worker:v2", state.WithTag("hkube/worker:v2", "v1"))
	assert.Equal(t, "localhost:5000/hkube/worker:v1", state.WithTag("localhost:5000/hkube/worker", "v1"))
	assert.Equal(t, "hkube/worker", state.WithTag("hkube/worker", ""))
}
