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

package state

import (
	"fmt"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	"strconv"
)

// Snapshot is the read-only view of the cluster a reconciliation tick works on
type Snapshot struct {
	Workers   []Worker
	Jobs      []batchv1.Job
	Pods      []v1.Pod
	Templates map[string]AlgorithmTemplate
	Requests  []Request
	Versions  Versions
}

// GetTemplate returns the template of the algorithm, if any
func (s Snapshot) GetTemplate(algorithmName string) (AlgorithmTemplate, bool) {
	t, ok := s.Templates[algorithmName]
	return t, ok
}

// NewWorkerFromPod builds the discovery record a worker reports through the annotations
// of its Pod. It returns false if the worker did not register yet.
//
// An unknown status is reported as error together with a bootstrap worker, since
// the worker cannot be trusted to accept tasks.
func NewWorkerFromPod(pod v1.Pod) (Worker, bool, error) {
	statusAnnotation, ok := pod.Annotations[v1alpha1.AnnotationWorkerStatus]
	if !ok {
		return Worker{}, false, nil
	}
	status, err := ParseWorkerStatus(statusAnnotation)

	worker := Worker{
		ID:             pod.Annotations[v1alpha1.AnnotationWorkerID],
		AlgorithmName:  pod.Labels[v1alpha1.LabelAlgorithmName],
		PodName:        pod.Name,
		Status:         status,
		Paused:         parseBool(pod.Annotations[v1alpha1.AnnotationWorkerPaused]),
		Hot:            parseBool(pod.Labels[v1alpha1.LabelHotWorker]),
		JobID:          pod.Annotations[v1alpha1.AnnotationJobID],
		TaskID:         pod.Annotations[v1alpha1.AnnotationTaskID],
		AlgorithmImage: pod.Annotations[v1alpha1.AnnotationAlgorithmImage],
		WorkerImage:    pod.Annotations[v1alpha1.AnnotationWorkerImage],
	}
	if worker.ID == "" {
		worker.ID = pod.Name
	}
	if err != nil {
		return worker, true, fmt.Errorf("pod %s: %w", pod.Name, err)
	}
	return worker, true, nil
}

// NewAlgorithmTemplate converts the Algorithm resource into the template used by the reconciliation.
// An invalid state type is reported as error together with a batch template.
func NewAlgorithmTemplate(algorithm v1alpha1.Algorithm) (AlgorithmTemplate, error) {
	stateType, err := ParseStateType(algorithm.Spec.StateType)
	template := AlgorithmTemplate{
		Name:           algorithm.Name,
		Image:          algorithm.Spec.AlgorithmImage,
		Resources:      algorithm.Spec.Resources,
		Env:            algorithm.Spec.Env,
		MinHotWorkers:  int(algorithm.Spec.MinHotWorkers),
		MaxWorkers:     intPtr(algorithm.Spec.MaxWorkers),
		QuotaGuarantee: intPtr(algorithm.Spec.QuotaGuarantee),
		StateType:      stateType,
	}
	if err != nil {
		return template, fmt.Errorf("algorithm %s: %w", algorithm.Name, err)
	}
	return template, nil
}

func intPtr(i *int32) *int {
	if i == nil {
		return nil
	}
	res := int(*i)
	return &res
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
