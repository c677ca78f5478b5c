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

package v1alpha1

// Labels set on worker Jobs and Pods
const (
	// LabelType identifies the objects managed by the task executor
	LabelType = "hkube.io/type"
	// LabelAlgorithmName is the name of the algorithm run by the worker
	LabelAlgorithmName = "hkube.io/algorithm-name"
	// LabelHotWorker marks a worker that is kept alive between tasks
	LabelHotWorker = "hkube.io/hot-worker"
)

// Annotations reported by the worker on its own Pod
//
// A Pod without AnnotationWorkerStatus is not registered yet.
const (
	AnnotationWorkerID       = "hkube.io/worker-id"
	AnnotationWorkerStatus   = "hkube.io/status-worker"
	AnnotationWorkerPaused   = "hkube.io/status-paused"
	AnnotationJobID          = "hkube.io/job-id"
	AnnotationTaskID         = "hkube.io/task-id"
	AnnotationAlgorithmImage = "hkube.io/algorithm-image"
	AnnotationWorkerImage    = "hkube.io/worker-image"
)

// Annotations set by the task executor on worker Pods
const (
	// AnnotationWorkerCommand is the last command the task executor sent to the worker
	AnnotationWorkerCommand = "hkube.io/spec-worker-command"
)

type WorkerCommand string

const (
	WorkerCommandResume WorkerCommand = "resume"
)
