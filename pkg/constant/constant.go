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

package constant

import "time"

const (
	TaskExecutorControllerName = "task-executor"
)

// Env variables
const (
	// EnvVarNamespace is the namespace the task executor runs in, usually set through the downward API
	EnvVarNamespace = "NAMESPACE"
	// EnvVarPodName is the name of the Pod running the task executor
	EnvVarPodName = "POD_NAME"
)

// Env variables set on the containers of the workers
const (
	EnvVarAlgorithmType      = "ALGORITHM_TYPE"
	EnvVarAlgorithmStateType = "ALGORITHM_STATE_TYPE"
	EnvVarAlgorithmImage     = "ALGORITHM_IMAGE"
	EnvVarWorkerImage        = "WORKER_IMAGE"
	EnvVarHotWorker          = "HOT_WORKER"
)

const (
	// LabelValueWorker is the value of the type label carried by worker Jobs and Pods
	LabelValueWorker = "worker"
	// LabelJobName is the label the Job controller sets on the Pods it creates
	LabelJobName = "job-name"
)

// Worker container names
const (
	ContainerNameWorker     = "worker"
	ContainerNameAlgorunner = "algorunner"
)

const (
	DefaultNamespace                = "default"
	DefaultReconcileInterval        = 1 * time.Second
	DefaultInitialCapacity          = 10
	DefaultMaxConcurrentMutations   = 10
	DefaultMutationRetries          = 3
	DefaultMutationRetryDelay       = 200 * time.Millisecond
	DefaultRequestsConfigMapName    = "task-executor-requests"
	DefaultVersionsConfigMapName    = "hkube-versions"
	DefaultWorkerImage              = "hkube/worker"
	DefaultWorkerImageTag           = "latest"
	ConfigMapKeyRequests            = "requests.yaml"
	ConfigMapKeyVersions            = "versions.yaml"
	VersionsImageKeyWorker          = "worker"
	WorkerJobNameRandomSuffixLength = 5
)

// Capacity bounds of the creation throttle
const (
	MinCapacity = 2
	MaxCapacity = 50
)
