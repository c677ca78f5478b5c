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

package core

import (
	"context"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	v1 "k8s.io/api/core/v1"
)

type Planner interface {
	Plan(ctx context.Context, snapshot state.Snapshot, capacity int) Plan
}

type Actuator interface {
	Apply(ctx context.Context, plan Plan) ApplyResult
}

// Orchestrator performs the mutations decided by the reconciliation on the cluster.
// Every method must be idempotent: repeating a call that already took effect is a no-op.
type Orchestrator interface {
	CreateJob(ctx context.Context, spec JobSpec) error
	DeleteJob(ctx context.Context, jobName string) error
	SetHotWorker(ctx context.Context, podName string, hot bool) error
	ResumeWorker(ctx context.Context, podName string) error
}

// JobSpec describes the workload running a new worker of an algorithm
type JobSpec struct {
	Name           string
	AlgorithmName  string
	AlgorithmImage string
	WorkerImage    string
	Resources      v1.ResourceList
	Env            []v1.EnvVar
	StateType      state.StateType
	Hot            bool
}
