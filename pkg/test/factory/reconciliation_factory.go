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
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
)

type workerBuilder struct {
	state.Worker
}

func (b *workerBuilder) WithStatus(status state.WorkerStatus) *workerBuilder {
	b.Worker.Status = status
	return b
}

func (b *workerBuilder) Paused() *workerBuilder {
	b.Worker.Paused = true
	return b
}

func (b *workerBuilder) Hot() *workerBuilder {
	b.Worker.Hot = true
	return b
}

func (b *workerBuilder) WithTask(jobID, taskID string) *workerBuilder {
	b.Worker.JobID = jobID
	b.Worker.TaskID = taskID
	return b
}

func (b *workerBuilder) WithJobName(jobName string) *workerBuilder {
	b.Worker.JobName = jobName
	return b
}

func (b *workerBuilder) WithImages(algorithmImage, workerImage string) *workerBuilder {
	b.Worker.AlgorithmImage = algorithmImage
	b.Worker.WorkerImage = workerImage
	return b
}

func (b *workerBuilder) Get() state.Worker {
	return b.Worker
}

// BuildWorker returns a builder of a ready worker whose Pod is named after the worker
func BuildWorker(id, algorithmName string) *workerBuilder {
	return &workerBuilder{state.Worker{
		ID:            id,
		AlgorithmName: algorithmName,
		PodName:       id,
		Status:        state.WorkerStatusReady,
	}}
}

type templateBuilder struct {
	state.AlgorithmTemplate
}

func (b *templateBuilder) WithImage(image string) *templateBuilder {
	b.AlgorithmTemplate.Image = image
	return b
}

func (b *templateBuilder) WithStateType(stateType state.StateType) *templateBuilder {
	b.AlgorithmTemplate.StateType = stateType
	return b
}

func (b *templateBuilder) WithMinHotWorkers(n int) *templateBuilder {
	b.AlgorithmTemplate.MinHotWorkers = n
	return b
}

func (b *templateBuilder) WithMaxWorkers(n int) *templateBuilder {
	b.AlgorithmTemplate.MaxWorkers = &n
	return b
}

func (b *templateBuilder) WithQuotaGuarantee(n int) *templateBuilder {
	b.AlgorithmTemplate.QuotaGuarantee = &n
	return b
}

func (b *templateBuilder) Get() state.AlgorithmTemplate {
	return b.AlgorithmTemplate
}

// BuildTemplate returns a builder of a batch template without any worker policy
func BuildTemplate(name string) *templateBuilder {
	return &templateBuilder{state.AlgorithmTemplate{
		Name:      name,
		StateType: state.StateTypeBatch,
	}}
}

// BuildTemplates indexes the provided templates by name
func BuildTemplates(templates ...state.AlgorithmTemplate) map[string]state.AlgorithmTemplate {
	res := make(map[string]state.AlgorithmTemplate, len(templates))
	for _, t := range templates {
		res[t.Name] = t
	}
	return res
}
