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
	v1 "k8s.io/api/core/v1"
	"strings"
)

type WorkerStatus string

const (
	WorkerStatusBootstrap WorkerStatus = "bootstrap"
	WorkerStatusReady     WorkerStatus = "ready"
	WorkerStatusWorking   WorkerStatus = "working"
)

func ParseWorkerStatus(s string) (WorkerStatus, error) {
	switch status := WorkerStatus(s); status {
	case WorkerStatusBootstrap, WorkerStatusReady, WorkerStatusWorking:
		return status, nil
	}
	return WorkerStatusBootstrap, fmt.Errorf("unknown worker status %q", s)
}

// StateType is the execution model of an algorithm, and therefore of the requests
// asking for one of its workers
type StateType string

const (
	StateTypeBatch     StateType = "batch"
	StateTypeStateful  StateType = "stateful"
	StateTypeStateless StateType = "stateless"
)

// ParseStateType parses the provided string, defaulting to batch when it is empty
func ParseStateType(s string) (StateType, error) {
	switch stateType := StateType(s); stateType {
	case "":
		return StateTypeBatch, nil
	case StateTypeBatch, StateTypeStateful, StateTypeStateless:
		return stateType, nil
	}
	return StateTypeBatch, fmt.Errorf("unknown state type %q", s)
}

func (t StateType) IsStreaming() bool {
	return t == StateTypeStateful || t == StateTypeStateless
}

// Worker is a worker process as reported by its discovery record, joined with the
// cluster objects it runs in
type Worker struct {
	ID             string
	AlgorithmName  string
	PodName        string
	JobName        string
	Status         WorkerStatus
	Paused         bool
	Hot            bool
	JobID          string
	TaskID         string
	AlgorithmImage string
	WorkerImage    string
}

// IsJobAttached returns true if the worker is currently executing a task
func (w Worker) IsJobAttached() bool {
	return w.JobID != "" || w.TaskID != ""
}

// IsRegistered returns false for the synthetic workers standing for
// cluster Jobs whose worker did not report any status yet
func (w Worker) IsRegistered() bool {
	return w.PodName != "" && w.Status != ""
}

type AlgorithmTemplate struct {
	Name           string
	Image          string
	Resources      v1.ResourceList
	Env            []v1.EnvVar
	MinHotWorkers  int
	MaxWorkers     *int
	QuotaGuarantee *int
	StateType      StateType
}

func (t AlgorithmTemplate) IsBatch() bool {
	return t.StateType == StateTypeBatch
}

// Request is one unit of demand for a worker of an algorithm
type Request struct {
	AlgorithmName string
	Type          StateType
	Hot           bool
	IsRequisite   bool
}

func NewRequest(algorithmName string, requestType StateType) Request {
	return Request{
		AlgorithmName: algorithmName,
		Type:          requestType,
	}
}

// Versions are the build metadata of the platform, used for resolving the image tags of the workers
type Versions struct {
	SystemVersion string            `json:"systemVersion,omitempty"`
	Images        map[string]string `json:"images,omitempty"`
}

// ImageTag returns the tag of the image identified by key, falling back to the
// system version and then to fallback
func (v Versions) ImageTag(key, fallback string) string {
	if tag, ok := v.Images[key]; ok && tag != "" {
		return tag
	}
	if v.SystemVersion != "" {
		return v.SystemVersion
	}
	return fallback
}

// WithRegistry prefixes image with registry, unless the registry is empty or
// the image already points to it
func WithRegistry(registry, image string) string {
	registry = strings.TrimSuffix(registry, "/")
	if registry == "" || image == "" || strings.HasPrefix(image, registry+"/") {
		return image
	}
	return fmt.Sprintf("%s/%s", registry, image)
}

// WithTag sets tag on image, unless image already has one
func WithTag(image, tag string) string {
	lastSlash := strings.LastIndex(image, "/")
	if strings.Contains(image[lastSlash+1:], ":") || tag == "" {
		return image
	}
	return fmt.Sprintf("%s:%s", image, tag)
}
