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

import (
	"errors"
	"fmt"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	cfg "sigs.k8s.io/controller-runtime/pkg/config/v1alpha1"
	"time"
)

// +kubebuilder:object:root=true

// TaskExecutorConfig is the configuration of the task executor.
//
// Namespace is where worker Jobs, Algorithms and the backlog live. InitialCapacity is the
// number of workers that can be requested in the first reconciliation tick. Registry is the
// prefix prepended to the images of the workers.
type TaskExecutorConfig struct {
	metav1.TypeMeta                        `json:",inline"`
	cfg.ControllerManagerConfigurationSpec `json:",inline"`
	Namespace                              string        `json:"namespace,omitempty"`
	ReconcileIntervalSeconds               time.Duration `json:"reconcileIntervalSeconds,omitempty"`
	InitialCapacity                        int           `json:"initialCapacity,omitempty"`
	MaxConcurrentMutations                 int           `json:"maxConcurrentMutations,omitempty"`
	MutationRetries                        int           `json:"mutationRetries,omitempty"`
	MutationRetryDelayMillis               time.Duration `json:"mutationRetryDelayMillis,omitempty"`
	Registry                               string        `json:"registry,omitempty"`
	RequestsConfigMap                      string        `json:"requestsConfigMap,omitempty"`
	VersionsConfigMap                      string        `json:"versionsConfigMap,omitempty"`
	DefaultWorkerImage                     string        `json:"defaultWorkerImage,omitempty"`
}

func (c *TaskExecutorConfig) FillDefaultValues() {
	if c.Namespace == "" {
		c.Namespace = util.GetEnv(constant.EnvVarNamespace, constant.DefaultNamespace)
	}
	if c.ReconcileIntervalSeconds == 0 {
		c.ReconcileIntervalSeconds = constant.DefaultReconcileInterval / time.Second
	}
	if c.InitialCapacity == 0 {
		c.InitialCapacity = constant.DefaultInitialCapacity
	}
	if c.MaxConcurrentMutations == 0 {
		c.MaxConcurrentMutations = constant.DefaultMaxConcurrentMutations
	}
	if c.MutationRetries == 0 {
		c.MutationRetries = constant.DefaultMutationRetries
	}
	if c.MutationRetryDelayMillis == 0 {
		c.MutationRetryDelayMillis = constant.DefaultMutationRetryDelay / time.Millisecond
	}
	if c.RequestsConfigMap == "" {
		c.RequestsConfigMap = constant.DefaultRequestsConfigMapName
	}
	if c.VersionsConfigMap == "" {
		c.VersionsConfigMap = constant.DefaultVersionsConfigMapName
	}
	if c.DefaultWorkerImage == "" {
		c.DefaultWorkerImage = constant.DefaultWorkerImage
	}
}

func (c *TaskExecutorConfig) Validate() error {
	if c.ReconcileIntervalSeconds <= 0 {
		return errors.New("reconcileIntervalSeconds must be greater than 0")
	}
	if c.InitialCapacity < constant.MinCapacity || c.InitialCapacity > constant.MaxCapacity {
		return fmt.Errorf(
			"initialCapacity must be between %d and %d",
			constant.MinCapacity,
			constant.MaxCapacity,
		)
	}
	if c.MaxConcurrentMutations <= 0 {
		return errors.New("maxConcurrentMutations must be greater than 0")
	}
	if c.MutationRetries <= 0 {
		return errors.New("mutationRetries must be greater than 0")
	}
	if c.MutationRetryDelayMillis <= 0 {
		return errors.New("mutationRetryDelayMillis must be greater than 0")
	}
	if c.Namespace == "" {
		return errors.New("namespace cannot be empty")
	}
	return nil
}

// ReconcileInterval returns the period between two reconciliation ticks
func (c *TaskExecutorConfig) ReconcileInterval() time.Duration {
	return c.ReconcileIntervalSeconds * time.Second
}

// MutationRetryDelay returns the delay before the first retry of a failed mutation
func (c *TaskExecutorConfig) MutationRetryDelay() time.Duration {
	return c.MutationRetryDelayMillis * time.Millisecond
}

func init() {
	SchemeBuilder.Register(&TaskExecutorConfig{})
}
