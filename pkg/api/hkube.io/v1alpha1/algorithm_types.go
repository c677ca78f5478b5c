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
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// +kubebuilder:object:root=true
// +kubebuilder:resource:shortName=alg
// +kubebuilder:printcolumn:name="Image",type=string,JSONPath=`.spec.algorithmImage`
// +kubebuilder:printcolumn:name="MinHotWorkers",type=integer,JSONPath=`.spec.minHotWorkers`
// +kubebuilder:printcolumn:name="MaxWorkers",type=integer,JSONPath=`.spec.maxWorkers`
// +kubebuilder:printcolumn:name="QuotaGuarantee",type=integer,JSONPath=`.spec.quotaGuarantee`

// Algorithm is the template the task executor uses for creating the workers of an algorithm.
// The name of the resource is the name of the algorithm.
type Algorithm struct {
	metav1.TypeMeta `json:",inline"`

	// Standard object's metadata.
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// AlgorithmSpec defines the resources and the worker policy of the algorithm.
	// +optional
	Spec AlgorithmSpec `json:"spec,omitempty"`
}

// AlgorithmSpec defines the resources and the worker policy of the algorithm.
type AlgorithmSpec struct {
	// AlgorithmImage is the image run by the algorunner container of each worker.
	AlgorithmImage string `json:"algorithmImage"`

	// Resources is the set of resources requested by the algorunner container.
	// +optional
	Resources v1.ResourceList `json:"resources,omitempty"`

	// MinHotWorkers is the number of workers kept alive between tasks.
	// +kubebuilder:validation:Minimum=0
	// +optional
	MinHotWorkers int32 `json:"minHotWorkers,omitempty"`

	// MaxWorkers caps the number of workers of the algorithm. Unlimited when omitted.
	// +kubebuilder:validation:Minimum=0
	// +optional
	MaxWorkers *int32 `json:"maxWorkers,omitempty"`

	// QuotaGuarantee is the number of workers the algorithm obtains before the
	// requests of other algorithms are served.
	// +kubebuilder:validation:Minimum=0
	// +optional
	QuotaGuarantee *int32 `json:"quotaGuarantee,omitempty"`

	// StateType is the execution model of the algorithm. Defaults to batch.
	// +kubebuilder:validation:Enum=batch;stateful;stateless
	// +optional
	StateType string `json:"stateType,omitempty"`

	// Env is the list of environment variables injected in the algorunner container.
	// +optional
	Env []v1.EnvVar `json:"env,omitempty"`
}

// +kubebuilder:object:root=true

// AlgorithmList is a list of Algorithm items.
type AlgorithmList struct {
	metav1.TypeMeta `json:",inline"`

	// Standard list metadata.
	// +optional
	metav1.ListMeta `json:"metadata,omitempty"`

	// Items is a list of Algorithm objects.
	Items []Algorithm `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Algorithm{}, &AlgorithmList{})
}
