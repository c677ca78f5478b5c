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
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/util"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type algorithmBuilder struct {
	v1alpha1.Algorithm
}

func (a *algorithmBuilder) WithImage(image string) *algorithmBuilder {
	a.Algorithm.Spec.AlgorithmImage = image
	return a
}

func (a *algorithmBuilder) WithStateType(stateType string) *algorithmBuilder {
	a.Algorithm.Spec.StateType = stateType
	return a
}

func (a *algorithmBuilder) WithMinHotWorkers(n int32) *algorithmBuilder {
	a.Algorithm.Spec.MinHotWorkers = n
	return a
}

func (a *algorithmBuilder) WithMaxWorkers(n int32) *algorithmBuilder {
	a.Algorithm.Spec.MaxWorkers = util.Int32Addr(n)
	return a
}

func (a *algorithmBuilder) WithQuotaGuarantee(n int32) *algorithmBuilder {
	a.Algorithm.Spec.QuotaGuarantee = util.Int32Addr(n)
	return a
}

func (a *algorithmBuilder) WithCPUMilli(cpuMilli int64) *algorithmBuilder {
	if a.Algorithm.Spec.Resources == nil {
		a.Algorithm.Spec.Resources = make(v1.ResourceList)
	}
	a.Algorithm.Spec.Resources[v1.ResourceCPU] = *resource.NewMilliQuantity(cpuMilli, resource.DecimalSI)
	return a
}

func (a *algorithmBuilder) WithMemory(bytes int64) *algorithmBuilder {
	if a.Algorithm.Spec.Resources == nil {
		a.Algorithm.Spec.Resources = make(v1.ResourceList)
	}
	a.Algorithm.Spec.Resources[v1.ResourceMemory] = *resource.NewQuantity(bytes, resource.BinarySI)
	return a
}

func (a *algorithmBuilder) WithEnv(name, value string) *algorithmBuilder {
	a.Algorithm.Spec.Env = append(a.Algorithm.Spec.Env, v1.EnvVar{Name: name, Value: value})
	return a
}

func (a *algorithmBuilder) Get() v1alpha1.Algorithm {
	return a.Algorithm
}

func BuildAlgorithm(namespace, name string) *algorithmBuilder {
	algorithm := v1alpha1.Algorithm{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Algorithm",
			APIVersion: v1alpha1.GroupVersion.String(),
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
	}
	return &algorithmBuilder{algorithm}
}
