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

package pod

import (
	"github.com/kube-hpc/task-executor/pkg/constant"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var jobGVK = schema.GroupVersionKind{
	Group:   "batch",
	Version: "v1",
	Kind:    "Job",
}

func IsScheduled(pod v1.Pod) bool {
	return pod.Spec.NodeName != ""
}

func IsPreempting(pod v1.Pod) bool {
	return pod.Status.NominatedNodeName != ""
}

func IsUnschedulable(pod v1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == v1.PodScheduled && condition.Reason == v1.PodReasonUnschedulable {
			return true
		}
	}
	return false
}

// IsWaitingForResources returns true if the Pod cannot be placed on any node
// and the scheduler is not preempting other pods to make room for it
func IsWaitingForResources(pod v1.Pod) bool {
	return !IsScheduled(pod) &&
		IsUnschedulable(pod) &&
		!IsPreempting(pod)
}

func IsTerminated(pod v1.Pod) bool {
	return pod.Status.Phase == v1.PodSucceeded || pod.Status.Phase == v1.PodFailed
}

func IsOwnedBy(pod v1.Pod, gvk schema.GroupVersionKind) bool {
	_, ok := getOwnerName(pod, gvk)
	return ok
}

func getOwnerName(pod v1.Pod, gvk schema.GroupVersionKind) (string, bool) {
	for _, owner := range pod.ObjectMeta.OwnerReferences {
		if owner.APIVersion == gvk.GroupVersion().String() && owner.Kind == gvk.Kind {
			return owner.Name, true
		}
	}
	return "", false
}

// GetJobName returns the name of the Job owning the Pod, looking first at the
// owner references and then at the label set by the Job controller
func GetJobName(pod v1.Pod) (string, bool) {
	if name, ok := getOwnerName(pod, jobGVK); ok {
		return name, true
	}
	if name, ok := pod.Labels[constant.LabelJobName]; ok && name != "" {
		return name, true
	}
	return "", false
}
