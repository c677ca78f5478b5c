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
	"context"
	"fmt"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util/pod"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"
)

type Provider interface {
	GetSnapshot(ctx context.Context) (Snapshot, error)
}

type backlogEntry struct {
	AlgorithmName string `json:"algorithmName"`
	RequestType   string `json:"requestType,omitempty"`
}

// KubeProvider reads the state of the workers from the objects stored in the cluster.
// The reader should not be backed by a cache: Jobs created in a tick must be
// visible to the next one, otherwise they would be created again.
type KubeProvider struct {
	client.Reader
	namespace         string
	requestsConfigMap string
	versionsConfigMap string
}

func NewKubeProvider(reader client.Reader, namespace, requestsConfigMap, versionsConfigMap string) KubeProvider {
	return KubeProvider{
		Reader:            reader,
		namespace:         namespace,
		requestsConfigMap: requestsConfigMap,
		versionsConfigMap: versionsConfigMap,
	}
}

func (p KubeProvider) GetSnapshot(ctx context.Context) (Snapshot, error) {
	logger := log.FromContext(ctx)
	workerSelector := client.MatchingLabels{v1alpha1.LabelType: constant.LabelValueWorker}

	var jobList batchv1.JobList
	if err := p.List(ctx, &jobList, client.InNamespace(p.namespace), workerSelector); err != nil {
		return Snapshot{}, fmt.Errorf("unable to list worker jobs: %w", err)
	}
	var podList v1.PodList
	if err := p.List(ctx, &podList, client.InNamespace(p.namespace), workerSelector); err != nil {
		return Snapshot{}, fmt.Errorf("unable to list worker pods: %w", err)
	}
	var algorithmList v1alpha1.AlgorithmList
	if err := p.List(ctx, &algorithmList, client.InNamespace(p.namespace)); err != nil {
		return Snapshot{}, fmt.Errorf("unable to list algorithms: %w", err)
	}

	var workers = make([]Worker, 0, len(podList.Items))
	for _, workerPod := range podList.Items {
		// a terminated pod no longer hosts a worker, even if its annotations say otherwise
		if pod.IsTerminated(workerPod) {
			continue
		}
		worker, registered, err := NewWorkerFromPod(workerPod)
		if err != nil {
			logger.Error(err, "invalid worker record, treating worker as bootstrapping")
		}
		if registered {
			workers = append(workers, worker)
		}
	}

	var templates = make(map[string]AlgorithmTemplate, len(algorithmList.Items))
	for _, algorithm := range algorithmList.Items {
		template, err := NewAlgorithmTemplate(algorithm)
		if err != nil {
			logger.Error(err, "invalid algorithm template, defaulting to batch")
		}
		templates[template.Name] = template
	}

	requests, err := p.getRequests(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	versions, err := p.getVersions(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Workers:   workers,
		Jobs:      jobList.Items,
		Pods:      podList.Items,
		Templates: templates,
		Requests:  requests,
		Versions:  versions,
	}, nil
}

func (p KubeProvider) getRequests(ctx context.Context) ([]Request, error) {
	logger := log.FromContext(ctx)
	var entries []backlogEntry
	found, err := p.decodeConfigMap(ctx, p.requestsConfigMap, constant.ConfigMapKeyRequests, &entries)
	if err != nil {
		return nil, fmt.Errorf("unable to read the requests backlog: %w", err)
	}
	if !found {
		logger.V(1).Info("requests backlog not found, assuming it is empty", "configMap", p.requestsConfigMap)
	}

	var requests = make([]Request, 0, len(entries))
	for _, e := range entries {
		if e.AlgorithmName == "" {
			logger.Info("skipping request without algorithm name")
			continue
		}
		requestType, err := ParseStateType(e.RequestType)
		if err != nil {
			logger.Error(err, "skipping request", "algorithm", e.AlgorithmName)
			continue
		}
		requests = append(requests, NewRequest(e.AlgorithmName, requestType))
	}
	return requests, nil
}

func (p KubeProvider) getVersions(ctx context.Context) (Versions, error) {
	var versions Versions
	if _, err := p.decodeConfigMap(ctx, p.versionsConfigMap, constant.ConfigMapKeyVersions, &versions); err != nil {
		return Versions{}, fmt.Errorf("unable to read versions: %w", err)
	}
	return versions, nil
}

// decodeConfigMap unmarshals the value of the key of the ConfigMap into out.
// It returns false if either the ConfigMap or the key do not exist.
func (p KubeProvider) decodeConfigMap(ctx context.Context, name, key string, out interface{}) (bool, error) {
	var cm v1.ConfigMap
	if err := p.Get(ctx, client.ObjectKey{Namespace: p.namespace, Name: name}, &cm); err != nil {
		return false, client.IgnoreNotFound(err)
	}
	data, ok := cm.Data[key]
	if !ok {
		return false, nil
	}
	if err := yaml.Unmarshal([]byte(data), out); err != nil {
		return true, fmt.Errorf("configmap %s/%s, key %s: %w", p.namespace, name, key, err)
	}
	return true, nil
}
