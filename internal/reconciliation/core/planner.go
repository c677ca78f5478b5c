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
	"fmt"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util"
	"github.com/kube-hpc/task-executor/pkg/util/pod"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"strings"
)

// maxJobNamePrefixLength keeps Job names within the 63 characters allowed for label values
const maxJobNamePrefixLength = 63 - constant.WorkerJobNameRandomSuffixLength - 1

// Plan is the set of mutations that bring the cluster closer to the desired state
type Plan struct {
	Create   []JobSpec
	Exit     []state.Worker
	WarmUp   []state.Worker
	CoolDown []state.Worker
	Resume   []state.Worker

	Classification       Classification
	Unmet                int
	UnschedulableWorkers int
}

// IsEmpty returns true if the plan does not contain any mutation
func (p Plan) IsEmpty() bool {
	return len(p.Create)+len(p.Exit)+len(p.WarmUp)+len(p.CoolDown)+len(p.Resume) == 0
}

// CapacityDelta returns the pressure observed while planning: negative when
// the cluster cannot schedule the workers already requested, otherwise the
// number of requests left out because of capacity
func (p Plan) CapacityDelta() int {
	if p.UnschedulableWorkers > 0 {
		return -p.UnschedulableWorkers
	}
	return p.Unmet
}

type planner struct {
	classifier Classifier
	images     ImageSettings
}

func NewPlanner(images ImageSettings) Planner {
	return planner{
		classifier: NewClassifier(images),
		images:     images,
	}
}

func (p planner) Plan(ctx context.Context, snapshot state.Snapshot, capacity int) Plan {
	logger := log.FromContext(ctx)
	logger.V(1).Info("planning reconciliation", "requests", len(snapshot.Requests), "capacity", capacity)

	classification := p.classifier.Classify(ctx, snapshot)
	categories := classification.WorkerCategories.Without(classification.IsExiting)

	requests := util.Filter(snapshot.Requests, func(r state.Request) bool {
		if _, ok := snapshot.Templates[r.AlgorithmName]; !ok {
			logger.V(1).Info("dropping request of unknown algorithm", "algorithm", r.AlgorithmName)
			return false
		}
		return true
	})
	unmatched, toResume := MatchExisting(requests, categories)
	unmatched = append(unmatched, hotWorkerRequests(classification.MissingHotWorkers, snapshot.Templates)...)
	admission := Admit(unmatched, snapshot.Templates, categories, capacity)

	create := make([]JobSpec, 0, len(admission.Requests))
	workerImage := p.images.WorkerImage(snapshot.Versions)
	for _, r := range admission.Requests {
		t := snapshot.Templates[r.AlgorithmName]
		create = append(create, JobSpec{
			Name:           newJobName(r.AlgorithmName),
			AlgorithmName:  r.AlgorithmName,
			AlgorithmImage: p.images.AlgorithmImage(t),
			WorkerImage:    workerImage,
			Resources:      t.Resources,
			Env:            t.Env,
			StateType:      t.StateType,
			Hot:            r.Hot,
		})
	}

	unschedulable := 0
	for _, workerPod := range snapshot.Pods {
		if pod.IsWaitingForResources(workerPod) {
			unschedulable++
		}
	}

	plan := Plan{
		Create:               create,
		Exit:                 classification.WorkersToExit,
		WarmUp:               classification.WorkersToWarmUp,
		CoolDown:             classification.WorkersToCoolDown,
		Resume:               toResume,
		Classification:       classification,
		Unmet:                admission.Unmet,
		UnschedulableWorkers: unschedulable,
	}
	logger.V(1).Info(
		"reconciliation planned",
		"create",
		len(plan.Create),
		"exit",
		len(plan.Exit),
		"warmUp",
		len(plan.WarmUp),
		"coolDown",
		len(plan.CoolDown),
		"resume",
		len(plan.Resume),
		"unmet",
		plan.Unmet,
	)
	return plan
}

// hotWorkerRequests returns one hot request for each hot worker that has to be created
func hotWorkerRequests(missing map[string]int, templates map[string]state.AlgorithmTemplate) []state.Request {
	res := make([]state.Request, 0)
	names := maps.Keys(missing)
	slices.Sort(names)
	for _, name := range names {
		for i := 0; i < missing[name]; i++ {
			r := state.NewRequest(name, templates[name].StateType)
			r.Hot = true
			res = append(res, r)
		}
	}
	return res
}

// newJobName returns a unique name for a Job running a worker of the algorithm
func newJobName(algorithmName string) string {
	prefix := algorithmName
	if len(prefix) > maxJobNamePrefixLength {
		prefix = strings.TrimRight(prefix[:maxJobNamePrefixLength], "-.")
	}
	return fmt.Sprintf("%s-%s", prefix, util.RandomStringLowercase(constant.WorkerJobNameRandomSuffixLength))
}
