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
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/util"
)

// AdmissionResult is the outcome of the admission of a backlog of requests
type AdmissionResult struct {
	// Requests are the admitted requests, requisites first
	Requests []state.Request
	// Unmet is the number of requests that passed every policy check
	// but were left out because of the capacity limit
	Unmet int
}

// AlgorithmRequisites are the requests reserved for satisfying the quota guarantee of an algorithm
type AlgorithmRequisites struct {
	Required []state.Request
}

// Requisites are the requests reserved for satisfying the quota guarantees
// of the algorithms. Order lists the algorithms in order of first appearance
// in the request stream they were extracted from.
type Requisites struct {
	TotalRequired int
	Algorithms    map[string]*AlgorithmRequisites
	Order         []string
}

func NewRequisites() Requisites {
	return Requisites{
		Algorithms: make(map[string]*AlgorithmRequisites),
		Order:      make([]string, 0),
	}
}

func (r *Requisites) add(request state.Request) {
	algorithmRequisites, ok := r.Algorithms[request.AlgorithmName]
	if !ok {
		algorithmRequisites = &AlgorithmRequisites{Required: make([]state.Request, 0)}
		r.Algorithms[request.AlgorithmName] = algorithmRequisites
		r.Order = append(r.Order, request.AlgorithmName)
	}
	algorithmRequisites.Required = append(algorithmRequisites.Required, request)
	r.TotalRequired++
}

// Admit returns the requests for which new workers should be created, bounded by capacity.
//
// Requests exceeding the max workers of their algorithm are dropped, streaming requests
// come before batch ones and requests needed for satisfying quota guarantees
// come before everything else.
func Admit(
	requests []state.Request,
	templates map[string]state.AlgorithmTemplate,
	categories WorkerCategories,
	capacity int,
) AdmissionResult {
	filtered := FilterByMaxWorkers(templates, requests, categories.All())
	batch, streaming := SplitByType(filtered)
	batch, streaming = PrioritizeQuotaGuaranteeRequests(batch, streaming, templates, categories.CountByAlgorithm())

	prioritized := make([]state.Request, 0, len(filtered))
	prioritized = append(prioritized, streaming...)
	prioritized = append(prioritized, batch...)
	requisites, ordinary := util.Partition(prioritized, func(r state.Request) bool {
		return r.IsRequisite
	})
	prioritized = append(requisites, ordinary...)

	admitted := util.Min(util.Max(capacity, 0), len(prioritized))
	return AdmissionResult{
		Requests: prioritized[:admitted],
		Unmet:    len(prioritized) - admitted,
	}
}

// MatchExisting assigns the requests to the existing workers that can serve them:
// idle, bootstrapping and pending workers first, then paused workers, which need to be resumed.
// It returns the requests left unmatched and the paused workers to resume.
func MatchExisting(requests []state.Request, categories WorkerCategories) ([]state.Request, []state.Worker) {
	available := make(map[string]int)
	for _, w := range concat(categories.IdleWorkers, categories.BootstrapWorkers, categories.PendingWorkers) {
		available[w.AlgorithmName]++
	}
	paused := make(map[string][]state.Worker)
	for _, w := range categories.PausedWorkers {
		paused[w.AlgorithmName] = append(paused[w.AlgorithmName], w)
	}

	unmatched := make([]state.Request, 0)
	toResume := make([]state.Worker, 0)
	for _, r := range requests {
		if available[r.AlgorithmName] > 0 {
			available[r.AlgorithmName]--
			continue
		}
		if candidates := paused[r.AlgorithmName]; len(candidates) > 0 {
			toResume = append(toResume, candidates[0])
			paused[r.AlgorithmName] = candidates[1:]
			continue
		}
		unmatched = append(unmatched, r)
	}
	return unmatched, toResume
}

// FilterByMaxWorkers drops the requests that would make an algorithm exceed its max workers,
// counting the provided existing workers. Algorithms without max workers are not limited.
// Admit passes every categorized worker as existing, not only the job-attached ones,
// so pending and bootstrapping workers count toward the limit too.
func FilterByMaxWorkers(
	templates map[string]state.AlgorithmTemplate,
	requests []state.Request,
	existing []state.Worker,
) []state.Request {
	existingCount := make(map[string]int)
	for _, w := range existing {
		existingCount[w.AlgorithmName]++
	}

	admitted := make(map[string]int)
	res := make([]state.Request, 0, len(requests))
	for _, r := range requests {
		t, ok := templates[r.AlgorithmName]
		if ok && t.MaxWorkers != nil {
			allowed := util.Max(0, *t.MaxWorkers-existingCount[r.AlgorithmName])
			if admitted[r.AlgorithmName] >= allowed {
				continue
			}
		}
		admitted[r.AlgorithmName]++
		res = append(res, r)
	}
	return res
}

// SplitByType returns the batch requests and the streaming requests, where
// stateful requests come before stateless ones
func SplitByType(requests []state.Request) ([]state.Request, []state.Request) {
	batch := make([]state.Request, 0)
	stateful := make([]state.Request, 0)
	stateless := make([]state.Request, 0)
	for _, r := range requests {
		switch r.Type {
		case state.StateTypeStateful:
			stateful = append(stateful, r)
		case state.StateTypeStateless:
			stateless = append(stateless, r)
		default:
			batch = append(batch, r)
		}
	}
	return batch, append(stateful, stateless...)
}

// PrioritizeQuotaGuaranteeRequests moves at the head of the batch and streaming requests
// the ones required for satisfying quota guarantees. The two streams are handled independently.
func PrioritizeQuotaGuaranteeRequests(
	batch []state.Request,
	streaming []state.Request,
	templates map[string]state.AlgorithmTemplate,
	existing map[string]int,
) ([]state.Request, []state.Request) {
	return PrioritizeQuotaRequisite(batch, templates, existing),
		PrioritizeQuotaRequisite(streaming, templates, existing)
}

// PrioritizeQuotaRequisite returns the requests with the requisites of every
// algorithm below its quota guarantee moved at the head and flagged
func PrioritizeQuotaRequisite(
	requests []state.Request,
	templates map[string]state.AlgorithmTemplate,
	existing map[string]int,
) []state.Request {
	requisites, remaining := CreateRequisitesRequests(requests, templates, existing)
	return MergeRequisiteRequests(remaining, requisites)
}

// CreateRequisitesRequests extracts from requests, for each algorithm with a quota guarantee Q
// and E existing workers, up to Q - E requests. It returns the extracted requisites and the
// remaining requests, whose relative order is preserved.
func CreateRequisitesRequests(
	requests []state.Request,
	templates map[string]state.AlgorithmTemplate,
	existing map[string]int,
) (Requisites, []state.Request) {
	requisites := NewRequisites()
	deficits := make(map[string]int)
	for name, t := range templates {
		if t.QuotaGuarantee == nil {
			continue
		}
		if deficit := *t.QuotaGuarantee - existing[name]; deficit > 0 {
			deficits[name] = deficit
		}
	}

	remaining := make([]state.Request, 0, len(requests))
	for _, r := range requests {
		if deficits[r.AlgorithmName] > 0 {
			deficits[r.AlgorithmName]--
			requisites.add(r)
			continue
		}
		remaining = append(remaining, r)
	}
	return requisites, remaining
}

// MergeRequisiteRequests returns the requisites, flagged as such, followed by the provided requests.
// Requisites are grouped by algorithm following the order of the requisites.
func MergeRequisiteRequests(requests []state.Request, requisites Requisites) []state.Request {
	res := make([]state.Request, 0, len(requests)+requisites.TotalRequired)
	for _, name := range requisites.Order {
		for _, r := range requisites.Algorithms[name].Required {
			r.IsRequisite = true
			res = append(res, r)
		}
	}
	for _, r := range requests {
		r.IsRequisite = false
		res = append(res, r)
	}
	return res
}
