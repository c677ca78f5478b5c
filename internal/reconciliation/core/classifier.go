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
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util"
	"github.com/kube-hpc/task-executor/pkg/util/job"
	"github.com/kube-hpc/task-executor/pkg/util/pod"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"strconv"
)

// WorkerCategories is a partition of the workers based on their status
type WorkerCategories struct {
	IdleWorkers      []state.Worker
	ActiveWorkers    []state.Worker
	PausedWorkers    []state.Worker
	PendingWorkers   []state.Worker
	BootstrapWorkers []state.Worker
}

// All returns the workers of every category, in category order
func (c WorkerCategories) All() []state.Worker {
	res := make([]state.Worker, 0, c.Count())
	res = append(res, c.IdleWorkers...)
	res = append(res, c.ActiveWorkers...)
	res = append(res, c.PausedWorkers...)
	res = append(res, c.PendingWorkers...)
	res = append(res, c.BootstrapWorkers...)
	return res
}

func (c WorkerCategories) Count() int {
	return len(c.IdleWorkers) +
		len(c.ActiveWorkers) +
		len(c.PausedWorkers) +
		len(c.PendingWorkers) +
		len(c.BootstrapWorkers)
}

// CountByAlgorithm returns the number of workers of each algorithm across all the categories
func (c WorkerCategories) CountByAlgorithm() map[string]int {
	res := make(map[string]int)
	for _, w := range c.All() {
		res[w.AlgorithmName]++
	}
	return res
}

// CountBatchWorkers returns the number of idle and active workers whose algorithm is batch.
// Workers without a template are not counted.
func (c WorkerCategories) CountBatchWorkers(templates map[string]state.AlgorithmTemplate) int {
	var res int
	isBatch := func(w state.Worker) bool {
		t, ok := templates[w.AlgorithmName]
		return ok && t.IsBatch()
	}
	res += len(util.Filter(c.IdleWorkers, isBatch))
	res += len(util.Filter(c.ActiveWorkers, isBatch))
	return res
}

// Without returns a copy of the categories without the workers matching the predicate
func (c WorkerCategories) Without(exclude func(w state.Worker) bool) WorkerCategories {
	keep := func(w state.Worker) bool {
		return !exclude(w)
	}
	return WorkerCategories{
		IdleWorkers:      util.Filter(c.IdleWorkers, keep),
		ActiveWorkers:    util.Filter(c.ActiveWorkers, keep),
		PausedWorkers:    util.Filter(c.PausedWorkers, keep),
		PendingWorkers:   util.Filter(c.PendingWorkers, keep),
		BootstrapWorkers: util.Filter(c.BootstrapWorkers, keep),
	}
}

// Classification is the outcome of the classification of the workers of a snapshot
type Classification struct {
	NormalizedWorkers  []state.Worker
	WorkerCategories   WorkerCategories
	JobAttachedWorkers []state.Worker
	WorkersToExit      []state.Worker
	WorkersToWarmUp    []state.Worker
	WorkersToCoolDown  []state.Worker
	// MissingHotWorkers is, for each algorithm, the number of hot workers
	// that cannot be obtained by warming up existing workers
	MissingHotWorkers map[string]int
}

// IsExiting returns true if the worker is going to be terminated
func (c Classification) IsExiting(w state.Worker) bool {
	return containsWorker(c.WorkersToExit, w)
}

// ImageSettings are the settings used for resolving the images the workers should run
type ImageSettings struct {
	Registry           string
	DefaultWorkerImage string
}

// WorkerImage returns the worker image the workers created with the provided versions should run
func (s ImageSettings) WorkerImage(versions state.Versions) string {
	image := s.DefaultWorkerImage
	if image == "" {
		image = constant.DefaultWorkerImage
	}
	tag := versions.ImageTag(constant.VersionsImageKeyWorker, constant.DefaultWorkerImageTag)
	return state.WithRegistry(s.Registry, state.WithTag(image, tag))
}

// AlgorithmImage returns the image the workers of the algorithm should run
func (s ImageSettings) AlgorithmImage(template state.AlgorithmTemplate) string {
	return state.WithRegistry(s.Registry, template.Image)
}

type Classifier struct {
	images ImageSettings
}

func NewClassifier(images ImageSettings) Classifier {
	return Classifier{images: images}
}

// Classify normalizes the workers of the snapshot and partitions them into categories,
// computing the workers that should exit, be warmed up or be cooled down.
//
// Inconsistent records never cause failures: a worker whose algorithm has no
// template is considered non-batch without any hot worker policy.
func (c Classifier) Classify(ctx context.Context, snapshot state.Snapshot) Classification {
	logger := log.FromContext(ctx)

	normalized := NormalizeWorkers(ctx, snapshot.Workers, snapshot.Pods)
	extraJobs := FindExtraJobs(normalized, snapshot.Jobs)
	categories := BuildWorkerCategories(normalized, extraJobs)
	jobAttached := util.Filter(normalized, func(w state.Worker) bool {
		return w.IsJobAttached()
	})

	workersToExit := c.findWorkersToExit(categories, snapshot.Templates, snapshot.Versions)
	isExiting := func(w state.Worker) bool {
		return containsWorker(workersToExit, w)
	}
	warmUp, coolDown, missingHot := computeHotWorkersChanges(categories.Without(isExiting), snapshot.Templates)

	logger.V(1).Info(
		"classified workers",
		"workers",
		len(normalized),
		"extraJobs",
		len(extraJobs),
		"idle",
		len(categories.IdleWorkers),
		"active",
		len(categories.ActiveWorkers),
		"paused",
		len(categories.PausedWorkers),
		"pending",
		len(categories.PendingWorkers),
		"bootstrap",
		len(categories.BootstrapWorkers),
	)

	return Classification{
		NormalizedWorkers:  normalized,
		WorkerCategories:   categories,
		JobAttachedWorkers: jobAttached,
		WorkersToExit:      workersToExit,
		WorkersToWarmUp:    warmUp,
		WorkersToCoolDown:  coolDown,
		MissingHotWorkers:  missingHot,
	}
}

// NormalizeWorkers joins the worker records with the Pods they run in, filling the name
// of the Job owning each worker. Workers whose Pod cannot be found are kept as they are.
func NormalizeWorkers(ctx context.Context, workers []state.Worker, pods []v1.Pod) []state.Worker {
	logger := log.FromContext(ctx)
	podsByName := make(map[string]v1.Pod, len(pods))
	for _, p := range pods {
		podsByName[p.Name] = p
	}

	res := make([]state.Worker, 0, len(workers))
	for _, w := range workers {
		p, ok := podsByName[w.PodName]
		if !ok {
			logger.V(1).Info("pod of worker not found", "worker", w.ID, "pod", w.PodName)
			res = append(res, w)
			continue
		}
		if jobName, found := pod.GetJobName(p); found {
			w.JobName = jobName
		}
		if w.AlgorithmName == "" {
			w.AlgorithmName = p.Labels[v1alpha1.LabelAlgorithmName]
		}
		res = append(res, w)
	}
	return res
}

// FindExtraJobs returns a synthetic worker for each running Job that does not have any registered worker.
// These are workers whose creation has been requested but did not report their status yet.
func FindExtraJobs(workers []state.Worker, jobs []batchv1.Job) []state.Worker {
	jobsWithWorker := make(map[string]bool, len(workers))
	for _, w := range workers {
		if w.JobName != "" {
			jobsWithWorker[w.JobName] = true
		}
	}

	res := make([]state.Worker, 0)
	for _, j := range jobs {
		if finished, _ := job.IsFinished(j); finished || jobsWithWorker[j.Name] {
			continue
		}
		hot, _ := strconv.ParseBool(j.Labels[v1alpha1.LabelHotWorker])
		res = append(res, state.Worker{
			AlgorithmName: j.Labels[v1alpha1.LabelAlgorithmName],
			JobName:       j.Name,
			Hot:           hot,
		})
	}
	return res
}

// BuildWorkerCategories assigns each worker to exactly one category. Paused workers
// are paused regardless of their status, while workers without any status are bootstrapping.
// Each extra job becomes a pending worker.
func BuildWorkerCategories(workers []state.Worker, extraJobs []state.Worker) WorkerCategories {
	categories := WorkerCategories{
		IdleWorkers:      make([]state.Worker, 0),
		ActiveWorkers:    make([]state.Worker, 0),
		PausedWorkers:    make([]state.Worker, 0),
		PendingWorkers:   make([]state.Worker, 0, len(extraJobs)),
		BootstrapWorkers: make([]state.Worker, 0),
	}
	for _, w := range workers {
		switch {
		case w.Paused:
			categories.PausedWorkers = append(categories.PausedWorkers, w)
		case w.Status == state.WorkerStatusWorking:
			categories.ActiveWorkers = append(categories.ActiveWorkers, w)
		case w.Status == state.WorkerStatusReady:
			categories.IdleWorkers = append(categories.IdleWorkers, w)
		default:
			categories.BootstrapWorkers = append(categories.BootstrapWorkers, w)
		}
	}
	categories.PendingWorkers = append(categories.PendingWorkers, extraJobs...)
	return categories
}

// findWorkersToExit returns, in order, the workers whose algorithm no longer exists,
// the idle workers running outdated images and the workers exceeding the max workers of their algorithm
func (c Classifier) findWorkersToExit(
	categories WorkerCategories,
	templates map[string]state.AlgorithmTemplate,
	versions state.Versions,
) []state.Worker {
	res := make([]state.Worker, 0)
	exiting := make(map[string]bool)
	markExit := func(w state.Worker) {
		res = append(res, w)
		exiting[w.PodName] = true
	}
	registered := util.Filter(categories.All(), func(w state.Worker) bool {
		return w.IsRegistered()
	})

	// Orphaned workers
	for _, w := range registered {
		if _, ok := templates[w.AlgorithmName]; !ok {
			markExit(w)
		}
	}

	// Outdated workers
	desiredWorkerImage := c.images.WorkerImage(versions)
	for _, w := range registered {
		if exiting[w.PodName] || w.IsJobAttached() {
			continue
		}
		desiredAlgorithmImage := c.images.AlgorithmImage(templates[w.AlgorithmName])
		if isOutdated(w.AlgorithmImage, desiredAlgorithmImage) || isOutdated(w.WorkerImage, desiredWorkerImage) {
			markExit(w)
		}
	}

	// Workers exceeding max workers
	count := make(map[string]int)
	for _, w := range categories.All() {
		if !exiting[w.PodName] {
			count[w.AlgorithmName]++
		}
	}
	surplusCandidates := make([]state.Worker, 0)
	surplusCandidates = append(surplusCandidates, categories.PausedWorkers...)
	surplusCandidates = append(surplusCandidates, categories.IdleWorkers...)
	for _, name := range util.GetSortedKeys(templates) {
		t := templates[name]
		if t.MaxWorkers == nil || count[name] <= *t.MaxWorkers {
			continue
		}
		surplus := count[name] - *t.MaxWorkers
		for _, w := range surplusCandidates {
			if surplus == 0 {
				break
			}
			if w.AlgorithmName != name || w.Hot || w.IsJobAttached() || exiting[w.PodName] {
				continue
			}
			markExit(w)
			surplus--
		}
	}

	return res
}

// computeHotWorkersChanges returns the workers that should become hot, the ones that
// should stop being hot and, for each algorithm, the number of hot workers that
// could not be obtained from the existing workers
func computeHotWorkersChanges(
	categories WorkerCategories,
	templates map[string]state.AlgorithmTemplate,
) ([]state.Worker, []state.Worker, map[string]int) {
	warmUp := make([]state.Worker, 0)
	coolDown := make([]state.Worker, 0)
	missing := make(map[string]int)

	hotCount := make(map[string]int)
	for _, w := range categories.All() {
		if w.Hot {
			hotCount[w.AlgorithmName]++
		}
	}
	// Only registered workers have a Pod that can be relabeled
	candidates := util.Filter(
		concat(categories.IdleWorkers, categories.ActiveWorkers, categories.PausedWorkers, categories.BootstrapWorkers),
		func(w state.Worker) bool {
			_, hasTemplate := templates[w.AlgorithmName]
			return hasTemplate && w.IsRegistered()
		},
	)

	for _, name := range util.GetSortedKeys(templates) {
		deficit := templates[name].MinHotWorkers - hotCount[name]
		for _, w := range candidates {
			if w.AlgorithmName != name {
				continue
			}
			if deficit > 0 && !w.Hot {
				warmUp = append(warmUp, w)
				deficit--
				continue
			}
			if deficit < 0 && w.Hot {
				coolDown = append(coolDown, w)
				deficit++
			}
		}
		if deficit > 0 {
			missing[name] = deficit
		}
	}

	return warmUp, coolDown, missing
}

func isOutdated(observed, desired string) bool {
	return observed != "" && desired != "" && observed != desired
}

// sameWorker compares workers by identity: registered workers by Pod, extra jobs by Job
func sameWorker(w1, w2 state.Worker) bool {
	if w1.PodName != "" || w2.PodName != "" {
		return w1.PodName == w2.PodName
	}
	return w1.JobName == w2.JobName
}

func containsWorker(workers []state.Worker, w state.Worker) bool {
	for _, other := range workers {
		if sameWorker(other, w) {
			return true
		}
	}
	return false
}

func concat[K any](slices ...[]K) []K {
	res := make([]K, 0)
	for _, s := range slices {
		res = append(res, s...)
	}
	return res
}
