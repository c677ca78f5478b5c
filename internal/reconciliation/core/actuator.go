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
	"errors"
	"fmt"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"golang.org/x/sync/errgroup"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilnet "k8s.io/apimachinery/pkg/util/net"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

type MutationAction string

const (
	MutationActionCreate   MutationAction = "create"
	MutationActionDelete   MutationAction = "delete"
	MutationActionWarmUp   MutationAction = "warm-up"
	MutationActionCoolDown MutationAction = "cool-down"
	MutationActionResume   MutationAction = "resume"
)

var ErrMissingJobName = errors.New("worker is not associated to any job")

// MutationError is the failure of a single mutation of a plan
type MutationError struct {
	Action        MutationAction
	AlgorithmName string
	Target        string
	Err           error
}

func (e MutationError) Error() string {
	return fmt.Sprintf("%s %s (algorithm %s): %v", e.Action, e.Target, e.AlgorithmName, e.Err)
}

func (e MutationError) Unwrap() error {
	return e.Err
}

// ApplyResult summarizes the outcome of the mutations of a plan
type ApplyResult struct {
	Succeeded map[MutationAction]int
	Failed    []MutationError
}

func (r ApplyResult) SucceededCount() int {
	var res int
	for _, n := range r.Succeeded {
		res += n
	}
	return res
}

type mutation struct {
	action        MutationAction
	algorithmName string
	target        string
	apply         func(ctx context.Context) error
}

type actuator struct {
	orchestrator   Orchestrator
	maxConcurrency int
	backoff        wait.Backoff
}

// NewActuator returns an Actuator applying at most maxConcurrency mutations at the same time.
// Mutations failing with transient errors are retried according to backoff.
// Every mutation is attempted at least once, whatever the number of steps of backoff.
func NewActuator(orchestrator Orchestrator, maxConcurrency int, backoff wait.Backoff) Actuator {
	if backoff.Steps < 1 {
		backoff.Steps = 1
	}
	return actuator{
		orchestrator:   orchestrator,
		maxConcurrency: maxConcurrency,
		backoff:        backoff,
	}
}

// Apply issues the mutations of the plan. A failed mutation never prevents the other
// ones from being applied: failures are collected in the result and left to the next reconciliation.
func (a actuator) Apply(ctx context.Context, plan Plan) ApplyResult {
	logger := log.FromContext(ctx)
	mutations := a.buildMutations(plan)
	if len(mutations) == 0 {
		logger.V(1).Info("plan is empty, nothing to do")
		return ApplyResult{Succeeded: map[MutationAction]int{}, Failed: []MutationError{}}
	}
	logger.Info("applying plan", "mutations", len(mutations))

	errs := make([]error, len(mutations))
	g := errgroup.Group{}
	if a.maxConcurrency > 0 {
		g.SetLimit(a.maxConcurrency)
	}
	for i, m := range mutations {
		i, m := i, m
		g.Go(func() error {
			errs[i] = a.applyWithRetry(ctx, m)
			return nil
		})
	}
	_ = g.Wait()

	result := ApplyResult{Succeeded: map[MutationAction]int{}, Failed: []MutationError{}}
	for i, m := range mutations {
		if errs[i] == nil {
			result.Succeeded[m.action]++
			continue
		}
		logger.Error(errs[i], "mutation failed", "action", m.action, "algorithm", m.algorithmName, "target", m.target)
		result.Failed = append(result.Failed, MutationError{
			Action:        m.action,
			AlgorithmName: m.algorithmName,
			Target:        m.target,
			Err:           errs[i],
		})
	}
	logger.Info("plan applied", "succeeded", result.SucceededCount(), "failed", len(result.Failed))
	return result
}

func (a actuator) applyWithRetry(ctx context.Context, m mutation) error {
	var attempts int
	err := retry.OnError(
		a.backoff,
		func(err error) bool {
			return ctx.Err() == nil && IsRetriable(err)
		},
		func() error {
			attempts++
			return m.apply(ctx)
		},
	)
	if err == nil && attempts > 1 {
		log.FromContext(ctx).V(1).Info("mutation succeeded after retry", "action", m.action, "target", m.target, "attempts", attempts)
	}
	return err
}

// buildMutations returns the mutations of the plan. Terminations come first so
// that their resources are released as soon as possible.
func (a actuator) buildMutations(plan Plan) []mutation {
	res := make([]mutation, 0)
	for _, w := range plan.Exit {
		w := w
		res = append(res, mutation{
			action:        MutationActionDelete,
			algorithmName: w.AlgorithmName,
			target:        w.JobName,
			apply: func(ctx context.Context) error {
				if w.JobName == "" {
					return fmt.Errorf("worker %s: %w", w.ID, ErrMissingJobName)
				}
				return a.orchestrator.DeleteJob(ctx, w.JobName)
			},
		})
	}
	res = append(res, a.hotWorkerMutations(plan.CoolDown, MutationActionCoolDown, false)...)
	res = append(res, a.hotWorkerMutations(plan.WarmUp, MutationActionWarmUp, true)...)
	for _, w := range plan.Resume {
		w := w
		res = append(res, mutation{
			action:        MutationActionResume,
			algorithmName: w.AlgorithmName,
			target:        w.PodName,
			apply: func(ctx context.Context) error {
				return a.orchestrator.ResumeWorker(ctx, w.PodName)
			},
		})
	}
	for _, spec := range plan.Create {
		spec := spec
		res = append(res, mutation{
			action:        MutationActionCreate,
			algorithmName: spec.AlgorithmName,
			target:        spec.Name,
			apply: func(ctx context.Context) error {
				return a.orchestrator.CreateJob(ctx, spec)
			},
		})
	}
	return res
}

func (a actuator) hotWorkerMutations(workers []state.Worker, action MutationAction, hot bool) []mutation {
	res := make([]mutation, 0, len(workers))
	for _, w := range workers {
		w := w
		res = append(res, mutation{
			action:        action,
			algorithmName: w.AlgorithmName,
			target:        w.PodName,
			apply: func(ctx context.Context) error {
				return a.orchestrator.SetHotWorker(ctx, w.PodName, hot)
			},
		})
	}
	return res
}

// IsRetriable returns true if err is a transient failure of the API server
// that is worth retrying within the same reconciliation
func IsRetriable(err error) bool {
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsInternalError(err) ||
		apierrors.IsConflict(err) ||
		utilnet.IsConnectionRefused(err) ||
		utilnet.IsConnectionReset(err)
}
