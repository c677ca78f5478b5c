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

package taskexecutor

import (
	"context"
	"errors"
	"fmt"
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sync"
	"time"
)

var (
	ErrSnapshot       = errors.New("unable to read cluster state")
	ErrTickInProgress = errors.New("reconciliation already in progress")
)

// SnapshotError is returned when the cluster state cannot be read. It matches ErrSnapshot
// and unwraps to the underlying error.
type SnapshotError struct {
	Err error
}

func (e SnapshotError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSnapshot, e.Err)
}

func (e SnapshotError) Unwrap() error {
	return e.Err
}

func (e SnapshotError) Is(target error) bool {
	return target == ErrSnapshot
}

var (
	_ manager.Runnable               = &TaskExecutor{}
	_ manager.LeaderElectionRunnable = &TaskExecutor{}
)

// TickResult is the outcome of a reconciliation tick
type TickResult struct {
	Plan     core.Plan
	Applied  core.ApplyResult
	Capacity int
}

// TaskExecutor periodically reconciles the workers running on the cluster
// with the outstanding requests and the algorithm templates
type TaskExecutor struct {
	provider state.Provider
	planner  core.Planner
	actuator core.Actuator
	throttle *core.Throttle
	interval time.Duration

	// tickMtx prevents ticks from overlapping
	tickMtx sync.Mutex
}

func NewTaskExecutor(
	provider state.Provider,
	planner core.Planner,
	actuator core.Actuator,
	throttle *core.Throttle,
	interval time.Duration,
) *TaskExecutor {
	return &TaskExecutor{
		provider: provider,
		planner:  planner,
		actuator: actuator,
		throttle: throttle,
		interval: interval,
	}
}

//+kubebuilder:rbac:groups=batch,resources=jobs,verbs=get;list;watch;create;delete
//+kubebuilder:rbac:groups=core,resources=pods,verbs=get;list;watch;patch
//+kubebuilder:rbac:groups=core,resources=configmaps,verbs=get;list;watch
//+kubebuilder:rbac:groups=hkube.io,resources=algorithms,verbs=get;list;watch

// Start runs a reconciliation tick every interval until ctx is done
func (t *TaskExecutor) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName(constant.TaskExecutorControllerName)
	ctx = log.IntoContext(ctx, logger)
	logger.Info("starting task executor", "interval", t.interval, "capacity", t.throttle.Capacity())
	capacity.Set(float64(t.throttle.Capacity()))

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if _, err := t.Tick(ctx); err != nil {
			logger.Error(err, "reconciliation failed")
		}
	}, t.interval)

	logger.Info("task executor stopped")
	return nil
}

// NeedLeaderElection makes only one replica at a time mutate the cluster
func (t *TaskExecutor) NeedLeaderElection() bool {
	return true
}

// Tick runs a single reconciliation: it reads the state of the cluster, plans the mutations
// and applies them, finally updating the capacity of the throttle.
//
// If the state of the cluster cannot be read the tick is aborted without changing the capacity.
// Ticks never overlap: calling Tick while another tick is running returns ErrTickInProgress.
func (t *TaskExecutor) Tick(ctx context.Context) (TickResult, error) {
	if !t.tickMtx.TryLock() {
		reconcileTotal.WithLabelValues(resultSkipped).Inc()
		return TickResult{}, ErrTickInProgress
	}
	defer t.tickMtx.Unlock()

	logger := log.FromContext(ctx)
	start := time.Now()
	defer func() {
		reconcileDuration.Observe(time.Since(start).Seconds())
	}()

	snapshot, err := t.provider.GetSnapshot(ctx)
	if err != nil {
		reconcileTotal.WithLabelValues(resultError).Inc()
		return TickResult{}, SnapshotError{Err: err}
	}

	plan := t.planner.Plan(ctx, snapshot, t.throttle.Capacity())
	recordPlan(plan, snapshot.Templates)

	applied := t.actuator.Apply(ctx, plan)
	recordApplyResult(applied)

	newCapacity := t.throttle.UpdateCapacity(plan.CapacityDelta())
	capacity.Set(float64(newCapacity))
	reconcileTotal.WithLabelValues(resultSuccess).Inc()

	logger.V(1).Info(
		"reconciliation completed",
		"duration",
		time.Since(start),
		"mutations",
		applied.SucceededCount(),
		"failedMutations",
		len(applied.Failed),
		"capacity",
		newCapacity,
	)
	return TickResult{
		Plan:     plan,
		Applied:  applied,
		Capacity: newCapacity,
	}, nil
}
