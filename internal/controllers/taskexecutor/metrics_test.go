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
	"errors"
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/test/factory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestRecordPlan(t *testing.T) {
	categories := core.BuildWorkerCategories(
		[]state.Worker{
			factory.BuildWorker("w-1", "alg-1").Get(),
			factory.BuildWorker("w-2", "alg-1").WithStatus(state.WorkerStatusWorking).Get(),
			factory.BuildWorker("w-3", "alg-2").Paused().Get(),
		},
		[]state.Worker{{AlgorithmName: "alg-2", JobName: "alg-2-aaaaa"}},
	)
	plan := core.Plan{
		Classification: core.Classification{WorkerCategories: categories},
		Unmet:          4,
	}

	recordPlan(plan, factory.BuildTemplates(factory.BuildTemplate("alg-1").Get()))

	assert.Equal(t, float64(1), testutil.ToFloat64(workers.WithLabelValues("idle")))
	assert.Equal(t, float64(1), testutil.ToFloat64(workers.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(workers.WithLabelValues("paused")))
	assert.Equal(t, float64(1), testutil.ToFloat64(workers.WithLabelValues("pending")))
	assert.Equal(t, float64(0), testutil.ToFloat64(workers.WithLabelValues("bootstrap")))
	assert.Equal(t, float64(2), testutil.ToFloat64(batchWorkers))
	assert.Equal(t, float64(4), testutil.ToFloat64(unmetRequests))
}

func TestRecordApplyResult(t *testing.T) {
	before := testutil.ToFloat64(mutationsTotal.WithLabelValues(string(core.MutationActionCreate), resultSuccess))
	beforeFailed := testutil.ToFloat64(mutationsTotal.WithLabelValues(string(core.MutationActionResume), resultError))

	recordApplyResult(core.ApplyResult{
		Succeeded: map[core.MutationAction]int{core.MutationActionCreate: 3},
		Failed: []core.MutationError{
			{Action: core.MutationActionResume, Target: "pd-1", Err: errors.New("boom")},
		},
	})

	assert.Equal(t, before+3, testutil.ToFloat64(mutationsTotal.WithLabelValues(string(core.MutationActionCreate), resultSuccess)))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(mutationsTotal.WithLabelValues(string(core.MutationActionResume), resultError)))
}
