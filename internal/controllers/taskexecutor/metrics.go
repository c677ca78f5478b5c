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
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	metricsNamespace = "hkube"
	metricsSubsystem = "task_executor"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of the reconciliation ticks.",
		Buckets:   prometheus.DefBuckets,
	})
	reconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "reconcile_total",
		Help:      "Number of reconciliation ticks, by result.",
	}, []string{"result"})
	capacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "capacity",
		Help:      "Max number of workers that can be requested in a single reconciliation.",
	})
	workers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "workers",
		Help:      "Number of workers, by category.",
	}, []string{"category"})
	batchWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "batch_workers",
		Help:      "Number of idle and active workers of batch algorithms.",
	})
	unmetRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "unmet_requests",
		Help:      "Number of requests left out of the last reconciliation because of capacity.",
	})
	mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "mutations_total",
		Help:      "Number of mutations issued to the cluster, by action and result.",
	}, []string{"action", "result"})
)

func init() {
	metrics.Registry.MustRegister(
		reconcileDuration,
		reconcileTotal,
		capacity,
		workers,
		batchWorkers,
		unmetRequests,
		mutationsTotal,
	)
}

func recordPlan(plan core.Plan, templates map[string]state.AlgorithmTemplate) {
	categories := plan.Classification.WorkerCategories
	workers.WithLabelValues("idle").Set(float64(len(categories.IdleWorkers)))
	workers.WithLabelValues("active").Set(float64(len(categories.ActiveWorkers)))
	workers.WithLabelValues("paused").Set(float64(len(categories.PausedWorkers)))
	workers.WithLabelValues("pending").Set(float64(len(categories.PendingWorkers)))
	workers.WithLabelValues("bootstrap").Set(float64(len(categories.BootstrapWorkers)))
	batchWorkers.Set(float64(categories.CountBatchWorkers(templates)))
	unmetRequests.Set(float64(plan.Unmet))
}

func recordApplyResult(res core.ApplyResult) {
	for action, n := range res.Succeeded {
		mutationsTotal.WithLabelValues(string(action), resultSuccess).Add(float64(n))
	}
	for _, failure := range res.Failed {
		mutationsTotal.WithLabelValues(string(failure.Action), resultError).Inc()
	}
}
