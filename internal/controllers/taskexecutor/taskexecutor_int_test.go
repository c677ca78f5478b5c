//go:build integration

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
	"github.com/kube-hpc/task-executor/internal/reconciliation/kube"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	algorithmfactory "github.com/kube-hpc/task-executor/pkg/factory"
	"github.com/kube-hpc/task-executor/pkg/test/factory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	batchv1 "k8s.io/api/batch/v1"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"time"
)

var _ = Describe("TaskExecutor", func() {
	const (
		timeout  = time.Second * 10
		interval = time.Millisecond * 250
	)

	countJobs := func(algorithmName string, hot bool) func() int {
		return func() int {
			var jobs batchv1.JobList
			err := k8sClient.List(
				ctx,
				&jobs,
				client.InNamespace(testNamespace),
				client.MatchingLabels{v1alpha1.LabelAlgorithmName: algorithmName},
			)
			if err != nil {
				logger.Error(err, "unable to list jobs")
				return -1
			}
			var res int
			for _, job := range jobs.Items {
				if (job.Labels[v1alpha1.LabelHotWorker] == "true") == hot {
					res++
				}
			}
			return res
		}
	}

	When("Algorithms require hot workers and requests are waiting", func() {
		It("Should create the missing workers exactly once", func() {
			By("Creating the algorithms")
			hotAlgorithm := algorithmfactory.BuildAlgorithm(testNamespace, "green-alg").
				WithImage("hkube/green-alg:v1").
				WithMinHotWorkers(2).
				WithCPUMilli(100).
				Get()
			Expect(k8sClient.Create(ctx, &hotAlgorithm)).To(Succeed())
			batchAlgorithm := algorithmfactory.BuildAlgorithm(testNamespace, "yellow-alg").
				WithImage("hkube/yellow-alg:v1").
				WithMaxWorkers(4).
				Get()
			Expect(k8sClient.Create(ctx, &batchAlgorithm)).To(Succeed())

			By("Submitting requests")
			requests := v1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{
					Name:      testRequestsConfigMap,
					Namespace: testNamespace,
				},
				Data: map[string]string{
					constant.ConfigMapKeyRequests: `
- algorithmName: yellow-alg
  requestType: batch
- algorithmName: yellow-alg
  requestType: batch
- algorithmName: yellow-alg
  requestType: batch
- algorithmName: unknown-alg
  requestType: batch
`,
				},
			}
			Expect(k8sClient.Create(ctx, &requests)).To(Succeed())

			By("Checking the hot workers are created")
			Eventually(countJobs("green-alg", true), timeout, interval).Should(Equal(2))

			By("Checking a worker is created for each request")
			Eventually(countJobs("yellow-alg", false), timeout, interval).Should(Equal(3))

			By("Checking no duplicate worker is created by the following reconciliations")
			Consistently(countJobs("green-alg", true), 2*time.Second, interval).Should(Equal(2))
			Consistently(countJobs("yellow-alg", false), 2*time.Second, interval).Should(Equal(3))
			Expect(countJobs("unknown-alg", false)()).To(Equal(0))
		})
	})

	When("A worker belongs to an algorithm that does not exist anymore", func() {
		It("Should delete its Job", func() {
			By("Creating the Job and the Pod of the worker")
			job := kube.BuildJob(testNamespace, core.JobSpec{
				Name:           "black-alg-aaaaa",
				AlgorithmName:  "black-alg",
				AlgorithmImage: "hkube/black-alg:v1",
				WorkerImage:    constant.DefaultWorkerImage,
				StateType:      state.StateTypeBatch,
			})
			Expect(k8sClient.Create(ctx, job)).To(Succeed())
			pod := factory.BuildPod(testNamespace, "black-alg-aaaaa-1").
				WithLabel(v1alpha1.LabelType, constant.LabelValueWorker).
				WithLabel(v1alpha1.LabelAlgorithmName, "black-alg").
				WithLabel(constant.LabelJobName, job.Name).
				WithWorkerStatus(string(state.WorkerStatusReady), false).
				WithContainer(factory.BuildContainer(constant.ContainerNameWorker, constant.DefaultWorkerImage).Get()).
				Get()
			Expect(k8sClient.Create(ctx, &pod)).To(Succeed())

			By("Checking the Job is deleted")
			Eventually(func() bool {
				var instance batchv1.Job
				err := k8sClient.Get(ctx, client.ObjectKeyFromObject(job), &instance)
				return apierrors.IsNotFound(err) || instance.DeletionTimestamp != nil
			}, timeout, interval).Should(BeTrue())
		})
	})
})
