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

package main

import (
	"flag"
	"github.com/kube-hpc/task-executor/internal/controllers/taskexecutor"
	"github.com/kube-hpc/task-executor/internal/reconciliation/core"
	"github.com/kube-hpc/task-executor/internal/reconciliation/kube"
	"github.com/kube-hpc/task-executor/internal/reconciliation/state"
	configv1alpha1 "github.com/kube-hpc/task-executor/pkg/api/hkube.io/config/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/api/hkube.io/v1alpha1"
	"github.com/kube-hpc/task-executor/pkg/constant"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"os"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
	utilruntime.Must(configv1alpha1.AddToScheme(scheme))
}

func main() {
	// Setup CLI args
	var configFile string
	flag.StringVar(&configFile, "config", "",
		"The controller will load its initial configuration from this file. "+
			"Omit this flag to use the default configuration values. "+
			"Command-line flags override configuration from this file.")
	opts := zap.Options{}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	// Load config
	var err error
	options := ctrl.Options{
		Scheme: scheme,
	}
	taskExecutorConfig := configv1alpha1.TaskExecutorConfig{}
	if configFile != "" {
		options, err = options.AndFrom(ctrl.ConfigFile().AtPath(configFile).OfKind(&taskExecutorConfig))
		if err != nil {
			setupLog.Error(err, "unable to load the config file")
			os.Exit(1)
		}
	}
	taskExecutorConfig.FillDefaultValues()
	if err = taskExecutorConfig.Validate(); err != nil {
		setupLog.Error(err, "config is not valid")
		os.Exit(1)
	}
	setupLog.Info(
		"loaded config",
		"namespace",
		taskExecutorConfig.Namespace,
		"reconcileInterval",
		taskExecutorConfig.ReconcileInterval(),
		"initialCapacity",
		taskExecutorConfig.InitialCapacity,
	)
	options.Namespace = taskExecutorConfig.Namespace

	// Setup controller manager
	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), options)
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	// Setup task executor
	images := core.ImageSettings{
		Registry:           taskExecutorConfig.Registry,
		DefaultWorkerImage: taskExecutorConfig.DefaultWorkerImage,
	}
	provider := state.NewKubeProvider(
		mgr.GetAPIReader(),
		taskExecutorConfig.Namespace,
		taskExecutorConfig.RequestsConfigMap,
		taskExecutorConfig.VersionsConfigMap,
	)
	actuator := core.NewActuator(
		kube.NewOrchestrator(mgr.GetClient(), taskExecutorConfig.Namespace),
		taskExecutorConfig.MaxConcurrentMutations,
		wait.Backoff{
			Steps:    taskExecutorConfig.MutationRetries,
			Duration: taskExecutorConfig.MutationRetryDelay(),
			Factor:   2.0,
			Jitter:   0.1,
		},
	)
	taskExecutor := taskexecutor.NewTaskExecutor(
		provider,
		core.NewPlanner(images),
		actuator,
		core.NewThrottle(taskExecutorConfig.InitialCapacity),
		taskExecutorConfig.ReconcileInterval(),
	)
	if err = mgr.Add(taskExecutor); err != nil {
		setupLog.Error(
			err,
			"unable to create controller",
			"controller",
			constant.TaskExecutorControllerName,
		)
		os.Exit(1)
	}

	// Setup health checks
	if err = mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err = mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	// Start controller manager
	setupLog.Info("starting manager")
	if err = mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
