// Copyright 2025 Tetrate
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/tetratelabs/log"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/signal"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/authz"
	"github.com/istio-ecosystem/avp-authz/internal/server"
)

func main() {
	var (
		lifecycle   = run.NewLifecycle()
		localConfig = &internal.LocalConfig{RequirePolicyStore: true}
		logging     = internal.NewLogSystem(log.New(), &localConfig.Config)
		metrics     = internal.NewMetrics()
		authorizer  = authz.NewUnit(lifecycle.Context(), &localConfig.Config, authz.WithMetrics(metrics))
		envoyAuthz  = server.NewExtAuthZFilter(authorizer)
		grpcServer  = server.New(&localConfig.Config, envoyAuthz.Register)
		httpServer  = server.NewHTTPServer(&localConfig.Config, authorizer)
		healthz     = server.NewHealthServer(&localConfig.Config, metrics)
	)

	configLog := run.NewPreRunner("config-log", func() error {
		cfgLog := internal.Logger(internal.Default)
		if cfgLog.Level() == telemetry.LevelDebug {
			cfgLog.Debug("configuration loaded", "config", internal.ConfigToJSONString(&localConfig.Config))
		}
		return nil
	})

	g := run.Group{Logger: internal.Logger(internal.Default)}

	g.Register(
		lifecycle,         // manage the lifecycle of the run.Services
		localConfig,       // load the configuration
		logging,           // Set up the logging system
		configLog,         // log the configuration
		authorizer,        // create the policy engine client
		grpcServer,        // start the Envoy ext-authz server
		httpServer,        // start the raw HTTP ext-authz server
		healthz,           // start the health server
		&signal.Handler{}, // handle graceful termination
	)

	if err := g.Run(); err != nil {
		fmt.Printf("Unexpected exit: %v\n", err)
		os.Exit(-1)
	}
}
