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

package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
)

var _ run.Service = (*Runtime)(nil)

// Runtime is a run.Unit that serves the invocations from the managed-function runtime.
type Runtime struct {
	log     telemetry.Logger
	handler *Handler

	ctx    context.Context
	cancel context.CancelFunc

	// Start allows overriding the runtime loop. It is meant to be used in tests.
	Start func(ctx context.Context, handler interface{})
}

// NewRuntime creates a new Runtime for the given invocation handler.
func NewRuntime(h *Handler) *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		log:     internal.Logger(internal.Lambda),
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		Start: func(ctx context.Context, handler interface{}) {
			lambda.StartWithOptions(handler, lambda.WithContext(ctx))
		},
	}
}

// Name implements run.Unit.
func (r *Runtime) Name() string { return "Lambda Runtime" }

// Serve implements run.Service. The runtime loop only returns when the process is terminated.
func (r *Runtime) Serve() error {
	r.log.Info("starting lambda runtime")
	r.Start(r.ctx, r.handler.Handle)
	return nil
}

// GracefulStop implements run.Service.
func (r *Runtime) GracefulStop() {
	r.log.Info("stopping lambda runtime")
	r.cancel()
}
