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
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/authz"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
)

// Handler serves managed-function invocations. It accepts the function URL and the
// load balancer envelopes and answers in the shape the caller expects.
type Handler struct {
	log   telemetry.Logger
	authz authz.Handler
}

// NewHandler creates a new invocation handler that delegates the decisions to the given handler.
func NewHandler(h authz.Handler) *Handler {
	return &Handler{
		log:   internal.Logger(internal.Lambda),
		authz: h,
	}
}

// Handle processes a single invocation. It never returns an error, so every failure
// reaches the caller as an HTTP response.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (envelope.Response, error) {
	log := h.log.Context(ctx)

	req, err := envelope.Normalize(payload)
	if err != nil {
		log.Error("unrecognized invocation envelope", err)
		return envelope.Encode(envelope.Denied(http.StatusInternalServerError, authz.MsgInternalError), envelope.KindFunctionURL), nil
	}

	if req.RequestID == "" {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			req.RequestID = lc.AwsRequestID
		}
	}

	log.Debug("invocation", "kind", req.Kind.String(), "request-id", req.RequestID)
	v := h.authz.Check(ctx, req)
	return envelope.Encode(v, req.Kind), nil
}
