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

package server

import (
	"context"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	envoy "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/tetratelabs/telemetry"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/authz"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
	inthttp "github.com/istio-ecosystem/avp-authz/internal/http"
)

var _ envoy.AuthorizationServer = (*ExtAuthZFilter)(nil)

// ExtAuthZFilter is an implementation of the Envoy AuthZ filter.
type ExtAuthZFilter struct {
	log     telemetry.Logger
	handler authz.Handler
}

// NewExtAuthZFilter creates a new ExtAuthZFilter.
func NewExtAuthZFilter(handler authz.Handler) *ExtAuthZFilter {
	return &ExtAuthZFilter{
		log:     internal.Logger(internal.Server),
		handler: handler,
	}
}

// Register the ExtAuthZFilter with the given gRPC server.
func (e *ExtAuthZFilter) Register(server *grpc.Server) {
	envoy.RegisterAuthorizationServer(server, e)
}

// Check is the implementation of the Envoy AuthorizationServer interface.
// Errors are always reported in the response, so Envoy never has to apply its failure policy.
func (e *ExtAuthZFilter) Check(ctx context.Context, req *envoy.CheckRequest) (*envoy.CheckResponse, error) {
	attrs := req.GetAttributes().GetRequest().GetHttp()
	r := envelope.FromAttributes(attrs.GetHeaders(), attrs.GetMethod(), attrs.GetPath(), attrs.GetHost())
	if r.RequestID == "" {
		r.RequestID = attrs.GetId()
	}

	v := e.handler.Check(ctx, r)
	e.log.Context(ctx).Debug("check verdict", "outcome", v.Outcome.String(), "status", v.Status)

	return toCheckResponse(v), nil
}

// toCheckResponse encodes a verdict as an Envoy CheckResponse.
func toCheckResponse(v envelope.Verdict) *envoy.CheckResponse {
	headers := envelope.Headers(v)
	code := inthttp.StatusToGrpcCode(v.Status)

	if v.Outcome == envelope.Allow {
		return &envoy.CheckResponse{
			Status: &status.Status{Code: int32(code)},
			HttpResponse: &envoy.CheckResponse_OkResponse{
				OkResponse: &envoy.OkHttpResponse{
					Headers: headerOptions(v.IdentityHeaders),
				},
			},
		}
	}

	return &envoy.CheckResponse{
		Status: &status.Status{Code: int32(code), Message: v.Message},
		HttpResponse: &envoy.CheckResponse_DeniedResponse{
			DeniedResponse: &envoy.DeniedHttpResponse{
				Status:  &typev3.HttpStatus{Code: typev3.StatusCode(v.Status)},
				Headers: headerOptions(headers),
				Body:    v.Message,
			},
		},
	}
}

func headerOptions(headers map[string]string) []*corev3.HeaderValueOption {
	opts := make([]*corev3.HeaderValueOption, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, &corev3.HeaderValueOption{
			Header: &corev3.HeaderValue{Key: k, Value: v},
		})
	}
	return opts
}
