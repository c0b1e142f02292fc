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

package envelope

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	functionURLEvent = `{
		"version": "2.0",
		"rawPath": "/check",
		"headers": {
			"authorization": "Bearer token",
			"x-original-method": "POST",
			"x-original-uri": "/smoke?debug=true",
			"x-original-host": "api.example.com",
			"x-request-id": "req-1"
		},
		"requestContext": {
			"requestId": "fn-req",
			"http": {"method": "GET", "path": "/check"}
		}
	}`

	functionURLNoOverrides = `{
		"rawPath": "/raw?x=1",
		"headers": {"host": "fn.lambda-url.us-east-1.on.aws"},
		"requestContext": {"requestId": "fn-req", "http": {"method": "PUT"}}
	}`

	loadBalancerEvent = `{
		"httpMethod": "GET",
		"path": "/items",
		"headers": {
			"Authorization": "Bearer token",
			"X-Original-URI": "/orders/1?expand=all",
			"host": "alb.example.com"
		},
		"requestContext": {"elb": {"targetGroupArn": "arn:aws:elasticloadbalancing:us-east-1:123456789012:targetgroup/tg/1"}},
		"isBase64Encoded": false,
		"body": ""
	}`

	loadBalancerMultiValue = `{
		"httpMethod": "DELETE",
		"path": "/",
		"multiValueHeaders": {"x-original-method": ["PATCH", "GET"]},
		"requestContext": {"elb": {"targetGroupArn": "tg"}}
	}`
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Request
	}{
		{
			"function-url",
			functionURLEvent,
			Request{
				Method:        "POST",
				Path:          "/smoke",
				Host:          "api.example.com",
				Authorization: "Bearer token",
				Kind:          KindFunctionURL,
				TransportPath: "/check",
				Forwarded:     true,
				RequestID:     "req-1",
			},
		},
		{
			"function-url-native-fields",
			functionURLNoOverrides,
			Request{
				Method:        "PUT",
				Path:          "/raw",
				Host:          "fn.lambda-url.us-east-1.on.aws",
				Kind:          KindFunctionURL,
				TransportPath: "/raw",
				RequestID:     "fn-req",
			},
		},
		{
			"load-balancer",
			loadBalancerEvent,
			Request{
				Method:        "GET",
				Path:          "/orders/1",
				Host:          "alb.example.com",
				Authorization: "Bearer token",
				Kind:          KindLoadBalancer,
				TransportPath: "/items",
				Forwarded:     true,
			},
		},
		{
			"load-balancer-multi-value",
			loadBalancerMultiValue,
			Request{
				Method:        "PATCH",
				Path:          "/",
				Kind:          KindLoadBalancer,
				TransportPath: "/",
				Forwarded:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ``},
		{"not-json", `not json`},
		{"no-request-context", `{"headers": {}}`},
		{"other-request-context", `{"requestContext": {"stage": "prod"}}`},
		{"null-markers", `{"requestContext": {"elb": null, "http": null}}`},
		{"invalid-elb-shape", `{"httpMethod": 1, "requestContext": {"elb": {}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.payload))
			require.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestNormalizeEmptyOverrideIsForwarded(t *testing.T) {
	got, err := Normalize([]byte(`{
		"httpMethod": "GET", "path": "/items",
		"headers": {"x-original-uri": ""},
		"requestContext": {"elb": {"targetGroupArn": "tg"}}
	}`))
	require.NoError(t, err)
	require.True(t, got.Forwarded)
	require.Equal(t, "", got.Path)
}

func TestFunctionURLMissingMethod(t *testing.T) {
	got, err := Normalize([]byte(`{
		"rawPath": "/orders",
		"headers": {"host": "fn.example.com"},
		"requestContext": {"requestId": "fn-req", "http": {"path": "/orders"}}
	}`))
	require.NoError(t, err)
	require.Equal(t, KindFunctionURL, got.Kind)
	require.Equal(t, "GET", got.Method)
	require.Equal(t, "/orders", got.Path)

	got, err = Normalize([]byte(`{
		"rawPath": "/orders",
		"headers": {"x-original-method": "DELETE"},
		"requestContext": {"http": {}}
	}`))
	require.NoError(t, err)
	require.Equal(t, "DELETE", got.Method)
}

func TestFromHTTPRequest(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		method  string
		headers map[string]string
		want    Request
	}{
		{
			"overrides",
			"/check?x=1", "POST",
			map[string]string{
				"Authorization":     "Bearer token",
				"X-Original-Method": "DELETE",
				"X-Original-Uri":    "/orders/1?y=2",
				"X-Original-Host":   "api.example.com",
			},
			Request{
				Method:        "DELETE",
				Path:          "/orders/1",
				Host:          "api.example.com",
				Authorization: "Bearer token",
				Kind:          KindRawHTTP,
				TransportPath: "/check",
				Forwarded:     true,
			},
		},
		{
			"pseudo-headers",
			"/check", "GET",
			map[string]string{
				":method":    "PUT",
				":path":      "/upload?part=1",
				":authority": "files.example.com",
			},
			Request{
				Method:        "PUT",
				Path:          "/upload",
				Host:          "files.example.com",
				Kind:          KindRawHTTP,
				TransportPath: "/check",
			},
		},
		{
			"transport-fields",
			"/things?page=2", "GET",
			nil,
			Request{
				Method:        "GET",
				Path:          "/things",
				Host:          "example.com",
				Kind:          KindRawHTTP,
				TransportPath: "/things",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.headers {
				r.Header[k] = []string{v}
			}
			require.Equal(t, tt.want, FromHTTPRequest(r))
		})
	}
}

func TestFromAttributes(t *testing.T) {
	got := FromAttributes(
		map[string]string{"authorization": "Bearer t", "x-request-id": "abc"},
		"GET", "/a?b=c", "svc.local",
	)
	require.Equal(t, Request{
		Method:        "GET",
		Path:          "/a",
		Host:          "svc.local",
		Authorization: "Bearer t",
		Kind:          KindEnvoyGRPC,
		TransportPath: "/a",
		RequestID:     "abc",
	}, got)

	got = FromAttributes(map[string]string{":authority": "authority.local"}, "GET", "/", "svc.local")
	require.Equal(t, "authority.local", got.Host)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "FUNCTION_URL", KindFunctionURL.String())
	require.Equal(t, "LOAD_BALANCER", KindLoadBalancer.String())
	require.Equal(t, "RAW_HTTP", KindRawHTTP.String())
	require.Equal(t, "ENVOY_GRPC", KindEnvoyGRPC.String())
	require.Equal(t, "Kind(42)", Kind(42).String())
}
