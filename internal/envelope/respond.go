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
	"net/http"
	"strconv"

	inthttp "github.com/istio-ecosystem/avp-authz/internal/http"
)

var contentTypeHeader = http.CanonicalHeaderKey(inthttp.HeaderContentType)

// Response is the serialized response of a managed-function invocation.
// The status description and base64 flag are only set for load balancer envelopes.
type Response struct {
	StatusCode        int               `json:"statusCode"`
	StatusDescription string            `json:"statusDescription,omitempty"`
	Headers           map[string]string `json:"headers"`
	Body              string            `json:"body"`
	IsBase64Encoded   *bool             `json:"isBase64Encoded,omitempty"`
}

// Encode builds the response for the given verdict in the shape expected by the envelope kind.
func Encode(v Verdict, kind Kind) Response {
	resp := Response{
		StatusCode: v.Status,
		Headers:    Headers(v),
		Body:       v.Message,
	}
	if kind == KindLoadBalancer {
		notBase64 := false
		resp.StatusDescription = StatusDescription(v.Status)
		resp.IsBase64Encoded = &notBase64
	}
	return resp
}

// Headers returns the response headers for the given verdict: the decision marker, the
// content type when there is a body, and the identity headers on ALLOW.
func Headers(v Verdict) map[string]string {
	headers := map[string]string{
		inthttp.HeaderDecision: DecisionMarker(v.Status),
	}
	if v.Message != "" {
		headers[contentTypeHeader] = inthttp.HeaderContentTypeText
	}
	if v.Outcome == Allow {
		for k, val := range v.IdentityHeaders {
			headers[k] = val
		}
	}
	return headers
}

// DecisionMarker returns the value of the decision header for the given status code.
func DecisionMarker(status int) string {
	if status < http.StatusBadRequest {
		return inthttp.DecisionAllow
	}
	return inthttp.DecisionDeny
}

// StatusDescription returns the "<code> <reason>" description required by load balancer responses.
func StatusDescription(code int) string {
	text := http.StatusText(code)
	if text == "" {
		text = "Unknown"
	}
	return strconv.Itoa(code) + " " + text
}

// WriteHTTP writes the verdict to a raw HTTP response.
func WriteHTTP(w http.ResponseWriter, v Verdict) {
	for k, val := range Headers(v) {
		w.Header().Set(k, val)
	}
	w.WriteHeader(v.Status)
	if v.Message != "" {
		_, _ = w.Write([]byte(v.Message))
	}
}
