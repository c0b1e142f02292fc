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

// Package envelope normalizes the trigger envelopes received by the authorizer
// and encodes verdicts into the response shape each caller expects.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	inthttp "github.com/istio-ecosystem/avp-authz/internal/http"
)

// Kind identifies the caller-specific envelope shape.
type Kind int

const (
	KindFunctionURL Kind = iota
	KindLoadBalancer
	KindRawHTTP
	KindEnvoyGRPC
)

var kindNames = map[Kind]string{
	KindFunctionURL:  "FUNCTION_URL",
	KindLoadBalancer: "LOAD_BALANCER",
	KindRawHTTP:      "RAW_HTTP",
	KindEnvoyGRPC:    "ENVOY_GRPC",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrMalformedEnvelope is returned when the envelope shape cannot be recognized.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Request is the canonical form of an authorization request, independent of the
// envelope it was received in.
type Request struct {
	Method        string
	Path          string
	Host          string
	Authorization string
	Kind          Kind
	// TransportPath is the path the caller itself was invoked on, used to serve health checks.
	TransportPath string
	// Forwarded is false when none of the mesh-forwarded override headers were present.
	Forwarded bool
	// RequestID correlates the logs of a single call. It may be empty.
	RequestID string
}

// HeaderMap is a case-insensitive view over a header map with lower-cased keys.
type HeaderMap map[string]string

// NewHeaders lower-cases the keys of the given map.
func NewHeaders(h map[string]string) HeaderMap {
	out := make(HeaderMap, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}

// FromHTTPHeader builds a HeaderMap view from a net/http header, keeping the first value of each header.
func FromHTTPHeader(h http.Header) HeaderMap {
	out := make(HeaderMap, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

// lookup returns the value of the first header present in the map, even if its value is empty.
func (h HeaderMap) lookup(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := h[n]; ok {
			return v, true
		}
	}
	return "", false
}

// forwarded returns true if any mesh-forwarded override header is present.
func (h HeaderMap) forwarded() bool {
	_, ok := h.lookup(inthttp.HeaderOriginalMethod, inthttp.HeaderOriginalURI, inthttp.HeaderOriginalHost)
	return ok
}

// probe captures only the structural markers used to tell the envelope kinds apart.
type probe struct {
	RequestContext struct {
		ELB  json.RawMessage `json:"elb"`
		HTTP json.RawMessage `json:"http"`
	} `json:"requestContext"`
}

// Normalize parses a managed-function invocation payload and returns the canonical request.
// An envelope with a load-balancer target-group marker is a LOAD_BALANCER envelope, one with a
// direct-invoke HTTP context is a FUNCTION_URL envelope. Anything else is ErrMalformedEnvelope.
func Normalize(payload []byte) (Request, error) {
	var p probe
	if err := json.Unmarshal(payload, &p); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	switch {
	case isPresent(p.RequestContext.ELB):
		var ev events.ALBTargetGroupRequest
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Request{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
		return FromLoadBalancer(ev), nil
	case isPresent(p.RequestContext.HTTP):
		var ev events.LambdaFunctionURLRequest
		if err := json.Unmarshal(payload, &ev); err != nil {
			return Request{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
		}
		return FromFunctionURL(ev), nil
	default:
		return Request{}, fmt.Errorf("%w: no load balancer or function URL request context", ErrMalformedEnvelope)
	}
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// FromFunctionURL normalizes a function URL direct-invoke envelope.
func FromFunctionURL(ev events.LambdaFunctionURLRequest) Request {
	path := ev.RequestContext.HTTP.Path
	if path == "" {
		path = ev.RawPath
	}
	if path == "" {
		path = "/"
	}
	method := ev.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}
	return resolve(KindFunctionURL, NewHeaders(ev.Headers), method, path, "", ev.RequestContext.RequestID)
}

// FromLoadBalancer normalizes a load balancer target-group envelope.
func FromLoadBalancer(ev events.ALBTargetGroupRequest) Request {
	headers := NewHeaders(ev.Headers)
	if len(headers) == 0 {
		for k, v := range ev.MultiValueHeaders {
			if len(v) > 0 {
				headers[strings.ToLower(k)] = v[0]
			}
		}
	}
	path := ev.Path
	if path == "" {
		path = "/"
	}
	return resolve(KindLoadBalancer, headers, ev.HTTPMethod, path, "", "")
}

// FromHTTPRequest normalizes a request received directly on the raw HTTP transport.
func FromHTTPRequest(r *http.Request) Request {
	headers := FromHTTPHeader(r.Header)
	// net/http moves the Host header out of the header map
	if _, ok := headers[inthttp.HeaderHost]; !ok && r.Host != "" {
		headers[inthttp.HeaderHost] = r.Host
	}

	method, ok := headers.lookup(inthttp.PseudoHeaderMethod)
	if !ok {
		method = r.Method
	}
	path, ok := headers.lookup(inthttp.PseudoHeaderPath)
	if !ok {
		path = r.URL.RequestURI()
	}
	authority, _ := headers.lookup(inthttp.PseudoHeaderAuthority)

	req := resolve(KindRawHTTP, headers, method, path, authority, "")
	req.TransportPath = inthttp.StripQuery(r.URL.RequestURI())
	return req
}

// FromAttributes normalizes the HTTP attributes of an Envoy CheckRequest.
func FromAttributes(headers map[string]string, method, path, host string) Request {
	h := NewHeaders(headers)
	authority, ok := h.lookup(inthttp.PseudoHeaderAuthority)
	if !ok {
		authority = host
	}
	return resolve(KindEnvoyGRPC, h, method, path, authority, "")
}

// resolve applies the field resolution order shared by all envelopes: mesh-forwarded override
// header, then the envelope native value, then the generic host header (host only).
func resolve(kind Kind, h HeaderMap, nativeMethod, nativePath, nativeHost, requestID string) Request {
	method, ok := h.lookup(inthttp.HeaderOriginalMethod)
	if !ok {
		method = nativeMethod
	}

	path, ok := h.lookup(inthttp.HeaderOriginalURI)
	if !ok {
		path = nativePath
	}

	host, ok := h.lookup(inthttp.HeaderOriginalHost)
	if !ok {
		host = nativeHost
	}
	if host == "" {
		host = h[inthttp.HeaderHost]
	}

	if id, ok := h.lookup(inthttp.HeaderXRequestID); ok && id != "" {
		requestID = id
	}

	return Request{
		Method:        method,
		Path:          inthttp.StripQuery(path),
		Host:          host,
		Authorization: h[inthttp.HeaderAuthorization],
		Kind:          kind,
		TransportPath: inthttp.StripQuery(nativePath),
		Forwarded:     h.forwarded(),
		RequestID:     requestID,
	}
}
