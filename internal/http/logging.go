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

package http

import (
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/tetratelabs/telemetry"
)

// redactedHeaders are replaced before dumping the signed policy engine requests.
var redactedHeaders = []string{"Authorization", "X-Amz-Security-Token"}

// LoggingRoundTripper is a http.RoundTripper that logs requests and responses.
type LoggingRoundTripper struct {
	Log      telemetry.Logger
	Delegate http.RoundTripper
}

// RoundTrip logs all the requests and responses using the configured settings.
// Request credentials are never written to the log.
func (l LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if l.Log.Level() < telemetry.LevelDebug {
		return l.Delegate.RoundTrip(req)
	}

	out, withBody := redact(req)
	if dump, derr := httputil.DumpRequestOut(out, withBody); derr == nil {
		l.Log.Debug("request", "data", string(dump))
	}

	start := time.Now()
	res, err := l.Delegate.RoundTrip(req)
	took := time.Since(start)

	if err != nil {
		l.Log.Debug("request failed", "error", err, "duration", took.String())
		return res, err
	}
	if dump, derr := httputil.DumpResponse(res, true); derr == nil {
		l.Log.Debug("response", "data", string(dump), "duration", took.String())
	}

	return res, err
}

// redact returns a copy of the request with the credential headers masked. The body
// is only dumped when it can be read again without consuming the original request.
func redact(req *http.Request) (*http.Request, bool) {
	out := req.Clone(req.Context())
	for _, h := range redactedHeaders {
		if out.Header.Get(h) != "" {
			out.Header.Set(h, "REDACTED")
		}
	}

	if req.Body == nil || req.Body == http.NoBody {
		return out, true
	}
	if req.GetBody == nil {
		out.Body = http.NoBody
		return out, false
	}
	body, err := req.GetBody()
	if err != nil {
		out.Body = http.NoBody
		return out, false
	}
	out.Body = body
	return out, true
}
