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
	"strings"

	"github.com/tetratelabs/telemetry"
)

// StripQuery truncates the given path at the first `?`.
func StripQuery(path string) string {
	p, _, _ := strings.Cut(path, "?")
	return p
}

// BearerAuthHeader returns the value of the Authorization header for the given token.
func BearerAuthHeader(token string) string {
	return "Bearer " + token
}

// NewHTTPClient creates a new HTTP client for the policy engine.
// If a logger is provided, it will log the requests and responses at debug level.
func NewHTTPClient(log telemetry.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if log != nil && log.Level() >= telemetry.LevelDebug {
		return &http.Client{
			Transport: &LoggingRoundTripper{
				Log:      log,
				Delegate: transport,
			},
		}
	}

	return &http.Client{Transport: transport}
}
