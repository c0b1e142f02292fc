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
	"bufio"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/telemetry"
	"github.com/tetratelabs/telemetry/function"
)

const response = "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\n{\"decision\":\"ALLOW\"}"

func TestLoggingRoundTripper(t *testing.T) {
	tests := []struct {
		name     string
		level    telemetry.Level
		wantLogs int
	}{
		{"no-debug", telemetry.LevelInfo, 0},
		{"debug", telemetry.LevelDebug, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				rt  = &recordedRoundTrip{}
				got *http.Request
				lrt = LoggingRoundTripper{
					Log: function.NewLogger(rt.log),
					Delegate: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
						got = req
						return http.ReadResponse(bufio.NewReader(strings.NewReader(response)), req)
					}),
				}
			)
			lrt.Log.SetLevel(tt.level)

			req, err := http.NewRequest("POST", "https://verifiedpermissions.us-east-1.amazonaws.com/", strings.NewReader("req body"))
			require.NoError(t, err)
			req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=secret")

			_, err = lrt.RoundTrip(req)
			require.NoError(t, err)
			require.Len(t, rt.logs, tt.wantLogs)

			// The delegate always receives the original, unredacted request
			require.Equal(t, "AWS4-HMAC-SHA256 Credential=secret", got.Header.Get("Authorization"))

			if tt.wantLogs > 0 {
				dump := rt.logs[0].values[1].(string)
				require.Contains(t, dump, "Authorization: REDACTED")
				require.Contains(t, dump, "req body")
				require.NotContains(t, dump, "secret")
				require.Equal(t, "response", rt.logs[1].msg)
				require.Contains(t, rt.logs[1].values[1].(string), `{"decision":"ALLOW"}`)
			}
		})
	}
}

func TestRedactWithoutGetBody(t *testing.T) {
	req, err := http.NewRequest("POST", "https://example.com", nil)
	require.NoError(t, err)
	req.Body = readCloser{strings.NewReader("one-shot")}

	out, withBody := redact(req)
	require.False(t, withBody)
	require.Equal(t, http.NoBody, out.Body)
}

type readCloser struct{ *strings.Reader }

func (readCloser) Close() error { return nil }

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

type recordedRoundTrip struct {
	logs []logEntry
}

type logEntry struct {
	level  telemetry.Level
	msg    string
	values []any
}

func (r *recordedRoundTrip) log(level telemetry.Level, msg string, _ error, values function.Values) {
	r.logs = append(r.logs, logEntry{
		level:  level,
		msg:    msg,
		values: values.FromMethod,
	})
}
