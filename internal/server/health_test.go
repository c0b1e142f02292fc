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
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/test"
	"github.com/tetratelabs/telemetry"
	"google.golang.org/grpc/test/bufconn"

	"github.com/istio-ecosystem/avp-authz/internal"
)

func TestHealthServer(t *testing.T) {
	var (
		g       = run.Group{Logger: telemetry.NoopLogger()}
		irq     = test.NewIRQService(func() {})
		l       = bufconn.Listen(1024)
		metrics = internal.NewMetrics()
		hs      = NewHealthServer(nil, metrics)
	)

	metrics.ObserveVerdict("RAW_HTTP", "ALLOW", http.StatusOK)
	hs.(*healthServer).l = l
	g.Register(hs, irq)

	go func() {
		require.NoError(t, g.Run())
	}()
	t.Cleanup(func() {
		require.NoError(t, irq.Close())
	})

	client := http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return l.Dial()
			},
		},
	}

	tests := []struct {
		method string
		url    string
		want   int
	}{
		{http.MethodGet, "http://bufconn" + HealthzPath, http.StatusOK},
		{http.MethodGet, "http://bufconn" + HealthPath, http.StatusOK},
		{http.MethodGet, "http://bufconn" + MetricsPath, http.StatusOK},
		{http.MethodGet, "http://bufconn" + "/other", http.StatusBadRequest},
		{http.MethodPost, "http://bufconn" + HealthzPath, http.StatusBadRequest},
		{http.MethodPost, "http://bufconn" + "/other", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, tt.url, nil)
			require.NoError(t, err)
			resp, err := client.Do(req)
			require.NoError(t, err)
			t.Cleanup(func() { _ = resp.Body.Close() })
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("metrics content", func(t *testing.T) {
		resp, err := client.Get("http://bufconn" + MetricsPath)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), `authz_decisions_total{kind="RAW_HTTP",outcome="ALLOW",status="200"} 1`)
	})
}

func TestHealthConfig(t *testing.T) {
	custom := internal.DefaultConfig()
	custom.HealthPort = 8000

	tests := []struct {
		name        string
		config      *internal.Config
		wantAddress string
	}{
		{"default", nil, ":10004"},
		{"port", &custom, ":8000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(tt.config, nil)
			require.Equal(t, tt.wantAddress, hs.(*healthServer).getAddressAndPort())
		})
	}
}
