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
	"net"
	"net/http"
	"sync"
	"testing"

	envoy "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/test"
	"github.com/tetratelabs/telemetry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/authz"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
)

func TestServer(t *testing.T) {
	var (
		cfg = internal.DefaultConfig()
		g   = run.Group{Logger: telemetry.NoopLogger()}
		irq = test.NewIRQService(func() {})
		l   = bufconn.Listen(1024)
		h   = &recordingHandler{verdict: envelope.Denied(http.StatusForbidden, authz.MsgAccessDenied)}
		s   = New(&cfg, NewExtAuthZFilter(h).Register)
	)
	s.log = telemetry.NoopLogger()
	s.Listen = func() (net.Listener, error) { return l, nil }
	g.Register(s, irq)

	// Start the server
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		require.NoError(t, g.Run())
		wg.Done()
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return l.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, conn.Close()) })

	client := envoy.NewAuthorizationClient(conn)
	resp, err := client.Check(context.Background(), checkRequest("GET", "/orders", map[string]string{"x-request-id": "req-1"}))
	require.NoError(t, err)
	require.Equal(t, int32(codes.PermissionDenied), resp.GetStatus().GetCode())
	require.Equal(t, authz.MsgAccessDenied, resp.GetDeniedResponse().GetBody())
	require.Equal(t, "req-1", h.last.RequestID)

	// Signal server termination
	require.NoError(t, irq.Close())

	// Wait for the server to stop
	wg.Wait()
}

func TestServerInvalidAddress(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.GRPCAddress = "no-port"

	s := New(&cfg)
	require.ErrorIs(t, s.PreRun(), ErrInvalidAddress)
}
