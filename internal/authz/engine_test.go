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

package authz

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
)

func TestNewPolicyEngineMock(t *testing.T) {
	for _, decision := range []string{"ALLOW", "DENY"} {
		t.Run(decision, func(t *testing.T) {
			cfg := internal.DefaultConfig()
			cfg.MockDecision = decision

			engine, err := NewPolicyEngine(context.Background(), cfg)
			require.NoError(t, err)
			require.IsType(t, &mockEngine{}, engine)
		})
	}
}

func TestNewPolicyEngine(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	cfg := internal.DefaultConfig()
	cfg.Region = "eu-west-1"

	engine, err := NewPolicyEngine(context.Background(), cfg)
	require.NoError(t, err)
	client, ok := engine.(*verifiedpermissions.Client)
	require.True(t, ok)
	require.Equal(t, "eu-west-1", client.Options().Region)
}

func TestLoadOptions(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.MaxAttempts = 5

	var opts config.LoadOptions
	for _, o := range loadOptions(telemetry.NoopLogger(), cfg) {
		require.NoError(t, o(&opts))
	}

	require.Equal(t, "us-east-1", opts.Region)
	require.NotNil(t, opts.HTTPClient)
	require.NotNil(t, opts.Logger)
	require.Equal(t, 5, opts.Retryer().MaxAttempts())
	require.IsType(t, &retry.Standard{}, opts.Retryer())
}
