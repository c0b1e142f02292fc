// Copyright 2024 Tetrate
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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions/types"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
)

var _ PolicyEngine = (*mockEngine)(nil)

// mockEngine is a PolicyEngine that always returns the same decision.
type mockEngine struct {
	log      telemetry.Logger
	decision types.Decision
}

// NewMockEngine creates a PolicyEngine that allows or denies every request.
func NewMockEngine(allow bool) PolicyEngine {
	decision := types.DecisionDeny
	if allow {
		decision = types.DecisionAllow
	}
	return &mockEngine{
		log:      internal.Logger(internal.Authz).With("type", "mockEngine"),
		decision: decision,
	}
}

// IsAuthorized returns the configured decision without evaluating any policy.
func (m *mockEngine) IsAuthorized(ctx context.Context, params *verifiedpermissions.IsAuthorizedInput,
	_ ...func(*verifiedpermissions.Options)) (*verifiedpermissions.IsAuthorizedOutput, error) {
	log := m.log.Context(ctx)
	log.Debug("is authorized", "decision", string(m.decision),
		"principal", aws.ToString(params.Principal.EntityId), "action", aws.ToString(params.Action.ActionId))

	return &verifiedpermissions.IsAuthorizedOutput{
		Decision: m.decision,
		DeterminingPolicies: []types.DeterminingPolicyItem{
			{PolicyId: aws.String("mock-" + string(m.decision))},
		},
	}, nil
}
