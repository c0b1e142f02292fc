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

	"github.com/tetratelabs/run"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
)

var (
	_ run.PreRunner = (*Unit)(nil)
	_ Handler       = (*Unit)(nil)
)

// Unit is a run.PreRunner that creates the policy engine client and the Authorizer once
// the configuration has been loaded.
type Unit struct {
	ctx    context.Context
	config *internal.Config
	opts   []Option

	authorizer *Authorizer

	// NewEngine allows overriding how the policy engine is created. It is meant to
	// be used in tests.
	NewEngine func(ctx context.Context, cfg internal.Config) (PolicyEngine, error)
}

// NewUnit creates a new Unit for the given configuration.
func NewUnit(ctx context.Context, cfg *internal.Config, opts ...Option) *Unit {
	return &Unit{
		ctx:       ctx,
		config:    cfg,
		opts:      opts,
		NewEngine: NewPolicyEngine,
	}
}

// Name implements run.Unit.
func (u *Unit) Name() string { return "Authorizer" }

// PreRun creates the policy engine client.
func (u *Unit) PreRun() error {
	engine, err := u.NewEngine(u.ctx, *u.config)
	if err != nil {
		return err
	}
	if u.config.PolicyStoreID == "" && u.config.MockDecision == "" {
		internal.Logger(internal.Authz).Error("no policy store configured, every check will fail", nil,
			"env", internal.EnvPolicyStoreID)
	}
	u.authorizer = NewAuthorizer(engine, u.config.PolicyStoreID, u.opts...)
	return nil
}

// Check delegates to the configured Authorizer.
func (u *Unit) Check(ctx context.Context, req envelope.Request) envelope.Verdict {
	return u.authorizer.Check(ctx, req)
}
