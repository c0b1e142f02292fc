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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
	inthttp "github.com/istio-ecosystem/avp-authz/internal/http"
)

const (
	mockAllow = "ALLOW"
	mockDeny  = "DENY"
)

// NewPolicyEngine creates the policy engine client for the given configuration.
// When a mock decision is configured, no AWS client is created.
func NewPolicyEngine(ctx context.Context, cfg internal.Config) (PolicyEngine, error) {
	log := internal.Logger(internal.AWS)

	switch cfg.MockDecision {
	case mockAllow, mockDeny:
		log.Info("using mock policy engine", "decision", cfg.MockDecision)
		return NewMockEngine(cfg.MockDecision == mockAllow), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions(log, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	log.Info("policy engine client configured", "region", awsCfg.Region, "max-attempts", cfg.MaxAttempts)
	return verifiedpermissions.NewFromConfig(awsCfg), nil
}

func loadOptions(log telemetry.Logger, cfg internal.Config) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = cfg.MaxAttempts
			})
		}),
		config.WithLogger(internal.NewSDKLogger(log)),
		config.WithHTTPClient(inthttp.NewHTTPClient(log)),
	}

	if log.Level() >= telemetry.LevelDebug {
		opts = append(opts, config.WithClientLogMode(aws.LogRetries))
	}

	return opts
}
