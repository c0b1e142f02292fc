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

package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/run"
	"gopkg.in/yaml.v3"
)

var (
	_ run.Config = (*LocalConfig)(nil)

	ErrMissingPolicyStore  = errors.New("missing policy store id")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidMockDecision = errors.New("invalid mock decision")
	ErrInvalidMaxAttempts  = errors.New("invalid max attempts")
)

// Environment variables consumed by the configuration.
const (
	EnvPolicyStoreID = "POLICY_STORE_ID"
	EnvLogLevel      = "LOG_LEVEL"
	EnvRegion        = "AWS_REGION"
	EnvHTTPPort      = "HTTP_PORT"
	EnvMockDecision  = "MOCK_DECISION"
)

// Config holds the settings of the authorizer.
type Config struct {
	// PolicyStoreID is the Verified Permissions policy store queried for every decision.
	PolicyStoreID string `yaml:"policy_store_id" json:"policyStoreId"`
	// Region is the AWS region of the policy store.
	Region string `yaml:"region" json:"region"`
	// LogLevel accepts a single level or "<scope>:<level>,..." pairs.
	LogLevel string `yaml:"log_level" json:"logLevel"`
	// HTTPPort is the port of the raw HTTP ext-authz server (standalone mode only).
	HTTPPort int `yaml:"http_port" json:"httpPort"`
	// GRPCAddress is the listen address of the Envoy gRPC ext-authz server.
	GRPCAddress string `yaml:"grpc_address" json:"grpcAddress"`
	// HealthPort is the port of the health and metrics server.
	HealthPort int `yaml:"health_port" json:"healthPort"`
	// MaxAttempts is the retry budget of the policy engine client.
	MaxAttempts int `yaml:"max_attempts" json:"maxAttempts"`
	// MockDecision replaces the policy engine with a fixed ALLOW or DENY decision.
	MockDecision string `yaml:"mock_decision" json:"mockDecision,omitempty"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Region:      "us-east-1",
		LogLevel:    "INFO",
		HTTPPort:    9191,
		GRPCAddress: ":9090",
		HealthPort:  10004,
		MaxAttempts: 3,
	}
}

// LocalConfig is a run.Config that loads the configuration from an optional
// YAML file, the environment and the command line flags, in increasing order
// of precedence.
type LocalConfig struct {
	// RequirePolicyStore makes the policy store id mandatory. It is set for the
	// standalone server, which must refuse to start without it.
	RequirePolicyStore bool
	// Config is the loaded configuration.
	Config Config

	path  string
	flags *run.FlagSet
	set   Config
}

// Name returns the name of the unit in the run.Group.
func (l *LocalConfig) Name() string { return "Local configuration" }

// FlagSet returns the flags used to customize the configuration.
func (l *LocalConfig) FlagSet() *run.FlagSet {
	defaults := DefaultConfig()
	flags := run.NewFlagSet("Configuration flags")
	flags.StringVar(&l.path, "config-path", "", "optional YAML configuration file path")
	flags.StringVar(&l.set.PolicyStoreID, "policy-store-id", "", "Verified Permissions policy store id")
	flags.StringVar(&l.set.Region, "region", defaults.Region, "AWS region of the policy store")
	flags.StringVar(&l.set.LogLevel, "log-level", defaults.LogLevel, "log level or <logger>:<level>,<logger>:<level>,...")
	flags.IntVar(&l.set.HTTPPort, "http-port", defaults.HTTPPort, "raw HTTP ext-authz server port")
	flags.StringVar(&l.set.GRPCAddress, "grpc-address", defaults.GRPCAddress, "Envoy gRPC ext-authz listen address")
	flags.IntVar(&l.set.HealthPort, "health-port", defaults.HealthPort, "health and metrics server port")
	flags.IntVar(&l.set.MaxAttempts, "max-attempts", defaults.MaxAttempts, "policy engine client retry budget")
	flags.StringVar(&l.set.MockDecision, "mock-decision", "", "use a fixed ALLOW or DENY decision instead of the policy engine")
	l.flags = flags
	return flags
}

// Validate loads and validates the configuration.
func (l *LocalConfig) Validate() error {
	l.Config = DefaultConfig()

	if l.path != "" {
		if err := l.loadFile(); err != nil {
			return err
		}
	}
	if err := l.loadEnv(); err != nil {
		return err
	}
	l.applyFlags()

	return l.Config.Validate(l.RequirePolicyStore)
}

func (l *LocalConfig) loadFile() error {
	content, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err = dec.Decode(&l.Config); err != nil {
		return fmt.Errorf("parsing %s: %w", l.path, err)
	}
	return nil
}

func (l *LocalConfig) loadEnv() error {
	if v, ok := os.LookupEnv(EnvPolicyStoreID); ok {
		l.Config.PolicyStoreID = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		l.Config.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvRegion); ok && v != "" {
		l.Config.Region = v
	}
	if v, ok := os.LookupEnv(EnvMockDecision); ok {
		l.Config.MockDecision = v
	}
	if v, ok := os.LookupEnv(EnvHTTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidPort, EnvHTTPPort, v)
		}
		l.Config.HTTPPort = port
	}
	return nil
}

func (l *LocalConfig) applyFlags() {
	if l.flags == nil {
		return
	}
	changed := l.flags.Changed
	if changed("policy-store-id") {
		l.Config.PolicyStoreID = l.set.PolicyStoreID
	}
	if changed("region") {
		l.Config.Region = l.set.Region
	}
	if changed("log-level") {
		l.Config.LogLevel = l.set.LogLevel
	}
	if changed("http-port") {
		l.Config.HTTPPort = l.set.HTTPPort
	}
	if changed("grpc-address") {
		l.Config.GRPCAddress = l.set.GRPCAddress
	}
	if changed("health-port") {
		l.Config.HealthPort = l.set.HealthPort
	}
	if changed("max-attempts") {
		l.Config.MaxAttempts = l.set.MaxAttempts
	}
	if changed("mock-decision") {
		l.Config.MockDecision = l.set.MockDecision
	}
}

// Validate checks the configuration values.
func (c *Config) Validate(requirePolicyStore bool) error {
	c.MockDecision = strings.ToUpper(strings.TrimSpace(c.MockDecision))
	switch c.MockDecision {
	case "", "ALLOW", "DENY":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMockDecision, c.MockDecision)
	}

	if requirePolicyStore && c.PolicyStoreID == "" && c.MockDecision == "" {
		return fmt.Errorf("%w: %s environment variable is required", ErrMissingPolicyStore, EnvPolicyStoreID)
	}

	for name, port := range map[string]int{"http": c.HTTPPort, "health": c.HealthPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: %s port %d", ErrInvalidPort, name, port)
		}
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, c.MaxAttempts)
	}

	if c.LogLevel != "" {
		if _, err := ParseLogLevels(c.LogLevel); err != nil {
			return err
		}
	}

	return nil
}

// ConfigToJSONString returns the JSON representation of the configuration.
func ConfigToJSONString(c *Config) string {
	b, _ := json.Marshal(c)
	return string(b)
}
