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
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/run"
	"github.com/tetratelabs/telemetry"
	"github.com/tetratelabs/telemetry/scope"
)

const (
	Default  = "default"
	Requests = "requests"
	Server   = "server"
	Authz    = "authz"
	Envelope = "envelope"
	Health   = "health"
	Lambda   = "lambda"
	AWS      = "aws"
)

// scopes contains the list of all logging scopes
var scopes = map[string]string{
	Default:  "Default",
	Requests: "Logs all requests and responses received by the server",
	Server:   "Server request handling messages",
	Authz:    "Authorization decision messages",
	Envelope: "Envelope normalization and response encoding",
	Health:   "Health server request handling messages",
	Lambda:   "Managed function invocation messages",
	AWS:      "AWS SDK client messages",
}

// levelAliases maps the operational level names accepted in LOG_LEVEL to the
// levels supported by the telemetry loggers.
var levelAliases = map[string]telemetry.Level{
	"trace":    telemetry.LevelDebug,
	"debug":    telemetry.LevelDebug,
	"info":     telemetry.LevelInfo,
	"warn":     telemetry.LevelError,
	"warning":  telemetry.LevelError,
	"error":    telemetry.LevelError,
	"critical": telemetry.LevelError,
	"none":     telemetry.LevelNone,
}

// Logger gets the given logging scope, or return the Noop logger if no scope
// has been registered with the given name.
func Logger(name string) telemetry.Logger {
	s, ok := scope.Find(name)
	if !ok {
		return telemetry.NoopLogger()
	}
	return s
}

var _ run.PreRunner = (*setupLogging)(nil)

// setupLogging is a run.PreRunner that sets up the logging system.
type setupLogging struct {
	logger telemetry.Logger
	config *Config
}

// NewLogSystem returns a new run.Unit that sets up the logging system.
func NewLogSystem(log telemetry.Logger, cfg *Config) run.Unit {
	// Set the defaults in the constructor to make sure this runs as early as possible,
	// not even as part of the run.Group phases
	scope.UseLogger(log)
	scope.SetAllScopes(telemetry.LevelInfo)
	for name, description := range scopes {
		scope.Register(name, description)
	}
	return &setupLogging{
		logger: Logger(Server),
		config: cfg,
	}
}

// Name returns the name of the run.Unit.
func (s *setupLogging) Name() string { return "Logging" }

// PreRun initializes the logging system.
func (s *setupLogging) PreRun() error {
	if s.config == nil || s.config.LogLevel == "" {
		return nil
	}
	levels, err := ParseLogLevels(s.config.LogLevel)
	if err != nil {
		return err
	}
	SetLogLevels(s.logger, levels)
	return nil
}

// ParseLogLevels reads the given string and configures the log levels accordingly.
// The string must have the format: "logger:level,logger:level,..." where "logger"
// is the name of an existing logger, such as 'authz', and level is one of the values
// supported in the `telemetry.Level` type or one of the operational aliases (WARNING, CRITICAL, ...).
// In addition to specific logger names, the "all" keyword can be used to configure all
// registered loggers to the configured level. For example: "all:debug".
// A single level without a logger name, such as "INFO", is equivalent to "all:info".
func ParseLogLevels(logLevels string) (map[string]telemetry.Level, error) {
	res := map[string]telemetry.Level{}
	levels := strings.Split(logLevels, ",")

	if len(levels) == 1 && !strings.Contains(levels[0], ":") {
		levels[0] = "all:" + levels[0]
	}

	for _, l := range levels {
		parts := strings.Split(l, ":")
		if len(parts) != 2 {
			return res, errors.New("must be in the form of <logger>:<level>")
		}

		logger := strings.TrimSpace(parts[0])
		level := strings.TrimSpace(parts[1])

		if logger == "" {
			return res, errors.New("logger must be specified")
		}

		if level == "" {
			return res, errors.New("level must be specified")
		}

		lvl, ok := parseLevel(level)
		if !ok {
			return res, fmt.Errorf("%q is not a valid log level", level)
		}

		res[logger] = lvl
	}

	return res, nil
}

func parseLevel(level string) (telemetry.Level, bool) {
	if lvl, ok := levelAliases[strings.ToLower(level)]; ok {
		return lvl, true
	}
	return telemetry.FromLevel(level)
}

// SetLogLevels sets the log levels for the given loggers.
// The "all" level is applied first so that specific loggers can override it.
func SetLogLevels(log telemetry.Logger, logLevelMap map[string]telemetry.Level) {
	if level, ok := logLevelMap["all"]; ok {
		for _, logger := range scope.List() {
			logger.SetLevel(level)
		}
	}
	for k, l := range logLevelMap {
		if k == "all" {
			continue
		}
		logger, ok := scope.Find(k)
		if ok {
			logger.SetLevel(l)
		} else {
			log.Info("invalid logger", "logger", k)
		}
	}
}
