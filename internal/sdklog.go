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
	"context"
	"fmt"

	"github.com/aws/smithy-go/logging"
	"github.com/tetratelabs/telemetry"
)

var (
	_ logging.Logger        = (*sdkLogger)(nil)
	_ logging.ContextLogger = (*sdkLogger)(nil)
)

// sdkLogger adapts the AWS SDK logging interface so it can be used with our loggers
type sdkLogger struct {
	scope telemetry.Logger
	ctx   context.Context
}

// NewSDKLogger creates a new logger to bridge the AWS SDK logs to our logging system
func NewSDKLogger(s telemetry.Logger) logging.Logger {
	return &sdkLogger{scope: s}
}

// Logf writes SDK warnings as errors and everything else as debug messages.
func (l *sdkLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	log := l.scope
	if l.ctx != nil {
		log = log.Context(l.ctx)
	}

	msg := fmt.Sprintf(format, v...)
	switch classification {
	case logging.Warn:
		log.Error(msg, nil, "classification", string(classification))
	default:
		log.Debug(msg, "classification", string(classification))
	}
}

// WithContext returns a logger that includes the request id and values stored in the given context.
func (l *sdkLogger) WithContext(ctx context.Context) logging.Logger {
	return &sdkLogger{scope: l.scope, ctx: ctx}
}
