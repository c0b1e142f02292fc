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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions/types"
	"github.com/google/uuid"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/entities"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
	inthttp "github.com/istio-ecosystem/avp-authz/internal/http"
	"github.com/istio-ecosystem/avp-authz/internal/token"
)

// Messages returned to the caller in the body of the responses.
const (
	MsgHealthy          = "OK"
	MsgMissingHeader    = "Authorization header required"
	MsgBearerRequired   = "Bearer token required"
	MsgInvalidToken     = "Invalid token format"
	MsgTokenExpired     = "Token expired"
	MsgAccessDenied     = "Access denied by policy"
	MsgValidationFailed = "Token validation failed"
	MsgServiceError     = "Authorization service error"
	MsgInternalError    = "Internal authorization error"
)

// RequestIDKey is the context key under which the request id is propagated to the logs.
const RequestIDKey = "request-id"

var (
	_ Handler = (*Authorizer)(nil)

	ErrNoPolicyEngine = errors.New("no policy engine configured")

	healthPaths = map[string]struct{}{"/health": {}, "/healthz": {}}
)

// Authorizer translates normalized requests into policy engine queries and maps the
// decisions to verdicts.
type Authorizer struct {
	log           telemetry.Logger
	engine        PolicyEngine
	policyStoreID string
	clock         *token.Clock
	metrics       *internal.Metrics
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithClock sets the clock used for the local token expiration check.
func WithClock(c *token.Clock) Option { return func(a *Authorizer) { a.clock = c } }

// WithMetrics sets the collectors where verdicts and engine latencies are recorded.
func WithMetrics(m *internal.Metrics) Option { return func(a *Authorizer) { a.metrics = m } }

// NewAuthorizer creates a new Authorizer that queries the given policy store.
func NewAuthorizer(engine PolicyEngine, policyStoreID string, opts ...Option) *Authorizer {
	a := &Authorizer{
		log:           internal.Logger(internal.Authz),
		engine:        engine,
		policyStoreID: policyStoreID,
		clock:         &token.Clock{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// IsHealthPath returns true if the given path is served as a health check.
func IsHealthPath(path string) bool {
	_, ok := healthPaths[path]
	return ok
}

// Check returns the verdict for the given request. It never fails: every error,
// including panics, is converted into a DENY verdict.
func (a *Authorizer) Check(ctx context.Context, req envelope.Request) (v envelope.Verdict) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if !hasRequestID(ctx) {
		ctx = telemetry.KeyValuesToContext(ctx, RequestIDKey, requestID)
	}
	log := a.log.Context(ctx).With("kind", req.Kind.String())

	defer func() {
		if r := recover(); r != nil {
			log.Error("check error", fmt.Errorf("%v", r))
			v = envelope.Denied(http.StatusInternalServerError, MsgInternalError)
		}
		a.metrics.ObserveVerdict(req.Kind.String(), v.Outcome.String(), v.Status)
	}()

	// Envoy checks carry the upstream request path, which is never our own health endpoint
	if req.Kind != envelope.KindEnvoyGRPC && IsHealthPath(req.TransportPath) {
		return envelope.Allowed(http.StatusOK, MsgHealthy, nil)
	}

	if req.Kind == envelope.KindLoadBalancer && !req.Forwarded {
		log.Debug("load balancer health probe", "path", req.TransportPath)
		return envelope.Allowed(http.StatusOK, MsgHealthy, nil)
	}

	log.Info("auth check", "method", req.Method, "path", req.Path, "host", req.Host)
	return a.authorize(ctx, log, req)
}

func (a *Authorizer) authorize(ctx context.Context, log telemetry.Logger, req envelope.Request) envelope.Verdict {
	if req.Authorization == "" {
		log.Info("missing authorization header")
		return envelope.Denied(http.StatusUnauthorized, MsgMissingHeader)
	}

	claims, err := token.Extract(req.Authorization)
	switch {
	case errors.Is(err, token.ErrNotBearerScheme):
		log.Info("invalid authorization header format")
		return envelope.Denied(http.StatusUnauthorized, MsgBearerRequired)
	case err != nil:
		log.Info("failed to decode token payload", "error", err)
		return envelope.Denied(http.StatusUnauthorized, MsgInvalidToken)
	}

	if claims.Expired(a.clock.Now()) {
		log.Info("token expired", "exp", *claims.ExpiresAt)
		return envelope.Denied(http.StatusUnauthorized, MsgTokenExpired)
	}

	graph := entities.Build(req, claims)
	if err = graph.Validate(); err != nil {
		log.Error("invalid entity graph", err)
		return envelope.Denied(http.StatusInternalServerError, MsgInternalError)
	}
	subject := graph.Principal().ID
	log = log.With("subject", subject)
	log.Debug("token claims", "issuer", claims.Issuer, "groups", claims.Groups)

	out, err := a.isAuthorized(ctx, entities.Query(a.policyStoreID, req.Method, graph))
	if err != nil {
		var validation *types.ValidationException
		if errors.As(err, &validation) {
			log.Error("policy engine validation error", err)
			return envelope.Denied(http.StatusUnauthorized, MsgValidationFailed)
		}
		log.Error("policy engine error", err)
		return envelope.Denied(http.StatusInternalServerError, MsgServiceError)
	}

	if out.Decision != types.DecisionAllow {
		if len(out.DeterminingPolicies) > 0 {
			log.Info("determining policies", "policies", policyIDs(out.DeterminingPolicies))
		}
		if len(out.Errors) > 0 {
			log.Error("policy evaluation errors", nil, "errors", evaluationErrors(out.Errors))
		}
		return envelope.Denied(http.StatusForbidden, MsgAccessDenied)
	}

	return envelope.Allowed(http.StatusOK, "", map[string]string{
		inthttp.HeaderUserID:      subject,
		inthttp.HeaderDecision:    inthttp.DecisionAllow,
		inthttp.HeaderValidatedBy: inthttp.ValidatedByVerifiedPermissions,
	})
}

// isAuthorized performs the single policy engine call of a check. A missing decision is a DENY.
func (a *Authorizer) isAuthorized(ctx context.Context, in *verifiedpermissions.IsAuthorizedInput) (*verifiedpermissions.IsAuthorizedOutput, error) {
	if a.engine == nil {
		return nil, ErrNoPolicyEngine
	}

	start := time.Now()
	out, err := a.engine.IsAuthorized(ctx, in)
	took := time.Since(start)
	a.metrics.ObserveEngine(took)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = &verifiedpermissions.IsAuthorizedOutput{Decision: types.DecisionDeny}
	}

	a.log.Context(ctx).Info("policy engine decision",
		"decision", string(out.Decision),
		"duration_ms", fmt.Sprintf("%.1f", float64(took.Microseconds())/1000))
	return out, nil
}

func hasRequestID(ctx context.Context) bool {
	kvs := telemetry.KeyValuesFromContext(ctx)
	for i := 0; i < len(kvs); i += 2 {
		if kvs[i] == RequestIDKey {
			return true
		}
	}
	return false
}

func policyIDs(items []types.DeterminingPolicyItem) []string {
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, aws.ToString(p.PolicyId))
	}
	return ids
}

func evaluationErrors(items []types.EvaluationErrorItem) []string {
	errs := make([]string, 0, len(items))
	for _, e := range items {
		errs = append(errs, aws.ToString(e.ErrorDescription))
	}
	return errs
}
