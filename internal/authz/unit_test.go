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
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/istio-ecosystem/avp-authz/internal"
)

func TestUnit(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.PolicyStoreID = "store"
	cfg.MockDecision = "DENY"

	u := NewUnit(context.Background(), &cfg)
	require.NoError(t, u.PreRun())

	v := u.Check(context.Background(), rawRequest("GET", "/orders", bearer(t, map[string]any{"sub": "u1"})))
	require.Equal(t, http.StatusForbidden, v.Status)
	require.Equal(t, MsgAccessDenied, v.Message)
}

func TestUnitEngineError(t *testing.T) {
	cfg := internal.DefaultConfig()
	boom := errors.New("boom")

	u := NewUnit(context.Background(), &cfg)
	u.NewEngine = func(context.Context, internal.Config) (PolicyEngine, error) { return nil, boom }
	require.ErrorIs(t, u.PreRun(), boom)
}
