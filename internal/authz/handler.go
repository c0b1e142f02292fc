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

	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"

	"github.com/istio-ecosystem/avp-authz/internal/envelope"
)

// Handler is an interface for handling authorization requests.
type Handler interface {
	// Check a normalized request and return exactly one verdict for it.
	Check(ctx context.Context, req envelope.Request) envelope.Verdict
}

// PolicyEngine is the subset of the Verified Permissions client used to make decisions.
// The client returned by verifiedpermissions.NewFromConfig implements it and is safe for
// concurrent use.
type PolicyEngine interface {
	IsAuthorized(ctx context.Context, params *verifiedpermissions.IsAuthorizedInput,
		optFns ...func(*verifiedpermissions.Options)) (*verifiedpermissions.IsAuthorizedOutput, error)
}
