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

package http

const (
	HeaderAuthorization = "authorization"
	HeaderContentType   = "content-type"
	HeaderHost          = "host"
	HeaderXRequestID    = "x-request-id"

	// Mesh-forwarded headers carrying the original client request past the authorization hop.
	HeaderOriginalMethod = "x-original-method"
	HeaderOriginalURI    = "x-original-uri"
	HeaderOriginalHost   = "x-original-host"

	// HTTP/2 pseudo-headers accepted as fallbacks on the raw HTTP transport.
	PseudoHeaderMethod    = ":method"
	PseudoHeaderPath      = ":path"
	PseudoHeaderAuthority = ":authority"

	// Identity and decision markers returned to the proxy.
	HeaderUserID      = "x-user-id"
	HeaderDecision    = "x-avp-decision"
	HeaderValidatedBy = "x-validated-by"

	HeaderContentTypeText = "text/plain"

	DecisionAllow = "ALLOW"
	DecisionDeny  = "DENY"

	ValidatedByVerifiedPermissions = "amazon-verified-permissions"
)
