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

package envelope

// Outcome of an authorization check.
type Outcome int

const (
	Deny Outcome = iota
	Allow
)

func (o Outcome) String() string {
	if o == Allow {
		return "ALLOW"
	}
	return "DENY"
}

// Verdict is the envelope-agnostic result of an authorization check.
type Verdict struct {
	Outcome Outcome
	Status  int
	Message string
	// IdentityHeaders are forwarded to the upstream service on ALLOW. Always empty on DENY.
	IdentityHeaders map[string]string
}

// Allowed returns an ALLOW verdict.
func Allowed(status int, message string, identity map[string]string) Verdict {
	return Verdict{Outcome: Allow, Status: status, Message: message, IdentityHeaders: identity}
}

// Denied returns a DENY verdict with no identity headers.
func Denied(status int, message string) Verdict {
	return Verdict{Outcome: Deny, Status: status, Message: message}
}
