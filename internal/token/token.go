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

// Package token extracts identity claims from bearer tokens.
//
// Token signatures are never verified here. The claims are only read to build the
// policy engine query, and the expiration check is a local defense-in-depth measure,
// not a trust boundary.
package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jws"
)

const (
	bearerPrefix = "bearer "

	subjectClaim    = "sub"
	issuerClaim     = "iss"
	expirationClaim = "exp"
	groupsClaim     = "groups"
)

var (
	ErrNotBearerScheme = errors.New("not a bearer token")
	ErrNotJWTShape     = errors.New("token is not a three segment JWT")
	ErrInvalidPayload  = errors.New("invalid token payload")
)

// ClaimSet contains the unverified identity claims of a token.
type ClaimSet struct {
	Subject string
	Issuer  string
	// ExpiresAt is the expiration time in seconds since the epoch, if the token has one.
	ExpiresAt *int64
	// Groups is never nil for a parsed token, even when the token encodes a single group.
	Groups []string
}

// Expired returns true if the claim set has an expiration time before the given instant,
// compared at second resolution.
func (c ClaimSet) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && *c.ExpiresAt < now.Unix()
}

// IsBearer returns true if the given Authorization header value uses the Bearer scheme.
func IsBearer(authorization string) bool {
	return len(authorization) >= len(bearerPrefix) &&
		strings.EqualFold(authorization[:len(bearerPrefix)], bearerPrefix)
}

// Extract reads the claims from the bearer token in the given Authorization header value.
// Any failure returns an empty ClaimSet and an error wrapping one of ErrNotBearerScheme,
// ErrNotJWTShape or ErrInvalidPayload.
func Extract(authorization string) (ClaimSet, error) {
	if !IsBearer(authorization) {
		return ClaimSet{}, ErrNotBearerScheme
	}

	_, payload, _, err := jws.SplitCompact([]byte(authorization[len(bearerPrefix):]))
	if err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %w", ErrNotJWTShape, err)
	}

	decoded, err := decodeSegment(string(payload))
	if err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return parseClaims(decoded)
}

// decodeSegment base64url-decodes a token segment, padding it to a multiple of 4 first.
func decodeSegment(segment string) ([]byte, error) {
	if n := len(segment) % 4; n != 0 {
		segment += strings.Repeat("=", 4-n)
	}
	return base64.URLEncoding.DecodeString(segment)
}

// parseClaims reads the claims used to build the policy engine query. Only "sub", "iss",
// "exp" and "groups" are interpreted; every other claim is ignored whatever its type.
func parseClaims(payload []byte) (ClaimSet, error) {
	var all map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&all); err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if dec.More() {
		return ClaimSet{}, fmt.Errorf("%w: trailing data after claims", ErrInvalidPayload)
	}
	if len(all) == 0 {
		return ClaimSet{}, fmt.Errorf("%w: no claims", ErrInvalidPayload)
	}

	claims := ClaimSet{
		Subject: stringClaim(all[subjectClaim]),
		Issuer:  stringClaim(all[issuerClaim]),
		Groups:  []string{},
	}

	if raw, ok := all[expirationClaim]; ok && raw != nil {
		seconds, err := numericDate(raw)
		if err != nil {
			return ClaimSet{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		// An "exp" of 0 is treated as absent
		if seconds != 0 {
			claims.ExpiresAt = &seconds
		}
	}

	if raw, ok := all[groupsClaim]; ok {
		claims.Groups = toGroups(raw)
	}

	return claims, nil
}

func stringClaim(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// numericDate returns the whole seconds of a JSON numeric date, dropping any fraction.
func numericDate(raw interface{}) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%q claim is not a number", expirationClaim)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("%q claim: %w", expirationClaim, err)
	}
	return int64(f), nil
}

// toGroups normalizes the groups claim into a list, preserving order and duplicates.
func toGroups(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string{}, v...)
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, g := range v {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			} else {
				groups = append(groups, fmt.Sprint(g))
			}
		}
		return groups
	default:
		return []string{}
	}
}
