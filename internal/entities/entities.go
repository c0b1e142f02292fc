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

// Package entities builds the principal, action, resource and entity graph
// submitted to the policy engine for every authorization request.
package entities

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions/types"

	"github.com/istio-ecosystem/avp-authz/internal/envelope"
	"github.com/istio-ecosystem/avp-authz/internal/token"
)

// Entity and action types of the ApiAccess policy schema.
const (
	TypeUser     = "ApiAccess::User"
	TypeGroup    = "ApiAccess::Group"
	TypeResource = "ApiAccess::Resource"
	TypeAction   = "ApiAccess::Action"

	UnknownSubject = "unknown"
	resourcePrefix = "resource:"
)

// Ref identifies an entity.
type Ref struct {
	Type string
	ID   string
}

func (r Ref) String() string { return r.Type + "::\"" + r.ID + "\"" }

// Entity is a node of the entity graph.
type Entity struct {
	Ref        Ref
	Attributes map[string]string
	Parents    []Ref
}

// Graph is the set of entities that describe a single request.
type Graph struct {
	User     Entity
	Groups   []Entity
	Resource Entity
}

// ResourceID returns the resource entity id for the given path.
func ResourceID(path string) string { return resourcePrefix + path }

// Build creates the entity graph for the given request and claims. Groups are added in the
// order they appear in the claims, one entity per occurrence.
func Build(req envelope.Request, claims token.ClaimSet) Graph {
	subject := claims.Subject
	if subject == "" {
		subject = UnknownSubject
	}

	g := Graph{
		User: Entity{
			Ref: Ref{Type: TypeUser, ID: subject},
			Attributes: map[string]string{
				"sub": subject,
				"iss": claims.Issuer,
			},
			Parents: make([]Ref, 0, len(claims.Groups)),
		},
		Groups: make([]Entity, 0, len(claims.Groups)),
		Resource: Entity{
			Ref: Ref{Type: TypeResource, ID: ResourceID(req.Path)},
			Attributes: map[string]string{
				"path":   req.Path,
				"method": req.Method,
				"host":   req.Host,
			},
		},
	}

	for _, name := range claims.Groups {
		ref := Ref{Type: TypeGroup, ID: name}
		g.User.Parents = append(g.User.Parents, ref)
		g.Groups = append(g.Groups, Entity{
			Ref:        ref,
			Attributes: map[string]string{"name": name},
		})
	}

	return g
}

// Principal returns the reference to the user entity.
func (g Graph) Principal() Ref { return g.User.Ref }

// Entities returns all the entities of the graph: the user, its groups and the resource.
func (g Graph) Entities() []Entity {
	all := make([]Entity, 0, len(g.Groups)+2)
	all = append(all, g.User)
	all = append(all, g.Groups...)
	return append(all, g.Resource)
}

// Validate checks that every parent of the user is present in the graph as a group entity.
func (g Graph) Validate() error {
	groups := make(map[Ref]struct{}, len(g.Groups))
	for _, e := range g.Groups {
		groups[e.Ref] = struct{}{}
	}
	for _, p := range g.User.Parents {
		if _, ok := groups[p]; !ok {
			return fmt.Errorf("dangling parent reference %s", p)
		}
	}
	return nil
}

// Query builds the IsAuthorized request for the given graph. The action is identified by
// the HTTP method name, and the whole graph is sent as the entity list.
func Query(policyStoreID, method string, g Graph) *verifiedpermissions.IsAuthorizedInput {
	items := make([]types.EntityItem, 0, len(g.Groups)+2)
	for _, e := range g.Entities() {
		items = append(items, entityItem(e))
	}

	in := &verifiedpermissions.IsAuthorizedInput{
		Principal: identifier(g.Principal()),
		Action: &types.ActionIdentifier{
			ActionType: aws.String(TypeAction),
			ActionId:   aws.String(method),
		},
		Resource: identifier(g.Resource.Ref),
		Entities: &types.EntitiesDefinitionMemberEntityList{Value: items},
	}
	// Left unset when empty so the client rejects the request before sending it
	if policyStoreID != "" {
		in.PolicyStoreId = aws.String(policyStoreID)
	}
	return in
}

func identifier(r Ref) *types.EntityIdentifier {
	return &types.EntityIdentifier{
		EntityType: aws.String(r.Type),
		EntityId:   aws.String(r.ID),
	}
}

func entityItem(e Entity) types.EntityItem {
	item := types.EntityItem{
		Identifier: identifier(e.Ref),
		Attributes: make(map[string]types.AttributeValue, len(e.Attributes)),
	}
	for k, v := range e.Attributes {
		item.Attributes[k] = &types.AttributeValueMemberString{Value: v}
	}
	if e.Parents != nil {
		item.Parents = make([]types.EntityIdentifier, 0, len(e.Parents))
		for _, p := range e.Parents {
			item.Parents = append(item.Parents, *identifier(p))
		}
	}
	return item
}
