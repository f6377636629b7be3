package auth

import (
	"fmt"
	"sort"
	"strings"
)

// PermissionMap maps each context to the permission required in it. A missing context is denied.
type PermissionMap map[Context]string

// Predicate decides a request on its own, replacing the permission map.
type Predicate func(req Request) bool

// Spec is either a permission map or a custom predicate. The zero Spec specifies nothing.
type Spec struct {
	permissions PermissionMap
	predicate   Predicate
}

// Permissions returns a permission map spec.
func Permissions(m PermissionMap) Spec {
	res := make(PermissionMap, len(m))
	for k, v := range m {
		res[k] = v
	}
	return Spec{permissions: res}
}

// Uniform returns a spec requiring the same permission in every context.
func Uniform(permission string) Spec {
	m := make(PermissionMap, len(Contexts))
	for _, c := range Contexts {
		m[c] = permission
	}
	return Spec{permissions: m}
}

// ReadWrite returns a spec with one permission for the post-query contexts and another for the pre-insert and pre-mutate contexts.
func ReadWrite(read, write string) Spec {
	return Spec{permissions: PermissionMap{
		PostQuery:        read,
		PostQueryAsOwner: read,
		PreInsert:        write,
		PreMutate:        write,
		PreMutateAsOwner: write,
	}}
}

// Custom returns a predicate spec.
func Custom(p Predicate) Spec {
	return Spec{predicate: p}
}

// IsZero returns true when neither variant is set.
func (s Spec) IsZero() bool {
	return s.predicate == nil && s.permissions == nil
}

// IsCustom returns true for the predicate variant.
func (s Spec) IsCustom() bool {
	return s.predicate != nil
}

// Permission returns the permission for a context of a permission map spec.
func (s Spec) Permission(c Context) (string, bool) {
	if s.permissions == nil {
		return "", false
	}
	p, ok := s.permissions[c]
	return p, ok
}

func (s Spec) String() string {
	if s.predicate != nil {
		return "custom"
	}
	if s.permissions == nil {
		return "none"
	}
	parts := make([]string, 0, len(s.permissions))
	for c, p := range s.permissions {
		parts = append(parts, fmt.Sprintf("%s=%s", c, p))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
