package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// Status is the outcome of ValidateAndParse.
type Status int

const (
	// StatusUndefined means the field was absent from the input.
	StatusUndefined Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "undefined"
}

// Result is the tri-state outcome of validating one field of a row.
type Result struct {
	Status Status
	// Values holds the sanitized values keyed by member, on success.
	Values internal.Row
	// Original is the input value, on error.
	Original any
	Message  string
}

// Success returns a successful result.
func Success(values internal.Row) Result {
	return Result{Status: StatusSuccess, Values: values}
}

// Failure returns an error result.
func Failure(original any, message string) Result {
	return Result{Status: StatusError, Original: original, Message: message}
}

// Undefined returns the result for an absent field.
func Undefined() Result {
	return Result{Status: StatusUndefined}
}

// Kind identifies a field implementation.
type Kind string

const (
	KindPK         Kind = "pk"
	KindInt        Kind = "int"
	KindString     Kind = "string"
	KindBool       Kind = "bool"
	KindDateTime   Kind = "datetime"
	KindEnum       Kind = "enum"
	KindColor      Kind = "color"
	KindForeign    Kind = "foreign"
	KindTags       Kind = "tags"
	KindGhost      Kind = "ghost"
	KindCreatedAt  Kind = "createdAt"
	KindUpdatedAt  Kind = "updatedAt"
	KindRevision   Kind = "revision"
	KindCreatedBy  Kind = "createdBy"
	KindSortOrder  Kind = "sortOrder"
	KindDateSearch Kind = "dateSearch"
)

// Special is a well-known role a field plays in its table.
type Special string

const (
	SpecialNone              Special = ""
	SpecialPK                Special = "pk"
	SpecialSortOrder         Special = "sortOrder"
	SpecialColor             Special = "color"
	SpecialIcon              Special = "icon"
	SpecialIsDeleted         Special = "isDeleted"
	SpecialOwner             Special = "owner"
	SpecialCreatedBy         Special = "createdBy"
	SpecialCreatedAt         Special = "createdAt"
	SpecialUpdatedAt         Special = "updatedAt"
	SpecialRevision          Special = "revision"
	SpecialVisiblePermission Special = "visiblePermission"
	SpecialLabel             Special = "label"
)

// AuthExempt returns true for timestamp and audit-user roles, which need no authorization spec.
func (s Special) AuthExempt() bool {
	switch s {
	case SpecialCreatedAt, SpecialUpdatedAt, SpecialRevision, SpecialCreatedBy:
		return true
	}
	return false
}

// Options are shared by every field kind.
type Options struct {
	// Member is the client-facing key, and the column unless FKMember is set.
	Member string
	// FKMember is the column holding the scalar key of an object-valued member.
	FKMember string
	Label    string
	Default  any
	Special  Special
	Auth     auth.Spec
	Nullable bool
}

// Behavior is the tag of a discrete criterion.
type Behavior string

const (
	AlwaysMatch     Behavior = "alwaysMatch"
	HasAny          Behavior = "hasAny"
	HasNone         Behavior = "hasNone"
	HasSomeOf       Behavior = "hasSomeOf"
	HasAllOf        Behavior = "hasAllOf"
	DoesntHaveAnyOf Behavior = "doesntHaveAnyOf"
	DoesntHaveAllOf Behavior = "doesntHaveAllOf"
)

// Behaviors lists every behavior.
var Behaviors = []Behavior{AlwaysMatch, HasAny, HasNone, HasSomeOf, HasAllOf, DoesntHaveAnyOf, DoesntHaveAllOf}

// TakesOptions returns true for behaviors which operate on an option list.
func (b Behavior) TakesOptions() bool {
	switch b {
	case HasSomeOf, HasAllOf, DoesntHaveAnyOf, DoesntHaveAllOf:
		return true
	}
	return false
}

// Criterion is a set-membership filter against a field's values. A nil option selects the empty bucket.
type Criterion struct {
	Behavior Behavior `json:"behavior" mapstructure:"behavior"`
	Options  []any    `json:"options,omitempty" mapstructure:"options"`
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) sql() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Sort orders by one member.
type Sort struct {
	Member    string    `json:"member" mapstructure:"member"`
	Direction Direction `json:"direction,omitempty" mapstructure:"direction"`
}

// Param is a parameterized filter for a scalar field.
type Param struct {
	Equals any `json:"equals,omitempty" mapstructure:"equals"`
	Min    any `json:"min,omitempty" mapstructure:"min"`
	Max    any `json:"max,omitempty" mapstructure:"max"`
}

// Filter is the read-path request.
type Filter struct {
	// Query is the free-text quick filter.
	Query          string               `json:"query,omitempty" mapstructure:"query"`
	Criteria       map[string]Criterion `json:"criteria,omitempty" mapstructure:"criteria"`
	Params         map[string]Param     `json:"params,omitempty" mapstructure:"params"`
	IncludeDeleted bool                 `json:"includeDeleted,omitempty" mapstructure:"includeDeleted"`
	Sort           []Sort               `json:"sort,omitempty" mapstructure:"sort"`
	Limit          int                  `json:"limit,omitempty" mapstructure:"limit"`
	Offset         int                  `json:"offset,omitempty" mapstructure:"offset"`
}

// Scope is what a field needs to render SQL: the dialect, the alias of its table, and the usage context.
type Scope struct {
	Dialect sqlq.Dialect
	Alias   string
	UC      *internal.UsageContext
}

// Column returns the qualified, quoted column for member.
func (s Scope) Column(member string) string {
	return sqlq.Ident(s.Dialect, s.Alias, member)
}

// Ident quotes a bare identifier.
func (s Scope) Ident(name string) string {
	return s.Dialect.QuoteIdentifier(name)
}

// WithAlias returns a copy of the scope for another alias.
func (s Scope) WithAlias(alias string) Scope {
	s.Alias = alias
	return s
}

// AuthorizeInput is the input to Field.Authorize.
type AuthorizeInput struct {
	Context auth.Context
	UC      *internal.UsageContext
	Row     internal.Row
	Model   internal.Row
}

// Include is a nested relation load. Fields push their visibility and soft-delete filtering into Where.
type Include struct {
	Member string
	Table  *Table
	Scope  Scope
	Where  []sqlq.Fragment
}
