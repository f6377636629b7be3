package auth

import (
	"github.com/shopmonkeyus/tablekit/internal"
)

// Context is one of the five situations in which a row or column is authorized.
type Context int

const (
	PostQuery Context = iota
	PostQueryAsOwner
	PreInsert
	PreMutate
	PreMutateAsOwner
)

// Contexts lists every authorization context.
var Contexts = []Context{PostQuery, PostQueryAsOwner, PreInsert, PreMutate, PreMutateAsOwner}

func (c Context) String() string {
	switch c {
	case PostQuery:
		return "postQuery"
	case PostQueryAsOwner:
		return "postQueryAsOwner"
	case PreInsert:
		return "preInsert"
	case PreMutate:
		return "preMutate"
	case PreMutateAsOwner:
		return "preMutateAsOwner"
	}
	return "unknown"
}

// ParseContext returns the context for its string form.
func ParseContext(val string) (Context, bool) {
	for _, c := range Contexts {
		if c.String() == val {
			return c, true
		}
	}
	return 0, false
}

const (
	// Public is granted to everyone including anonymous users.
	Public = "public"
	// LoggedIn is granted to any acting user with an id.
	LoggedIn = "login"
	// Never is granted to nobody but sysadmins.
	Never = "never"
)

// IsOwner returns true if the acting user owns a row.
func IsOwner(actingUserID, ownerID int64) bool {
	return actingUserID > 0 && actingUserID == ownerID
}

// ResolveContext maps a row mode and ownership to an authorization context.
func ResolveContext(mode internal.RowMode, isOwner bool) Context {
	switch mode {
	case internal.RowModeNew:
		return PreInsert
	case internal.RowModeUpdate:
		if isOwner {
			return PreMutateAsOwner
		}
		return PreMutate
	default:
		if isOwner {
			return PostQueryAsOwner
		}
		return PostQuery
	}
}

// HasPermission returns true if the acting user of uc holds permission.
func HasPermission(uc *internal.UsageContext, permission string) bool {
	switch permission {
	case "", Never:
		return uc.IsSysAdmin()
	case Public:
		return true
	case LoggedIn:
		return uc.ActingUserID() > 0
	}
	if uc == nil {
		return false
	}
	return uc.User.HasPermission(permission)
}

// Request is the input to a permission check.
type Request struct {
	Context Context
	UC      *internal.UsageContext
	// Row is the stored row being authorized, nil for inserts.
	Row internal.Row
	// Model is the incoming client model, if any.
	Model internal.Row
	// Member names the field being authorized, empty for row checks.
	Member string
	// Exempt allows a zero spec to pass.
	Exempt bool
}

// Check evaluates spec for the request.
func Check(spec Spec, req Request) (bool, error) {
	if spec.IsZero() {
		if req.Exempt {
			return true, nil
		}
		if req.Member != "" {
			return false, internal.ConfigErrorf("no authorization specified for field %s", req.Member)
		}
		return false, internal.ConfigErrorf("no authorization specified for row")
	}
	if req.UC.IsSysAdmin() {
		return true, nil
	}
	if spec.predicate != nil {
		return spec.predicate(req), nil
	}
	permission, ok := spec.permissions[req.Context]
	if !ok {
		return false, nil
	}
	return HasPermission(req.UC, permission), nil
}
