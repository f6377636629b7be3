package internal

import (
	"time"

	"github.com/google/uuid"
)

// Row is a client or store model keyed by member name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	res := make(Row, len(r))
	for k, v := range r {
		res[k] = v
	}
	return res
}

// Has returns true if the member key is present, even when its value is nil.
func (r Row) Has(member string) bool {
	_, ok := r[member]
	return ok
}

// RowMode governs which validations and authorizations apply to a model.
type RowMode string

const (
	RowModeNew    RowMode = "new"
	RowModeView   RowMode = "view"
	RowModeUpdate RowMode = "update"
)

// Intention is the purpose of a request.
type Intention string

const (
	IntentionPublic Intention = "public"
	IntentionUser   Intention = "user"
	IntentionAdmin  Intention = "admin"
)

// Mode distinguishes the primary table of a request from tables reached through a relation.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeRelation Mode = "relation"
)

// User is the acting user of a request.
type User struct {
	ID          int64    `json:"id" msgpack:"id"`
	Name        string   `json:"name,omitempty" msgpack:"name,omitempty"`
	IsSysAdmin  bool     `json:"sysadmin,omitempty" msgpack:"sysadmin,omitempty"`
	Permissions []string `json:"permissions,omitempty" msgpack:"permissions,omitempty"`
}

// HasPermission returns true if the user holds the permission. Sysadmins hold every permission.
func (u *User) HasPermission(permission string) bool {
	if u == nil {
		return false
	}
	if u.IsSysAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// UsageContext is per-request metadata threaded through every table operation.
type UsageContext struct {
	Intention    Intention
	Mode         Mode
	User         *User
	RelationPath []string
	RequestID    string
	Now          time.Time
}

// NewUsageContext returns a primary-mode context for the user, which may be nil for anonymous requests.
func NewUsageContext(intention Intention, user *User) *UsageContext {
	return &UsageContext{
		Intention: intention,
		Mode:      ModePrimary,
		User:      user,
		RequestID: uuid.NewString(),
		Now:       time.Now().UTC(),
	}
}

// WithRelation returns a copy of the context in relation mode with the member appended to the relation path.
func (uc *UsageContext) WithRelation(member string) *UsageContext {
	if uc == nil {
		uc = NewUsageContext(IntentionPublic, nil)
	}
	res := *uc
	res.Mode = ModeRelation
	res.RelationPath = append(append([]string{}, uc.RelationPath...), member)
	return &res
}

// ActingUserID returns the id of the acting user or 0 when anonymous.
func (uc *UsageContext) ActingUserID() int64 {
	if uc == nil || uc.User == nil {
		return 0
	}
	return uc.User.ID
}

// IsSysAdmin returns true if the acting user is a sysadmin.
func (uc *UsageContext) IsSysAdmin() bool {
	return uc != nil && uc.User != nil && uc.User.IsSysAdmin
}

// Clock returns the request time, falling back to the wall clock.
func (uc *UsageContext) Clock() time.Time {
	if uc == nil || uc.Now.IsZero() {
		return time.Now().UTC()
	}
	return uc.Now
}
