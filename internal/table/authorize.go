package table

import (
	"sort"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
)

// AuthorizeRow checks the table's row authorization. row is the stored row, or the candidate for inserts.
func (t *Table) AuthorizeRow(mode internal.RowMode, row internal.Row, uc *internal.UsageContext, fallbackOwner int64) (bool, error) {
	return auth.Check(t.auth, auth.Request{
		Context: t.authContext(mode, row, uc, fallbackOwner),
		UC:      uc,
		Row:     row,
	})
}

func (t *Table) authContext(mode internal.RowMode, row internal.Row, uc *internal.UsageContext, fallbackOwner int64) auth.Context {
	isOwner := auth.IsOwner(uc.ActingUserID(), t.OwnerID(row, fallbackOwner))
	return auth.ResolveContext(mode, isOwner)
}

// AuthorizeModelInput is the input to AuthorizeModel.
type AuthorizeModelInput struct {
	// Model is the client model to split.
	Model internal.Row
	// Row is the stored row used for ownership, nil for inserts.
	Row           internal.Row
	Mode          internal.RowMode
	UC            *internal.UsageContext
	FallbackOwner int64
}

// AuthorizedModel splits a model into authorized, unauthorized and unknown keys.
type AuthorizedModel struct {
	Authorized   internal.Row
	Unauthorized internal.Row
	// Unknown holds keys no field declares.
	Unknown internal.Row

	AuthorizedColumnCount   int
	UnauthorizedColumnCount int
	UnknownColumnCount      int
}

// UnauthorizedMembers returns the stripped keys, sorted.
func (m *AuthorizedModel) UnauthorizedMembers() []string {
	res := make([]string, 0, len(m.Unauthorized))
	for k := range m.Unauthorized {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// AuthorizeModel applies column authorization to a model. The primary key is always kept.
func (t *Table) AuthorizeModel(in AuthorizeModelInput) (*AuthorizedModel, error) {
	res := &AuthorizedModel{
		Authorized:   make(internal.Row, len(in.Model)),
		Unauthorized: make(internal.Row),
		Unknown:      make(internal.Row),
	}
	ownerRow := in.Row
	if ownerRow == nil {
		ownerRow = in.Model
	}
	ctx := t.authContext(in.Mode, ownerRow, in.UC, in.FallbackOwner)
	for _, key := range t.unknownKeys(in.Model) {
		res.Unknown[key] = in.Model[key]
		res.UnknownColumnCount++
	}
	for _, f := range t.fields {
		keys := presentKeys(f, in.Model)
		if len(keys) == 0 {
			continue
		}
		ok := f == t.pk
		if !ok {
			var err error
			ok, err = f.Authorize(AuthorizeInput{Context: ctx, UC: in.UC, Row: in.Row, Model: in.Model})
			if err != nil {
				return nil, err
			}
		}
		for _, k := range keys {
			if ok {
				res.Authorized[k] = in.Model[k]
				res.AuthorizedColumnCount++
			} else {
				res.Unauthorized[k] = in.Model[k]
				res.UnauthorizedColumnCount++
			}
		}
	}
	if res.UnknownColumnCount > 0 {
		internal.UnknownColumns.WithLabelValues(t.id).Add(float64(res.UnknownColumnCount))
	}
	if res.UnauthorizedColumnCount > 0 {
		internal.StrippedColumns.WithLabelValues(t.id).Add(float64(res.UnauthorizedColumnCount))
	}
	return res, nil
}

// presentKeys returns the keys of row which belong to f.
func presentKeys(f Field, row internal.Row) []string {
	var keys []string
	if row.Has(f.Member()) {
		keys = append(keys, f.Member())
	}
	if sm := f.StoreMember(); sm != f.Member() && row.Has(sm) {
		keys = append(keys, sm)
	}
	return keys
}

// unknownKeys returns the keys of row no field declares, sorted.
func (t *Table) unknownKeys(row internal.Row) []string {
	var keys []string
	for k := range row {
		if t.Field(k) == nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
