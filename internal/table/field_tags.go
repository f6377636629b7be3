package table

import (
	"reflect"
	"strings"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// MockAssociationID is the id of an association which has not been persisted yet.
const MockAssociationID int64 = -1

// TagsOptions configure a TagsField.
type TagsOptions struct {
	Options
	// AssociationTable is the store name of the bridge table.
	AssociationTable string
	// LocalMember is the bridge column referencing this table's key.
	LocalMember string
	// ForeignMember is the bridge column referencing the foreign table's key.
	ForeignMember string
	// ForeignTable is the id of the foreign table.
	ForeignTable string
	// ForeignObjectMember holds the resolved foreign row inside an association record.
	ForeignObjectMember string
	// IDMember is the bridge table's key column.
	IDMember string
}

// TagsField is a many-to-many association exposed as a list of association records.
// It has no column of its own; the bridge table is maintained by association statements.
type TagsField struct {
	base
	assoc         string
	localMember   string
	foreignMember string
	objectMember  string
	idMember      string
	foreignID     string
	foreign       *Table
}

var _ Field = (*TagsField)(nil)

func NewTagsField(opts TagsOptions) *TagsField {
	if opts.IDMember == "" {
		opts.IDMember = "id"
	}
	if opts.ForeignObjectMember == "" {
		opts.ForeignObjectMember = strings.TrimSuffix(opts.ForeignMember, "Id")
		if opts.ForeignObjectMember == opts.ForeignMember || opts.ForeignObjectMember == "" {
			opts.ForeignObjectMember = "foreign"
		}
	}
	opts.Nullable = true
	return &TagsField{
		base:          newBase(opts.Options),
		assoc:         opts.AssociationTable,
		localMember:   opts.LocalMember,
		foreignMember: opts.ForeignMember,
		objectMember:  opts.ForeignObjectMember,
		idMember:      opts.IDMember,
		foreignID:     opts.ForeignTable,
	}
}

func (f *TagsField) Kind() Kind      { return KindTags }
func (f *TagsField) HasColumn() bool { return false }

// ForeignTable returns the tagged table once the registry is built.
func (f *TagsField) ForeignTable() *Table { return f.foreign }

// AssociationTable returns the store name of the bridge table.
func (f *TagsField) AssociationTable() string { return f.assoc }

// Bridge table columns.
func (f *TagsField) IDMember() string      { return f.idMember }
func (f *TagsField) LocalMember() string   { return f.localMember }
func (f *TagsField) ForeignMember() string { return f.foreignMember }

func (f *TagsField) ConnectToTable(t *Table) error {
	if f.assoc == "" || f.localMember == "" || f.foreignMember == "" {
		return internal.ConfigErrorf("tags field %s needs an association table with local and foreign members", f.opts.Member)
	}
	return f.base.ConnectToTable(t)
}

func (f *TagsField) resolve(r *Registry) error {
	t, ok := r.Table(f.foreignID)
	if !ok {
		return internal.ConfigErrorf("tags field %s.%s references unknown table %s", f.table.id, f.opts.Member, f.foreignID)
	}
	f.foreign = t
	return nil
}

func (f *TagsField) foreignPK() string {
	if f.foreign != nil {
		return f.foreign.PKMember()
	}
	return "id"
}

// NewMockAssociation returns an unsaved association record.
func (f *TagsField) NewMockAssociation(localID, foreignID any, object internal.Row) internal.Row {
	rec := internal.Row{
		f.idMember:      MockAssociationID,
		f.localMember:   localID,
		f.foreignMember: normalizeKey(foreignID),
	}
	if object != nil {
		rec[f.objectMember] = object
	}
	return rec
}

// IsMock returns true if the record has not been persisted.
func (f *TagsField) IsMock(rec internal.Row) bool {
	id, ok := rec[f.idMember]
	return !ok || isNil(id) || keysEqual(id, MockAssociationID)
}

// foreignIDOf returns the foreign key of an association record, object or raw id.
func (f *TagsField) foreignIDOf(val any) (any, bool) {
	if isNil(val) {
		return nil, false
	}
	if rec, ok := toRow(val); ok {
		if id, ok := rec[f.foreignMember]; ok && !isNil(id) {
			return normalizeKey(id), true
		}
		obj, ok := toRow(rec[f.objectMember])
		if !ok {
			if f.isAssociation(rec) {
				return nil, false
			}
			obj = rec
		}
		if id, ok := obj[f.foreignPK()]; ok && !isNil(id) {
			return normalizeKey(id), true
		}
		return nil, false
	}
	return scalarKey(val)
}

// isAssociation is false for a bare foreign object such as {id: 1}.
func (f *TagsField) isAssociation(rec internal.Row) bool {
	_, hasFK := rec[f.foreignMember]
	_, hasObj := rec[f.objectMember]
	return hasFK || hasObj
}

// ForeignIDs reduces a list of raw ids or association records to distinct foreign keys.
func (f *TagsField) ForeignIDs(val any) ([]any, bool) {
	if isNil(val) {
		return []any{}, true
	}
	list, ok := toList(val)
	if !ok {
		return nil, false
	}
	ids := make([]any, 0, len(list))
	seen := make(map[any]bool, len(list))
	for _, item := range list {
		id, ok := f.foreignIDOf(item)
		if !ok {
			return nil, false
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, true
}

func (f *TagsField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return Success(internal.Row{f.opts.Member: []internal.Row{}})
	}
	list, ok := toList(val)
	if !ok {
		return Failure(val, "expected a list")
	}
	var localID any
	if f.table != nil {
		localID = row[f.table.PKMember()]
	}
	recs := make([]internal.Row, 0, len(list))
	seen := make(map[any]bool, len(list))
	for _, item := range list {
		id, ok := f.foreignIDOf(item)
		if !ok {
			return Failure(val, "expected a list")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if rec, isRow := toRow(item); isRow && !f.isAssociation(rec) {
			recs = append(recs, f.NewMockAssociation(localID, id, rec))
		} else if isRow {
			rec = rec.Clone()
			rec[f.foreignMember] = id
			if _, ok := rec[f.idMember]; !ok {
				rec[f.idMember] = MockAssociationID
			}
			recs = append(recs, rec)
		} else {
			recs = append(recs, f.NewMockAssociation(localID, id, nil))
		}
	}
	return Success(internal.Row{f.opts.Member: recs})
}

func (f *TagsField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = []internal.Row{}
}

// IsEqual compares the foreign key sets; order and mock ids are irrelevant.
func (f *TagsField) IsEqual(a, b any) bool {
	x, xok := f.ForeignIDs(a)
	y, yok := f.ForeignIDs(b)
	if !xok && !yok {
		return reflect.DeepEqual(a, b)
	}
	if !xok || !yok || len(x) != len(y) {
		return false
	}
	sortKeys(x)
	sortKeys(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// AssociationChanges returns the foreign keys added and removed between two lists.
func (f *TagsField) AssociationChanges(prev, next any) (added []any, removed []any) {
	before, _ := f.ForeignIDs(prev)
	after, _ := f.ForeignIDs(next)
	had := make(map[any]bool, len(before))
	for _, id := range before {
		had[id] = true
	}
	has := make(map[any]bool, len(after))
	for _, id := range after {
		has[id] = true
		if !had[id] {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !has[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// StoreToClient maps the loaded association records, resolving foreign objects through the foreign table.
func (f *TagsField) StoreToClient(store, client internal.Row, uc *internal.UsageContext) {
	val, ok := store[f.opts.Member]
	if !ok {
		return
	}
	list, _ := toList(val)
	recs := make([]internal.Row, 0, len(list))
	for _, item := range list {
		rec, ok := toRow(item)
		if !ok {
			if id, ok := f.foreignIDOf(item); ok {
				recs = append(recs, f.NewMockAssociation(store[f.table.PKMember()], id, nil))
			}
			continue
		}
		rec = rec.Clone()
		if obj, ok := toRow(rec[f.objectMember]); ok && f.foreign != nil {
			rec[f.objectMember] = f.foreign.StoreToClient(obj, uc.WithRelation(f.opts.Member))
		}
		recs = append(recs, rec)
	}
	client[f.opts.Member] = recs
}

// ClientToStore reduces the list to foreign keys.
func (f *TagsField) ClientToStore(client, store internal.Row, mode internal.RowMode) {
	val, ok := client[f.opts.Member]
	if !ok {
		return
	}
	if ids, ok := f.ForeignIDs(val); ok {
		store[f.opts.Member] = ids
	}
}

func (f *TagsField) subAlias(s Scope) string {
	return s.Alias + "_" + f.opts.Member
}

// exists returns an existence test for associations of the row in scope, restricted by extra.
func (f *TagsField) exists(s Scope, extra sqlq.Fragment) sqlq.Fragment {
	a := f.subAlias(s)
	var b sqlq.Builder
	b.WriteString("SELECT 1 FROM " + s.Ident(f.assoc) + " AS " + s.Ident(a))
	b.WriteString(" WHERE " + sqlq.Ident(s.Dialect, a, f.localMember) + " = " + s.Column(f.table.PKMember()))
	if !extra.IsEmpty() {
		b.WriteString(" AND ").Write(extra)
	}
	return b.Fragment()
}

func (f *TagsField) foreignColumn(s Scope) string {
	return sqlq.Ident(s.Dialect, f.subAlias(s), f.foreignMember)
}

// QuickFilterFragmentForToken matches rows tagged with a foreign row whose label contains the token.
func (f *TagsField) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	if f.foreign == nil || f.foreign.LabelField() == nil {
		return sqlq.Empty
	}
	ft := f.subAlias(s) + "_f"
	label := sqlq.Ident(s.Dialect, ft, f.foreign.LabelField().StoreMember())
	var b sqlq.Builder
	b.WriteString("SELECT 1 FROM " + s.Ident(f.foreign.name) + " AS " + s.Ident(ft))
	b.WriteString(" WHERE " + sqlq.Ident(s.Dialect, ft, f.foreign.PKMember()) + " = " + f.foreignColumn(s))
	b.WriteString(" AND ").Write(sqlq.ContainsInsensitive(s.Dialect, label, token))
	return sqlq.Exists(f.exists(s, sqlq.Exists(b.Fragment())))
}

func (f *TagsField) SupportsBehavior(b Behavior) bool {
	switch b {
	case AlwaysMatch, HasAny, HasNone, HasSomeOf, HasAllOf, DoesntHaveAnyOf, DoesntHaveAllOf:
		return true
	}
	return false
}

// DiscreteCriterionFragment maps behaviors onto association existence tests. The nil option means untagged.
func (f *TagsField) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	switch c.Behavior {
	case AlwaysMatch, "":
		return sqlq.Empty, nil
	case HasAny:
		return sqlq.Exists(f.exists(s, sqlq.Empty)), nil
	case HasNone:
		return sqlq.NotExists(f.exists(s, sqlq.Empty)), nil
	case HasSomeOf, HasAllOf, DoesntHaveAnyOf, DoesntHaveAllOf:
	default:
		return sqlq.Empty, unknownBehavior(f.opts.Member, c.Behavior)
	}
	if len(c.Options) == 0 {
		return sqlq.Problem(selectOptionsMessage), nil
	}
	vals, hasNull := splitOptions(c.Options, normalizeKey)
	col := f.foreignColumn(s)
	tagged := sqlq.Exists(f.exists(s, sqlq.Empty))
	untagged := sqlq.NotExists(f.exists(s, sqlq.Empty))
	var parts []sqlq.Fragment
	switch c.Behavior {
	case HasSomeOf:
		if len(vals) > 0 {
			parts = append(parts, sqlq.Exists(f.exists(s, sqlq.In(col, vals))))
		}
		if hasNull {
			parts = append(parts, untagged)
		}
		return sqlq.Or(parts...), nil
	case HasAllOf:
		for _, v := range vals {
			parts = append(parts, sqlq.Exists(f.exists(s, sqlq.Expr(col+" = ?", v))))
		}
		if hasNull {
			parts = append(parts, untagged)
		}
		return sqlq.And(parts...), nil
	case DoesntHaveAnyOf:
		if len(vals) > 0 {
			parts = append(parts, sqlq.NotExists(f.exists(s, sqlq.In(col, vals))))
		}
		if hasNull {
			parts = append(parts, tagged)
		}
		return sqlq.And(parts...), nil
	}
	for _, v := range vals {
		parts = append(parts, sqlq.NotExists(f.exists(s, sqlq.Expr(col+" = ?", v))))
	}
	if hasNull {
		parts = append(parts, tagged)
	}
	return sqlq.Or(parts...), nil
}

// FacetQuery buckets by foreign key: untagged rows first, then one bucket per tag.
func (f *TagsField) FacetQuery(in FacetInput) *FacetQuery {
	s := in.Scope
	a := f.subAlias(s)
	col := f.foreignColumn(s)
	labelExpr := "NULL"
	var joins sqlq.Builder
	if f.foreign != nil && f.foreign.LabelField() != nil {
		ft := a + "_f"
		labelExpr = "MAX(" + sqlq.Ident(s.Dialect, ft, f.foreign.LabelField().StoreMember()) + ")"
		// tags pointing at rows hidden from the foreign table get no bucket
		joins.WriteString(" JOIN " + s.Ident(f.foreign.name) + " AS " + s.Ident(ft) + " ON ")
		joins.Write(sqlq.And(
			sqlq.Raw(sqlq.Ident(s.Dialect, ft, f.foreign.PKMember())+" = "+col),
			f.foreign.overallWhere(&Filter{}, s.WithAlias(ft)),
		))
	}
	var b sqlq.Builder
	b.WriteString("SELECT ").WriteString(facetColumns(s, "NULL", "NULL"))
	b.WriteString(" FROM ").WriteString(facetFrom(s))
	b.WriteString(" WHERE ").Write(sqlq.NotExists(f.exists(s, sqlq.Empty)))
	b.WriteString(" UNION ALL ")
	b.WriteString("SELECT ").WriteString(facetColumns(s, col, labelExpr))
	b.WriteString(" FROM ").WriteString(facetFrom(s))
	b.WriteString(" JOIN " + s.Ident(f.assoc) + " AS " + s.Ident(a) + " ON " + sqlq.Ident(s.Dialect, a, f.localMember) + " = " + s.Column(f.table.PKMember()))
	b.Write(joins.Fragment())
	b.WriteString(" GROUP BY " + col)
	return &FacetQuery{Member: f.opts.Member, Query: b.Fragment(), Transform: simpleFacets}
}

func (f *TagsField) ApplyIncludeFiltering(include *Include, uc *internal.UsageContext) {
	if f.foreign == nil {
		return
	}
	include.Where = append(include.Where, f.foreign.overallWhere(&Filter{}, include.Scope))
}

// LoadQuery selects the association records of the given local keys whose foreign rows are visible.
// Result columns are the id, local and foreign members of the bridge table.
func (f *TagsField) LoadQuery(localIDs []any, uc *internal.UsageContext, d sqlq.Dialect) sqlq.Fragment {
	const a = "a"
	s := Scope{Dialect: d, Alias: a, UC: uc}
	var b sqlq.Builder
	b.WriteString("SELECT " + s.Column(f.idMember) + ", " + s.Column(f.localMember) + ", " + s.Column(f.foreignMember))
	b.WriteString(" FROM " + s.Ident(f.assoc) + " AS " + s.Ident(a))
	where := sqlq.In(s.Column(f.localMember), localIDs)
	if f.foreign != nil {
		include := &Include{Member: f.opts.Member, Table: f.foreign, Scope: s.WithAlias(a + "_f")}
		f.ApplyIncludeFiltering(include, uc)
		if visible := sqlq.And(include.Where...); !visible.IsEmpty() {
			var sub sqlq.Builder
			sub.WriteString("SELECT 1 FROM " + s.Ident(f.foreign.name) + " AS " + s.Ident(include.Scope.Alias) + " WHERE ")
			sub.Write(sqlq.And(sqlq.Raw(include.Scope.Column(f.foreign.PKMember())+" = "+s.Column(f.foreignMember)), visible))
			where = sqlq.And(where, sqlq.Exists(sub.Fragment()))
		}
	}
	b.WriteString(" WHERE ").Write(where)
	b.WriteString(" ORDER BY " + s.Column(f.localMember) + ", " + s.Column(f.idMember))
	return b.Fragment()
}

// Record builds an association record from a loaded bridge row and its foreign object, which may be nil.
func (f *TagsField) Record(id, localID, foreignID any, object internal.Row) internal.Row {
	rec := internal.Row{f.idMember: id, f.localMember: localID, f.foreignMember: normalizeKey(foreignID)}
	if object != nil {
		rec[f.objectMember] = object
	}
	return rec
}

// AssociationStatements returns the bridge table deletes and inserts turning prev into next for localID.
func (f *TagsField) AssociationStatements(localID any, added, removed []any, d sqlq.Dialect) []sqlq.Fragment {
	var stmts []sqlq.Fragment
	if len(removed) > 0 {
		var b sqlq.Builder
		b.WriteString("DELETE FROM " + d.QuoteIdentifier(f.assoc) + " WHERE ")
		b.Write(sqlq.And(
			sqlq.Expr(d.QuoteIdentifier(f.localMember)+" = ?", localID),
			sqlq.In(d.QuoteIdentifier(f.foreignMember), removed),
		))
		stmts = append(stmts, b.Fragment())
	}
	if len(added) > 0 {
		var b sqlq.Builder
		b.WriteString("INSERT INTO " + d.QuoteIdentifier(f.assoc) + " (" + d.QuoteIdentifier(f.localMember) + ", " + d.QuoteIdentifier(f.foreignMember) + ") VALUES ")
		for i, id := range added {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Write(sqlq.Expr("(?, ?)", localID, id))
		}
		stmts = append(stmts, b.Fragment())
	}
	return stmts
}
