package table

import (
	"reflect"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
)

// ForeignOptions configure a ForeignField. Member holds the resolved object and FKMember the key column.
type ForeignOptions struct {
	Options
	ForeignTable string
}

// ForeignField is a many-to-one reference. The store holds the key; clients may see the key, the object, or both.
type ForeignField struct {
	base
	foreignID string
	foreign   *Table
}

var _ Field = (*ForeignField)(nil)

func NewForeignField(opts ForeignOptions) *ForeignField {
	if opts.FKMember == "" {
		opts.FKMember = opts.Member + "Id"
	}
	return &ForeignField{base: newBase(opts.Options), foreignID: opts.ForeignTable}
}

func (f *ForeignField) Kind() Kind { return KindForeign }

// ForeignTable returns the referenced table once the registry is built.
func (f *ForeignField) ForeignTable() *Table { return f.foreign }

func (f *ForeignField) resolve(r *Registry) error {
	t, ok := r.Table(f.foreignID)
	if !ok {
		return internal.ConfigErrorf("field %s.%s references unknown table %s", f.table.id, f.opts.Member, f.foreignID)
	}
	f.foreign = t
	return nil
}

func (f *ForeignField) foreignPK() string {
	if f.foreign != nil {
		return f.foreign.PKMember()
	}
	return "id"
}

// key extracts the foreign key from a key or an object.
func (f *ForeignField) key(val any) (any, bool) {
	if isNil(val) {
		return nil, true
	}
	if row, ok := toRow(val); ok {
		k, ok := row[f.foreignPK()]
		return normalizeKey(k), ok && !isNil(k)
	}
	return scalarKey(val)
}

func (f *ForeignField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	obj, hasObj := row[f.opts.Member]
	rawKey, hasKey := row[f.opts.FKMember]
	if !hasObj && !hasKey {
		return Undefined()
	}
	var key any
	if hasKey && !isNil(rawKey) {
		k, ok := f.key(rawKey)
		if !ok {
			return Failure(rawKey, "expected an object or key")
		}
		key = k
	}
	var object internal.Row
	if hasObj && !isNil(obj) {
		k, ok := f.key(obj)
		if !ok {
			return Failure(obj, "expected an object or key")
		}
		if key == nil {
			key = k
		}
		if r, isRow := toRow(obj); isRow && keysEqual(k, key) {
			object = r
		}
	}
	if key == nil {
		if !f.opts.Nullable {
			return Failure(nil, "field is required")
		}
		return Success(internal.Row{f.opts.FKMember: nil, f.opts.Member: nil})
	}
	values := internal.Row{f.opts.FKMember: key}
	if object != nil {
		values[f.opts.Member] = object
	}
	return Success(values)
}

func (f *ForeignField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.FKMember] = f.opts.Default
}

func (f *ForeignField) IsEqual(a, b any) bool {
	x, xok := f.key(a)
	y, yok := f.key(b)
	if !xok && !yok {
		return reflect.DeepEqual(a, b)
	}
	return xok && yok && x == y
}

// StoreToClient copies the key and maps a loaded object through the foreign table.
func (f *ForeignField) StoreToClient(store, client internal.Row, uc *internal.UsageContext) {
	if val, ok := store[f.opts.FKMember]; ok {
		client[f.opts.FKMember] = val
	}
	nested, ok := toRow(store[f.opts.Member])
	if !ok {
		return
	}
	if f.foreign != nil {
		client[f.opts.Member] = f.foreign.StoreToClient(nested, uc.WithRelation(f.opts.Member))
	} else {
		client[f.opts.Member] = nested
	}
}

// ClientToStore writes back the key, taking it from the object when the key member is absent.
func (f *ForeignField) ClientToStore(client, store internal.Row, mode internal.RowMode) {
	if val, ok := client[f.opts.FKMember]; ok {
		k, _ := f.key(val)
		store[f.opts.FKMember] = k
		return
	}
	if obj, ok := client[f.opts.Member]; ok {
		k, _ := f.key(obj)
		store[f.opts.FKMember] = k
	}
}

func (f *ForeignField) subAlias(s Scope) string {
	return s.Alias + "_" + f.opts.Member
}

// labelJoin returns the foreign label column and the join condition for alias, or false without a label.
func (f *ForeignField) labelColumn(s Scope, alias string) (string, bool) {
	if f.foreign == nil {
		return "", false
	}
	label := f.foreign.LabelField()
	if label == nil {
		return "", false
	}
	return sqlq.Ident(s.Dialect, alias, label.StoreMember()), true
}

func (f *ForeignField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.FKMember]; ok && p.Equals != nil {
		return sqlq.Expr(s.Column(f.opts.FKMember)+" = ?", normalizeKey(p.Equals)), nil
	}
	return sqlq.Empty, nil
}

// QuickFilterFragmentForToken matches the token against the referenced row's label.
func (f *ForeignField) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	alias := f.subAlias(s)
	label, ok := f.labelColumn(s, alias)
	if !ok {
		return sqlq.Empty
	}
	var b sqlq.Builder
	b.WriteString("SELECT 1 FROM " + s.Ident(f.foreign.name) + " AS " + s.Ident(alias))
	b.WriteString(" WHERE " + sqlq.Ident(s.Dialect, alias, f.foreign.PKMember()) + " = " + s.Column(f.opts.FKMember))
	b.WriteString(" AND ").Write(sqlq.ContainsInsensitive(s.Dialect, label, token))
	return sqlq.Exists(b.Fragment())
}

func (f *ForeignField) SupportsBehavior(b Behavior) bool {
	return singleValuedSupports(b)
}

func (f *ForeignField) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	return singleValuedCriterion(f.opts.Member, s.Column(f.opts.FKMember), c, normalizeKey)
}

func (f *ForeignField) FacetQuery(in FacetInput) *FacetQuery {
	s := in.Scope
	col := s.Column(f.opts.FKMember)
	alias := f.subAlias(s)
	var labelExpr, joins string
	if label, ok := f.labelColumn(s, alias); ok {
		labelExpr = label
		joins = "LEFT JOIN " + s.Ident(f.foreign.name) + " AS " + s.Ident(alias) + " ON " + sqlq.Ident(s.Dialect, alias, f.foreign.PKMember()) + " = " + col
	}
	return &FacetQuery{
		Member:    f.opts.Member,
		Query:     scalarFacetQuery(s, col, labelExpr, joins),
		Transform: simpleFacets,
	}
}

// SortFragment orders by the referenced label when there is one, otherwise by key.
func (f *ForeignField) SortFragment(dir Direction, s Scope) []string {
	col := s.Column(f.opts.FKMember)
	alias := f.subAlias(s)
	if label, ok := f.labelColumn(s, alias); ok {
		sub := "(SELECT " + label + " FROM " + s.Ident(f.foreign.name) + " AS " + s.Ident(alias) + " WHERE " + sqlq.Ident(s.Dialect, alias, f.foreign.PKMember()) + " = " + col + ")"
		return nullsLast(sub, dir)
	}
	return nullsLast(col, dir)
}

func (f *ForeignField) ApplyIncludeFiltering(include *Include, uc *internal.UsageContext) {
	if f.foreign == nil {
		return
	}
	include.Where = append(include.Where, f.foreign.overallWhere(&Filter{}, include.Scope))
}
