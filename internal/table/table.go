package table

import (
	"fmt"
	"regexp"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/util"
)

// Definition describes a table. It is configuration; NewTable turns it into a Table.
type Definition struct {
	// ID identifies the table in the registry.
	ID string
	// Name is the table in the store. Defaults to ID.
	Name string
	// Alias qualifies the table's columns in composed queries. Defaults to "t".
	Alias  string
	Fields []Field
	// Auth is the whole-row authorization spec.
	Auth auth.Spec
	// FilterBehaviors declares the discrete criteria offered per member. They are checked at construction.
	FilterBehaviors map[string][]Behavior
	DefaultSort     []Sort
}

// Table is an ordered set of fields plus whole-row authorization. It is immutable after construction.
type Table struct {
	id              string
	name            string
	alias           string
	fields          []Field
	members         map[string]Field
	specials        map[Special]Field
	pk              Field
	label           Field
	auth            auth.Spec
	filterBehaviors map[string][]Behavior
	defaultSort     []Sort
	registry        *Registry
}

var aliasPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewTable builds a table, connecting each field. Any authoring mistake returns an error wrapping internal.ErrConfiguration.
func NewTable(def Definition) (*Table, error) {
	if def.ID == "" {
		return nil, internal.ConfigErrorf("table definition has no id")
	}
	t := &Table{
		id:              def.ID,
		name:            def.Name,
		alias:           def.Alias,
		members:         make(map[string]Field),
		specials:        make(map[Special]Field),
		auth:            def.Auth,
		filterBehaviors: def.FilterBehaviors,
		defaultSort:     def.DefaultSort,
	}
	if t.name == "" {
		t.name = def.ID
	}
	if t.alias == "" {
		t.alias = "t"
	}
	if !aliasPattern.MatchString(t.alias) {
		return nil, internal.ConfigErrorf("table %s has an invalid alias %q", t.id, t.alias)
	}
	if t.auth.IsZero() {
		return nil, internal.ConfigErrorf("table %s has no row authorization", t.id)
	}
	for _, f := range def.Fields {
		if f == nil || f.Member() == "" {
			return nil, internal.ConfigErrorf("table %s has a field without a member", t.id)
		}
		if _, dup := t.members[f.Member()]; dup {
			return nil, internal.ConfigErrorf("table %s has more than one field for %s", t.id, f.Member())
		}
		if f.StoreMember() != f.Member() {
			if _, dup := t.members[f.StoreMember()]; dup {
				return nil, internal.ConfigErrorf("table %s has more than one field for %s", t.id, f.StoreMember())
			}
		}
		if err := f.ConnectToTable(t); err != nil {
			return nil, err
		}
		if f.AuthSpec().IsZero() && !f.Special().AuthExempt() {
			return nil, internal.ConfigErrorf("field %s.%s has no authorization spec", t.id, f.Member())
		}
		if sp := f.Special(); sp != SpecialNone {
			if _, dup := t.specials[sp]; dup {
				return nil, internal.ConfigErrorf("table %s has more than one %s field", t.id, sp)
			}
			t.specials[sp] = f
		}
		t.members[f.Member()] = f
		t.fields = append(t.fields, f)
	}
	if t.pk == nil {
		return nil, internal.ConfigErrorf("table %s has no primary key", t.id)
	}
	if vis := t.specials[SpecialVisiblePermission]; vis != nil {
		if vis.Kind() != KindString {
			return nil, internal.ConfigErrorf("visibility field %s.%s must be a string", t.id, vis.Member())
		}
		if t.OwnerField() == nil {
			return nil, internal.ConfigErrorf("table %s has a visibility field but no owner or created-by field", t.id)
		}
	}
	if del := t.specials[SpecialIsDeleted]; del != nil && del.Kind() != KindBool {
		return nil, internal.ConfigErrorf("soft-delete field %s.%s must be a bool", t.id, del.Member())
	}
	for member, behaviors := range t.filterBehaviors {
		f := t.members[member]
		if f == nil {
			return nil, internal.ConfigErrorf("table %s declares filters for unknown member %s", t.id, member)
		}
		for _, b := range behaviors {
			if !f.SupportsBehavior(b) {
				return nil, internal.ConfigErrorf("field %s.%s cannot filter by %s", t.id, member, b)
			}
		}
	}
	for _, s := range t.defaultSort {
		if t.members[s.Member] == nil {
			return nil, internal.ConfigErrorf("table %s sorts by unknown member %s", t.id, s.Member)
		}
	}
	t.label = t.specials[SpecialLabel]
	if t.label == nil {
		for _, f := range t.fields {
			if sf, ok := f.(*StringField); ok && sf.Format() != FormatRaw && sf.opts.Special == SpecialNone {
				t.label = f
				break
			}
		}
	}
	return t, nil
}

func (t *Table) setPK(f Field) error {
	if t.pk != nil {
		return internal.ConfigErrorf("table %s has more than one primary key", t.id)
	}
	t.pk = f
	return nil
}

func (t *Table) ID() string       { return t.id }
func (t *Table) Name() string     { return t.name }
func (t *Table) Alias() string    { return t.alias }
func (t *Table) Fields() []Field  { return t.fields }
func (t *Table) Auth() auth.Spec  { return t.auth }
func (t *Table) PKMember() string { return t.pk.Member() }

// Registry returns the registry the table was built into, or nil for a standalone table.
func (t *Table) Registry() *Registry { return t.registry }

// Field returns the field for a client member or its fk member.
func (t *Table) Field(member string) Field {
	if f := t.members[member]; f != nil {
		return f
	}
	for _, f := range t.fields {
		if f.StoreMember() == member {
			return f
		}
	}
	return nil
}

// SpecialField returns the field playing a role, or nil.
func (t *Table) SpecialField(sp Special) Field {
	return t.specials[sp]
}

// OwnerField returns the owner field, falling back to the created-by field.
func (t *Table) OwnerField() Field {
	if f := t.specials[SpecialOwner]; f != nil {
		return f
	}
	return t.specials[SpecialCreatedBy]
}

// LabelField returns the field naming a row in facets, quick filters and foreign sorts.
func (t *Table) LabelField() Field {
	return t.label
}

// OwnerID returns the owner of a store row, or fallback when the table has no owner or the row has none.
func (t *Table) OwnerID(row internal.Row, fallback int64) int64 {
	f := t.OwnerField()
	if f == nil {
		return fallback
	}
	if id, ok, integral := toInt64(row[f.StoreMember()]); ok && integral && id > 0 {
		return id
	}
	return fallback
}

// Columns returns the store columns in field order.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		if f.HasColumn() {
			cols = append(cols, f.StoreMember())
		}
	}
	return cols
}

// FilterBehaviors returns the discrete criteria offered for a member.
func (t *Table) FilterBehaviors(member string) []Behavior {
	return t.filterBehaviors[member]
}

// Fingerprint is a stable hash of the table's shape.
func (t *Table) Fingerprint() string {
	vals := []any{t.id, t.name, t.alias, t.auth.String()}
	for _, f := range t.fields {
		vals = append(vals, fmt.Sprintf("%s:%s:%s:%s:%v:%s", f.Kind(), f.Member(), f.StoreMember(), f.Special(), f.Nullable(), f.AuthSpec()))
	}
	return util.Hash(vals...)
}

// CreateNew returns a store row populated with every field's default.
func (t *Table) CreateNew(uc *internal.UsageContext) internal.Row {
	row := make(internal.Row, len(t.fields))
	for _, f := range t.fields {
		f.ApplyToNewRow(row, uc)
	}
	return row
}

// StoreToClient maps one store row to a client model.
func (t *Table) StoreToClient(store internal.Row, uc *internal.UsageContext) internal.Row {
	client := make(internal.Row, len(store))
	for _, f := range t.fields {
		f.StoreToClient(store, client, uc)
	}
	return client
}

// ToClient maps store rows to client models.
func (t *Table) ToClient(rows []internal.Row, uc *internal.UsageContext) []internal.Row {
	res := make([]internal.Row, 0, len(rows))
	for _, row := range rows {
		res = append(res, t.StoreToClient(row, uc))
	}
	return res
}

// ClientToStore maps a client model to a store row.
func (t *Table) ClientToStore(client internal.Row, mode internal.RowMode) internal.Row {
	store := make(internal.Row, len(client))
	for _, f := range t.fields {
		f.ClientToStore(client, store, mode)
	}
	return store
}

func (t *Table) String() string {
	return t.id
}
