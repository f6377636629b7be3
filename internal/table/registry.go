package table

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"
	"github.com/shopmonkeyus/tablekit/internal"
)

// resolver is implemented by fields which reference other tables or palettes.
type resolver interface {
	resolve(r *Registry) error
}

// Registry is the immutable catalog of tables and palettes. It is safe for concurrent use.
type Registry struct {
	tables   map[string]*Table
	palettes map[string]*Palette
}

// Table returns a table by id.
func (r *Registry) Table(id string) (*Table, bool) {
	t, ok := r.tables[id]
	return t, ok
}

// MustTable returns a table by id and panics if it is not registered.
func (r *Registry) MustTable(id string) *Table {
	t, ok := r.tables[id]
	if !ok {
		panic(errors.Wrapf(internal.ErrNotFound, "table %s", id))
	}
	return t
}

// Tables returns every table ordered by id.
func (r *Registry) Tables() []*Table {
	res := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}

// Palette returns a palette by id.
func (r *Registry) Palette(id string) (*Palette, bool) {
	p, ok := r.palettes[id]
	return p, ok
}

// RegistryBuilder collects definitions. Build may be called once.
type RegistryBuilder struct {
	logger   logger.Logger
	defs     []Definition
	palettes map[string]*Palette
	built    bool
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder(logger logger.Logger) *RegistryBuilder {
	return &RegistryBuilder{
		logger:   logger.WithPrefix("[registry]"),
		palettes: make(map[string]*Palette),
	}
}

// AddPalette registers a palette for color fields.
func (b *RegistryBuilder) AddPalette(p Palette) *RegistryBuilder {
	b.palettes[p.ID] = &p
	return b
}

// Add registers a table definition.
func (b *RegistryBuilder) Add(def Definition) *RegistryBuilder {
	b.defs = append(b.defs, def)
	return b
}

// Build constructs every table and resolves cross-table and palette references.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if b.built {
		return nil, internal.ConfigErrorf("registry already built")
	}
	b.built = true
	r := &Registry{
		tables:   make(map[string]*Table, len(b.defs)),
		palettes: make(map[string]*Palette, len(b.palettes)),
	}
	for id, p := range b.palettes {
		r.palettes[id] = p
	}
	for _, def := range b.defs {
		if _, dup := r.tables[def.ID]; dup {
			return nil, internal.ConfigErrorf("table %s is defined more than once", def.ID)
		}
		t, err := NewTable(def)
		if err != nil {
			return nil, err
		}
		t.registry = r
		r.tables[t.id] = t
		b.logger.Trace("added table %s with %d fields", t.id, len(t.fields))
	}
	for _, t := range r.Tables() {
		for _, f := range t.fields {
			if res, ok := f.(resolver); ok {
				if err := res.resolve(r); err != nil {
					return nil, err
				}
			}
		}
	}
	b.logger.Debug("built registry with %d tables and %d palettes", len(r.tables), len(r.palettes))
	return r, nil
}
