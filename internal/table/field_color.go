package table

import (
	"strings"

	"github.com/shopmonkeyus/tablekit/internal"
)

// PaletteEntry is one color of a palette.
type PaletteEntry struct {
	ID    string `json:"id" mapstructure:"id"`
	Label string `json:"label,omitempty" mapstructure:"label"`
	Color string `json:"color,omitempty" mapstructure:"color"`
	Icon  string `json:"icon,omitempty" mapstructure:"icon"`
}

// Row returns the client representation of the entry.
func (e PaletteEntry) Row() internal.Row {
	return internal.Row{"id": e.ID, "label": e.Label, "color": e.Color, "icon": e.Icon}
}

// Palette is a named set of colors referenced by color fields.
type Palette struct {
	ID      string         `json:"id" mapstructure:"id"`
	Entries []PaletteEntry `json:"entries" mapstructure:"entries"`
}

// Entry returns the entry for id.
func (p *Palette) Entry(id string) (PaletteEntry, bool) {
	if p == nil {
		return PaletteEntry{}, false
	}
	for _, e := range p.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return PaletteEntry{}, false
}

// ColorOptions configure a ColorField.
type ColorOptions struct {
	Options
	Palette string
}

// ColorField stores a palette entry id. Clients see the resolved entry.
type ColorField struct {
	base
	paletteID string
	palette   *Palette
}

var _ Field = (*ColorField)(nil)

func NewColorField(opts ColorOptions) *ColorField {
	return &ColorField{base: newBase(opts.Options), paletteID: opts.Palette}
}

func (f *ColorField) Kind() Kind { return KindColor }

func (f *ColorField) resolve(r *Registry) error {
	p, ok := r.Palette(f.paletteID)
	if !ok {
		return internal.ConfigErrorf("color field %s.%s references unknown palette %s", f.table.id, f.opts.Member, f.paletteID)
	}
	f.palette = p
	return nil
}

// colorID extracts the entry id from an id string or an entry object.
func colorID(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v), true
	case PaletteEntry:
		return v.ID, true
	case *PaletteEntry:
		if v != nil {
			return v.ID, true
		}
	}
	if row, ok := toRow(val); ok {
		if id, ok := row["id"].(string); ok {
			return id, true
		}
	}
	return "", false
}

// entry resolves an id. Ids missing from the palette keep their id so that they round-trip.
func (f *ColorField) entry(id string) internal.Row {
	if e, ok := f.palette.Entry(id); ok {
		return e.Row()
	}
	return internal.Row{"id": id}
}

func (f *ColorField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if isNil(val) {
		return f.nullResult()
	}
	id, ok := colorID(val)
	if !ok {
		return Failure(val, "expected an object or key")
	}
	if id == "" {
		return f.nullResult()
	}
	return Success(internal.Row{f.opts.Member: f.entry(id)})
}

func (f *ColorField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if id, ok := colorID(f.opts.Default); ok && id != "" {
		row[f.opts.Member] = f.entry(id)
		return
	}
	row[f.opts.Member] = nil
}

func (f *ColorField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok := colorID(a)
	y, yok := colorID(b)
	return xok && yok && x == y
}

func (f *ColorField) StoreToClient(store, client internal.Row, uc *internal.UsageContext) {
	val, ok := store[f.opts.Member]
	if !ok {
		return
	}
	if id, ok := colorID(val); ok && id != "" {
		client[f.opts.Member] = f.entry(id)
	} else {
		client[f.opts.Member] = nil
	}
}

func (f *ColorField) ClientToStore(client, store internal.Row, mode internal.RowMode) {
	val, ok := client[f.opts.Member]
	if !ok {
		return
	}
	if id, ok := colorID(val); ok && id != "" {
		store[f.opts.Member] = id
	} else {
		store[f.opts.Member] = nil
	}
}

func (f *ColorField) FacetQuery(in FacetInput) *FacetQuery {
	return &FacetQuery{
		Member: f.opts.Member,
		Query:  scalarFacetQuery(in.Scope, in.Scope.Column(f.opts.Member), "", ""),
		Transform: func(rows []FacetRow) []Facet {
			facets := make([]Facet, 0, len(rows))
			for _, r := range rows {
				facet := Facet{Key: r.Key, Count: r.Count}
				if isNil(r.Key) {
					facet.Label = NoneLabel
					facet.Position = sortFirst
				} else {
					id := labelString(r.Key)
					facet.Key = id
					facet.Label = id
					if e, ok := f.palette.Entry(id); ok {
						if e.Label != "" {
							facet.Label = e.Label
						}
						facet.Color = e.Color
						facet.Icon = e.Icon
					}
				}
				facets = append(facets, facet)
			}
			return finishFacets(facets)
		},
	}
}

func (f *ColorField) SortFragment(dir Direction, s Scope) []string {
	return nullsLast(s.Column(f.opts.Member), dir)
}
