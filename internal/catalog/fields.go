package catalog

import (
	"sort"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/table"
)

type fieldBuilder func(doc FieldDocument, opts table.Options) table.Field

var fieldBuilders = map[table.Kind]fieldBuilder{
	table.KindPK: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewPKField(opts)
	},
	table.KindInt: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewIntField(table.IntOptions{Options: opts, Searchable: doc.Searchable})
	},
	table.KindString: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewStringField(table.StringOptions{
			Options:       opts,
			Format:        table.StringFormat(doc.Format),
			MinLength:     doc.MinLength,
			MaxLength:     doc.MaxLength,
			Discrete:      doc.Discrete,
			NotSearchable: doc.NotSearchable,
		})
	},
	table.KindBool: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewBoolField(opts)
	},
	table.KindDateTime: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewDateTimeField(opts)
	},
	table.KindEnum: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewEnumField(table.EnumOptions{Options: opts, Values: doc.Values})
	},
	table.KindColor: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewColorField(table.ColorOptions{Options: opts, Palette: doc.Palette})
	},
	table.KindForeign: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewForeignField(table.ForeignOptions{Options: opts, ForeignTable: doc.ForeignTable})
	},
	table.KindTags: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewTagsField(table.TagsOptions{
			Options:             opts,
			AssociationTable:    doc.AssociationTable,
			LocalMember:         doc.LocalMember,
			ForeignMember:       doc.ForeignMember,
			ForeignTable:        doc.ForeignTable,
			ForeignObjectMember: doc.ForeignObjectMember,
			IDMember:            doc.IDMember,
		})
	},
	table.KindGhost: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewGhostField(opts, doc.Column)
	},
	table.KindCreatedAt: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewCreatedAtField(opts)
	},
	table.KindUpdatedAt: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewUpdatedAtField(opts)
	},
	table.KindRevision: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewRevisionField(opts)
	},
	table.KindCreatedBy: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewCreatedByField(opts)
	},
	table.KindSortOrder: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewSortOrderField(opts)
	},
	table.KindDateSearch: func(doc FieldDocument, opts table.Options) table.Field {
		return table.NewDateSearchField(opts)
	},
}

// Kinds returns the field kinds a catalog may declare.
func Kinds() []string {
	res := make([]string, 0, len(fieldBuilders))
	for k := range fieldBuilders {
		res = append(res, string(k))
	}
	sort.Strings(res)
	return res
}

func (d FieldDocument) build() (table.Field, error) {
	builder, ok := fieldBuilders[table.Kind(d.Kind)]
	if !ok {
		return nil, internal.ConfigErrorf("unknown field kind %q", d.Kind)
	}
	spec, err := d.Auth.Spec()
	if err != nil {
		return nil, err
	}
	opts := table.Options{
		Member:   d.Member,
		FKMember: d.FKMember,
		Label:    d.Label,
		Default:  d.Default,
		Special:  table.Special(d.Special),
		Auth:     spec,
		Nullable: d.Nullable,
	}
	return builder(d, opts), nil
}
