package table

import (
	"reflect"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
)

// GhostField passes its value through unvalidated. Its real type belongs to another layer.
type GhostField struct {
	base
	column bool
}

var _ Field = (*GhostField)(nil)

// NewGhostField returns a pass-through field. Without an auth spec it is public.
// Set column when the value is also stored in a column of the table.
func NewGhostField(opts Options, column bool) *GhostField {
	if opts.Auth.IsZero() {
		opts.Auth = auth.Uniform(auth.Public)
	}
	opts.Nullable = true
	return &GhostField{base: newBase(opts), column: column}
}

func (f *GhostField) Kind() Kind      { return KindGhost }
func (f *GhostField) HasColumn() bool { return f.column }

func (f *GhostField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	return Success(internal.Row{f.opts.Member: val})
}

func (f *GhostField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if f.opts.Default != nil {
		row[f.opts.Member] = f.opts.Default
	}
}

func (f *GhostField) IsEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
