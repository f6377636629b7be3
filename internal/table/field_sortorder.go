package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
)

// SortOrderField holds a manually maintained ordering key. New rows start at "0".
type SortOrderField struct {
	StringField
}

var _ Field = (*SortOrderField)(nil)

func NewSortOrderField(opts Options) *SortOrderField {
	if opts.Member == "" {
		opts.Member = "sortOrder"
	}
	opts.Special = SpecialSortOrder
	if opts.Default == nil {
		opts.Default = "0"
	}
	return &SortOrderField{StringField{base: newBase(opts), format: FormatPlain}}
}

func (f *SortOrderField) Kind() Kind { return KindSortOrder }

func (f *SortOrderField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = f.opts.Default
}
