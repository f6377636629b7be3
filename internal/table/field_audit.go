package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
)

// CreatedAtField is stamped with the request time on creation and never changes afterwards.
type CreatedAtField struct {
	DateTimeField
}

var _ Field = (*CreatedAtField)(nil)

func NewCreatedAtField(opts Options) *CreatedAtField {
	if opts.Member == "" {
		opts.Member = "createdAt"
	}
	opts.Special = SpecialCreatedAt
	return &CreatedAtField{DateTimeField{base: newBase(opts)}}
}

func (f *CreatedAtField) Kind() Kind { return KindCreatedAt }

// ValidateAndParse ignores the supplied value: new rows get a fresh timestamp, other modes leave the field out.
func (f *CreatedAtField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	if mode == internal.RowModeNew {
		return Success(internal.Row{f.opts.Member: uc.Clock()})
	}
	return Undefined()
}

func (f *CreatedAtField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = uc.Clock()
}

// UpdatedAtField is stamped with the request time on creation and by the diff engine on any change.
type UpdatedAtField struct {
	DateTimeField
}

var _ Field = (*UpdatedAtField)(nil)

func NewUpdatedAtField(opts Options) *UpdatedAtField {
	if opts.Member == "" {
		opts.Member = "updatedAt"
	}
	opts.Special = SpecialUpdatedAt
	return &UpdatedAtField{DateTimeField{base: newBase(opts)}}
}

func (f *UpdatedAtField) Kind() Kind { return KindUpdatedAt }

func (f *UpdatedAtField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	if mode == internal.RowModeNew {
		return Success(internal.Row{f.opts.Member: uc.Clock()})
	}
	return Undefined()
}

func (f *UpdatedAtField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = uc.Clock()
}

// RevisionField counts updates. It starts at zero and the update statement increments it.
type RevisionField struct {
	IntField
}

var _ Field = (*RevisionField)(nil)

func NewRevisionField(opts Options) *RevisionField {
	if opts.Member == "" {
		opts.Member = "revision"
	}
	opts.Special = SpecialRevision
	return &RevisionField{IntField{base: newBase(opts)}}
}

func (f *RevisionField) Kind() Kind { return KindRevision }

func (f *RevisionField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	if mode == internal.RowModeNew {
		return Success(internal.Row{f.opts.Member: int64(0)})
	}
	return Undefined()
}

func (f *RevisionField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = int64(0)
}

// CreatedByField records the acting user on creation.
type CreatedByField struct {
	IntField
}

var _ Field = (*CreatedByField)(nil)

func NewCreatedByField(opts Options) *CreatedByField {
	if opts.Member == "" {
		opts.Member = "createdBy"
	}
	opts.Special = SpecialCreatedBy
	opts.Nullable = true
	return &CreatedByField{IntField{base: newBase(opts)}}
}

func (f *CreatedByField) Kind() Kind { return KindCreatedBy }

func (f *CreatedByField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	if mode == internal.RowModeNew {
		return Success(internal.Row{f.opts.Member: f.actingUser(uc)})
	}
	return Undefined()
}

func (f *CreatedByField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	row[f.opts.Member] = f.actingUser(uc)
}

func (f *CreatedByField) actingUser(uc *internal.UsageContext) any {
	if id := uc.ActingUserID(); id > 0 {
		return id
	}
	return nil
}
