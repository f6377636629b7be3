package table

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/auth"
	"github.com/shopmonkeyus/tablekit/internal/sqlq"
	"golang.org/x/text/cases"
)

// StringFormat selects the validation rules of a StringField.
type StringFormat string

const (
	FormatPlain    StringFormat = "plain"
	FormatTitle    StringFormat = "title"
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatMarkdown StringFormat = "markdown"
	FormatSlug     StringFormat = "slug"
	FormatRaw      StringFormat = "raw"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
var slugPattern = regexp.MustCompile(`^[a-z0-9-]*$`)

// StringOptions configure a StringField.
type StringOptions struct {
	Options
	Format    StringFormat
	MinLength int
	MaxLength int
	// Discrete enables discrete criteria and facets over the distinct values.
	Discrete bool
	// NotSearchable removes the field from the quick filter.
	NotSearchable bool
}

// StringField is a text column with per-format validation.
type StringField struct {
	base
	format     StringFormat
	minLength  int
	maxLength  int
	discrete   bool
	searchable bool
}

var _ Field = (*StringField)(nil)

func NewStringField(opts StringOptions) *StringField {
	if opts.Format == "" {
		opts.Format = FormatPlain
	}
	if opts.Format == FormatTitle && opts.MinLength == 0 && !opts.Nullable {
		opts.MinLength = 1
	}
	return &StringField{
		base:       newBase(opts.Options),
		format:     opts.Format,
		minLength:  opts.MinLength,
		maxLength:  opts.MaxLength,
		discrete:   opts.Discrete,
		searchable: !opts.NotSearchable && opts.Format != FormatRaw && opts.Special != SpecialVisiblePermission,
	}
}

func (f *StringField) Kind() Kind { return KindString }

// Format returns the validation format.
func (f *StringField) Format() StringFormat { return f.format }

func (f *StringField) ValidateAndParse(row internal.Row, mode internal.RowMode, uc *internal.UsageContext) Result {
	val, ok := f.raw(row)
	if !ok {
		return Undefined()
	}
	if f.format == FormatRaw {
		return Success(internal.Row{f.opts.Member: val})
	}
	if isNil(val) {
		return f.nullResult()
	}
	str, ok := val.(string)
	if !ok {
		return Failure(val, "must be a string")
	}
	if f.format != FormatMarkdown {
		str = strings.TrimSpace(str)
	}
	length := utf8.RuneCountInString(str)
	if length < f.minLength {
		return Failure(val, "must be at least "+plural(f.minLength, "character"))
	}
	if f.maxLength > 0 && length > f.maxLength {
		return Failure(val, "must be at most "+plural(f.maxLength, "character"))
	}
	if str != "" {
		switch f.format {
		case FormatEmail:
			if !emailPattern.MatchString(str) {
				return Failure(val, "invalid email address")
			}
		case FormatURI:
			u, err := url.ParseRequestURI(str)
			if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
				return Failure(val, "invalid URI")
			}
		case FormatSlug:
			if !slugPattern.MatchString(str) {
				return Failure(val, "slug may only contain a-z, 0-9 and -")
			}
		}
	}
	return Success(internal.Row{f.opts.Member: str})
}

func (f *StringField) ApplyToNewRow(row internal.Row, uc *internal.UsageContext) {
	if f.opts.Default == nil && !f.opts.Nullable {
		row[f.opts.Member] = ""
		return
	}
	f.base.ApplyToNewRow(row, uc)
}

// IsEqual ignores surrounding whitespace except for markdown and raw text, and case for emails and slugs.
func (f *StringField) IsEqual(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	x, xok := a.(string)
	y, yok := b.(string)
	if !xok || !yok {
		return xok == yok && reflect.DeepEqual(a, b)
	}
	switch f.format {
	case FormatMarkdown, FormatRaw:
		return x == y
	case FormatEmail, FormatSlug:
		// a Caser is stateful, so one per call
		return cases.Fold().String(strings.TrimSpace(x)) == cases.Fold().String(strings.TrimSpace(y))
	}
	return strings.TrimSpace(x) == strings.TrimSpace(y)
}

func (f *StringField) CustomFilterWhereClause(filter *Filter, s Scope) (sqlq.Fragment, error) {
	if p, ok := filter.Params[f.opts.Member]; ok {
		return paramFragment(s.Column(f.opts.Member), p, func(v any) (any, bool) {
			str, ok := v.(string)
			return str, ok
		}), nil
	}
	return sqlq.Empty, nil
}

func (f *StringField) QuickFilterFragmentForToken(token string, tokens []string, s Scope) sqlq.Fragment {
	if !f.searchable {
		return sqlq.Empty
	}
	return sqlq.ContainsInsensitive(s.Dialect, s.Column(f.opts.Member), token)
}

func (f *StringField) SupportsBehavior(b Behavior) bool {
	return f.discrete && singleValuedSupports(b)
}

func (f *StringField) DiscreteCriterionFragment(c Criterion, s Scope) (sqlq.Fragment, error) {
	if !f.discrete {
		return sqlq.Empty, nil
	}
	return singleValuedCriterion(f.opts.Member, s.Column(f.opts.Member), c, nil)
}

func (f *StringField) FacetQuery(in FacetInput) *FacetQuery {
	if !f.discrete {
		return nil
	}
	return &FacetQuery{
		Member:    f.opts.Member,
		Query:     textFacetQuery(in.Scope, in.Scope.Column(f.opts.Member)),
		Transform: simpleFacets,
	}
}

func (f *StringField) SortFragment(dir Direction, s Scope) []string {
	return nullsLast(s.Column(f.opts.Member), dir)
}

// OverallWhereClause limits rows by a visibility permission column. A row is visible when the
// column is empty, names a permission the acting user holds, or the acting user owns the row.
func (f *StringField) OverallWhereClause(filter *Filter, s Scope) sqlq.Fragment {
	if f.opts.Special != SpecialVisiblePermission || s.UC.IsSysAdmin() {
		return sqlq.Empty
	}
	col := s.Column(f.opts.Member)
	granted := []any{auth.Public}
	uid := s.UC.ActingUserID()
	if uid > 0 {
		granted = append(granted, auth.LoggedIn)
		for _, p := range s.UC.User.Permissions {
			granted = append(granted, p)
		}
	}
	parts := []sqlq.Fragment{sqlq.IsNull(col), sqlq.Expr(col+" = ?", ""), sqlq.In(col, granted)}
	if uid > 0 && f.table != nil {
		if owner := f.table.OwnerField(); owner != nil {
			parts = append(parts, sqlq.Expr(s.Column(owner.StoreMember())+" = ?", uid))
		}
	}
	return sqlq.Or(parts...)
}
