package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/table"
	"golang.org/x/sync/errgroup"
)

// ListResult is one page of client models.
type ListResult struct {
	Rows []internal.Row `json:"rows"`
	// Total counts every row matching the filter, ignoring paging.
	Total  int64                    `json:"total"`
	Facets map[string][]table.Facet `json:"facets,omitempty"`
	// Problems are messages for filter parts which could not be applied.
	Problems []string `json:"problems,omitempty"`
	// Stripped lists the members removed from at least one row by column authorization.
	Stripped []string `json:"stripped,omitempty"`
	// Hidden counts rows dropped by row authorization.
	Hidden int `json:"hidden,omitempty"`
}

// ListOptions tune List.
type ListOptions struct {
	Facets        bool
	FallbackOwner int64
}

// List runs the filtered select and count of t, loads its relations and returns the client models
// the acting user may see. Facets run concurrently with the select when requested.
func (e *Executor) List(ctx context.Context, t *table.Table, filter *table.Filter, uc *internal.UsageContext, opts ...ListOptions) (*ListResult, error) {
	var o ListOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if filter == nil {
		filter = &table.Filter{}
	}
	selectq, err := t.SelectQuery(filter, uc, e.dialect)
	if err != nil {
		return nil, err
	}
	countq, err := t.CountQuery(filter, uc, e.dialect)
	if err != nil {
		return nil, err
	}
	var facetqs []*table.FacetQuery
	if o.Facets {
		if facetqs, err = t.FacetQueries(filter, uc, e.dialect); err != nil {
			return nil, err
		}
	}
	res := &ListResult{Problems: selectq.Problems}
	var rows []internal.Row
	facets := make([][]table.Facet, len(facetqs))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = e.rows(gctx, e.db, selectq)
		return err
	})
	g.Go(func() error {
		found, err := e.rows(gctx, e.db, countq)
		if err != nil {
			return err
		}
		if len(found) == 1 {
			for _, v := range found[0] {
				n, ok := toCount(v)
				if !ok {
					return fmt.Errorf("unexpected count %v", v)
				}
				res.Total = n
			}
		}
		return nil
	})
	for i, fq := range facetqs {
		g.Go(func() error {
			found, err := e.rows(gctx, e.db, fq.Query)
			if err != nil {
				return errors.Wrapf(err, "facet %s", fq.Member)
			}
			facetRows := make([]table.FacetRow, 0, len(found))
			for _, r := range found {
				n, _ := toCount(r[table.FacetCountColumn])
				facetRows = append(facetRows, table.FacetRow{Key: r[table.FacetKeyColumn], Label: r[table.FacetLabelColumn], Count: n})
			}
			facets[i] = fq.Transform(facetRows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(facetqs) > 0 {
		res.Facets = make(map[string][]table.Facet, len(facetqs))
		for i, fq := range facetqs {
			res.Facets[fq.Member] = facets[i]
		}
	}
	models, stripped, hidden, err := e.toClient(ctx, t, rows, uc, o.FallbackOwner)
	if err != nil {
		return nil, err
	}
	res.Rows = models
	res.Stripped = stripped
	res.Hidden = hidden
	return res, nil
}

// Get loads one client model by key. It returns an error marked internal.ErrNotFound when the row is
// missing or not visible.
func (e *Executor) Get(ctx context.Context, t *table.Table, key any, uc *internal.UsageContext) (internal.Row, error) {
	rows, err := e.rows(ctx, e.db, t.SelectByKeys([]any{key}, uc, e.dialect))
	if err != nil {
		return nil, err
	}
	models, _, _, err := e.toClient(ctx, t, rows, uc, 0)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errors.Wrapf(internal.ErrNotFound, "%s %v", t.ID(), key)
	}
	return models[0], nil
}

// toClient loads relations, maps store rows to client models and applies row and column authorization.
func (e *Executor) toClient(ctx context.Context, t *table.Table, rows []internal.Row, uc *internal.UsageContext, fallbackOwner int64) ([]internal.Row, []string, int, error) {
	if err := e.loadRelations(ctx, t, rows, uc); err != nil {
		return nil, nil, 0, err
	}
	models := make([]internal.Row, 0, len(rows))
	stripped := make(map[string]bool)
	var hidden int
	for _, row := range rows {
		ok, err := t.AuthorizeRow(internal.RowModeView, row, uc, fallbackOwner)
		if err != nil {
			return nil, nil, 0, err
		}
		if !ok {
			hidden++
			continue
		}
		am, err := t.AuthorizeModel(table.AuthorizeModelInput{
			Model:         t.StoreToClient(row, uc),
			Row:           row,
			Mode:          internal.RowModeView,
			UC:            uc,
			FallbackOwner: fallbackOwner,
		})
		if err != nil {
			return nil, nil, 0, err
		}
		for _, m := range am.UnauthorizedMembers() {
			stripped[m] = true
		}
		models = append(models, am.Authorized)
	}
	if hidden > 0 {
		e.logger.Debug("%d %s rows hidden by row authorization", hidden, t.ID())
	}
	var members []string
	for m := range stripped {
		members = append(members, m)
	}
	sort.Strings(members)
	return models, members, hidden, nil
}

// loadRelations attaches foreign objects and tag association records to the store rows.
func (e *Executor) loadRelations(ctx context.Context, t *table.Table, rows []internal.Row, uc *internal.UsageContext) error {
	if len(rows) == 0 {
		return nil
	}
	for _, f := range t.Fields() {
		switch rf := f.(type) {
		case *table.ForeignField:
			if err := e.loadForeign(ctx, t, rf, rows, uc); err != nil {
				return err
			}
		case *table.TagsField:
			if err := e.loadTags(ctx, t, rf, rows, uc); err != nil {
				return err
			}
		}
	}
	return nil
}

func distinctKeys(rows []internal.Row, member string) []any {
	var keys []any
	seen := make(map[string]bool)
	for _, row := range rows {
		val := row[member]
		if val == nil {
			continue
		}
		if k := keyString(val); !seen[k] {
			seen[k] = true
			keys = append(keys, val)
		}
	}
	return keys
}

// loadObjects runs an include for keys and returns the store rows by key.
func (e *Executor) loadObjects(ctx context.Context, t *table.Table, member string, keys []any, uc *internal.UsageContext) (map[string]internal.Row, error) {
	res := make(map[string]internal.Row)
	if len(keys) == 0 {
		return res, nil
	}
	include, err := t.Include(member, uc, e.dialect)
	if err != nil {
		return nil, err
	}
	found, err := e.rows(ctx, e.db, include.Query(keys))
	if err != nil {
		return nil, err
	}
	pk := include.Table.PKMember()
	for _, r := range found {
		res[keyString(r[pk])] = r
	}
	return res, nil
}

func (e *Executor) loadForeign(ctx context.Context, t *table.Table, f *table.ForeignField, rows []internal.Row, uc *internal.UsageContext) error {
	objects, err := e.loadObjects(ctx, t, f.Member(), distinctKeys(rows, f.StoreMember()), uc)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if val := row[f.StoreMember()]; val != nil {
			if obj, ok := objects[keyString(val)]; ok {
				row[f.Member()] = obj
			}
		}
	}
	return nil
}

func (e *Executor) loadTags(ctx context.Context, t *table.Table, f *table.TagsField, rows []internal.Row, uc *internal.UsageContext) error {
	localIDs := distinctKeys(rows, t.PKMember())
	if len(localIDs) == 0 {
		return nil
	}
	records, err := e.rows(ctx, e.db, f.LoadQuery(localIDs, uc, e.dialect))
	if err != nil {
		return err
	}
	objects, err := e.loadObjects(ctx, t, f.Member(), distinctKeys(records, f.ForeignMember()), uc)
	if err != nil {
		return err
	}
	byLocal := make(map[string][]any)
	for _, r := range records {
		local := keyString(r[f.LocalMember()])
		byLocal[local] = append(byLocal[local], f.Record(r[f.IDMember()], r[f.LocalMember()], r[f.ForeignMember()], objects[keyString(r[f.ForeignMember()])]))
	}
	for _, row := range rows {
		list := byLocal[keyString(row[t.PKMember()])]
		if list == nil {
			list = []any{}
		}
		row[f.Member()] = list
	}
	return nil
}

func toCount(val any) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err == nil
	case nil:
		return 0, true
	}
	return 0, false
}
