package table

import (
	"github.com/shopmonkeyus/tablekit/internal"
)

// Change is one member whose value differs between the prior row and the candidate.
type Change struct {
	Member string `json:"member"`
	Old    any    `json:"old"`
	New    any    `json:"new"`
}

// DiffResult is the outcome of validating an incoming model against a prior row.
type DiffResult struct {
	Success bool `json:"success"`
	// Errors maps member to validation message.
	Errors map[string]string `json:"errors,omitempty"`
	// Model is the candidate: the prior row with every valid incoming value merged in.
	Model   internal.Row `json:"model"`
	Changes []Change     `json:"changes,omitempty"`
	// Unknown holds incoming keys no field declares.
	Unknown internal.Row `json:"unknown,omitempty"`
}

// ChangedMembers lists the changed members in table order, with an update stamp last.
func (d *DiffResult) ChangedMembers() []string {
	res := make([]string, 0, len(d.Changes))
	for _, c := range d.Changes {
		res = append(res, c.Member)
	}
	return res
}

// Changed returns the change for member.
func (d *DiffResult) Changed(member string) (Change, bool) {
	for _, c := range d.Changes {
		if c.Member == member {
			return c, true
		}
	}
	return Change{}, false
}

// Diff validates incoming field by field and computes the changes against prior. Validation
// collects every field error rather than stopping at the first. Prior is a client model and
// may be nil for new rows; neither input is modified.
func (t *Table) Diff(prior, incoming internal.Row, mode internal.RowMode, uc *internal.UsageContext) *DiffResult {
	res := &DiffResult{Success: true, Errors: make(map[string]string), Unknown: make(internal.Row)}
	var candidate internal.Row
	if mode == internal.RowModeNew {
		candidate = t.CreateNew(uc)
	} else {
		candidate = prior.Clone()
	}
	for _, f := range t.fields {
		r := f.ValidateAndParse(incoming, mode, uc)
		switch r.Status {
		case StatusUndefined:
			continue
		case StatusError:
			res.Success = false
			res.Errors[f.Member()] = r.Message
			internal.ValidationErrors.WithLabelValues(t.id).Inc()
			continue
		}
		for k, v := range r.Values {
			candidate[k] = v
		}
	}
	for _, k := range t.unknownKeys(incoming) {
		res.Unknown[k] = incoming[k]
	}
	res.Model = candidate
	if mode == internal.RowModeNew {
		prior = nil
	}
	for _, f := range t.fields {
		if f == t.pk && mode != internal.RowModeNew {
			continue
		}
		key := f.StoreMember()
		next, has := candidate[key]
		if !has {
			continue
		}
		old, had := prior[key]
		if had && f.IsEqual(old, next) {
			continue
		}
		if !had && isNil(next) && mode != internal.RowModeNew {
			continue
		}
		res.Changes = append(res.Changes, Change{Member: f.Member(), Old: old, New: next})
	}
	if mode == internal.RowModeUpdate && len(res.Changes) > 0 {
		if f := t.specials[SpecialUpdatedAt]; f != nil {
			if _, already := res.Changed(f.Member()); !already {
				now := uc.Clock()
				old := candidate[f.Member()]
				candidate[f.Member()] = now
				res.Changes = append(res.Changes, Change{Member: f.Member(), Old: old, New: now})
			}
		}
	}
	return res
}
