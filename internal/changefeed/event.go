package changefeed

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopmonkeyus/tablekit/internal"
	"github.com/shopmonkeyus/tablekit/internal/table"
)

// SubjectPrefix is the first token of every change subject.
const SubjectPrefix = "dbchange"

// ChangeEvent describes one applied mutation.
type ChangeEvent struct {
	ID        string       `json:"id" msgpack:"id"`
	Operation string       `json:"operation" msgpack:"operation"`
	Table     string       `json:"table" msgpack:"table"`
	Key       []string     `json:"key" msgpack:"key"`
	Before    internal.Row `json:"before,omitempty" msgpack:"before,omitempty"`
	After     internal.Row `json:"after,omitempty" msgpack:"after,omitempty"`
	Diff      []string     `json:"diff,omitempty" msgpack:"diff,omitempty"`
	UserID    *int64       `json:"userId,omitempty" msgpack:"userId,omitempty"`
	RequestID string       `json:"requestId,omitempty" msgpack:"requestId,omitempty"`
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp" msgpack:"timestamp"`

	pk string
}

// FromMutation builds the event for a mutation. Inserts relying on a generated key should call
// SetKey once the store has returned it.
func FromMutation(m *table.Mutation, uc *internal.UsageContext) *ChangeEvent {
	e := &ChangeEvent{
		ID:        uuid.NewString(),
		Operation: string(m.Operation),
		Table:     m.Table.ID(),
		Before:    m.Before,
		After:     m.After,
		Timestamp: uc.Clock().UnixMilli(),
		pk:        m.Table.PKMember(),
	}
	if uc != nil {
		e.RequestID = uc.RequestID
		if id := uc.ActingUserID(); id > 0 {
			e.UserID = &id
		}
	}
	if m.Diff != nil && m.Operation != table.OpDelete {
		e.Diff = m.Diff.ChangedMembers()
	}
	if m.Key != nil {
		e.SetKey(m.Key)
	}
	return e
}

// SetKey sets the primary key, copying it into the after image.
func (e *ChangeEvent) SetKey(key any) {
	e.Key = []string{fmt.Sprint(key)}
	if e.After != nil && e.pk != "" {
		after := e.After.Clone()
		after[e.pk] = key
		e.After = after
	}
}

// GetPrimaryKey returns the last key component.
func (e *ChangeEvent) GetPrimaryKey() string {
	if len(e.Key) > 0 {
		return e.Key[len(e.Key)-1]
	}
	return ""
}

// Subject is dbchange.<table>.<operation>.
func (e *ChangeEvent) Subject() string {
	return SubjectPrefix + "." + e.Table + "." + strings.ToUpper(e.Operation)
}

func (e *ChangeEvent) String() string {
	return "ChangeEvent[op=" + e.Operation + ",table=" + e.Table + ",id=" + e.ID + ",pk=" + e.GetPrimaryKey() + "]"
}
