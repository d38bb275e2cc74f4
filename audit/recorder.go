package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"github.com/mharding/shopfront/internal/uuid"
	"github.com/mharding/shopfront/storage"
)

// Recorder writes audit entries for entity mutations.
//
// Failure policy: a failed audit write is logged to the operational
// logger and swallowed; the business mutation still commits.
type Recorder struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder that reports write failures to logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
}

// RecordInsert writes an INSERT entry whose details snapshot every column
// of the newly created entity.
func (r *Recorder) RecordInsert(ctx context.Context, tx storage.Tx, target Auditable) {
	if target.ResourceType() == entryResourceType {
		return
	}
	r.write(ctx, tx, ActionInsert, target, target.AuditColumns())
}

// RecordUpdate diffs before and after column values and writes an UPDATE
// entry containing only the changed columns as {old, new} pairs. A save
// with no observable column delta writes nothing.
func (r *Recorder) RecordUpdate(ctx context.Context, tx storage.Tx, before, after Auditable) {
	if after.ResourceType() == entryResourceType {
		return
	}
	changes := diffColumns(before.AuditColumns(), after.AuditColumns())
	if len(changes) == 0 {
		return
	}
	r.write(ctx, tx, ActionUpdate, after, changes)
}

// RecordDelete writes a DELETE entry snapshotting every column at the
// time of removal.
func (r *Recorder) RecordDelete(ctx context.Context, tx storage.Tx, target Auditable) {
	if target.ResourceType() == entryResourceType {
		return
	}
	r.write(ctx, tx, ActionDelete, target, target.AuditColumns())
}

func (r *Recorder) write(ctx context.Context, tx storage.Tx, action Action, target Auditable, details any) {
	userID, ip := actorFrom(ctx)

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		r.logger.Error("failed to encode audit details",
			"action", string(action),
			"resource_type", target.ResourceType(),
			"resource_id", target.ResourceID(),
			"error", err)
		return
	}

	entry := Entry{
		ID:           uuid.New(),
		UserID:       userID,
		Action:       action,
		ResourceType: target.ResourceType(),
		ResourceID:   target.ResourceID(),
		Details:      detailsJSON,
		IPAddress:    ip,
		Timestamp:    r.now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("failed to encode audit entry", "error", err)
		return
	}
	if err := tx.Put(RecordType, entry.ID, data); err != nil {
		r.logger.Error("failed to write audit entry",
			"action", string(action),
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err)
	}
}

func diffColumns(before, after map[string]any) map[string]Change {
	changes := make(map[string]Change)
	for col, newVal := range after {
		oldVal, ok := before[col]
		if !ok || !reflect.DeepEqual(oldVal, newVal) {
			changes[col] = Change{Old: oldVal, New: newVal}
		}
	}
	for col, oldVal := range before {
		if _, ok := after[col]; !ok {
			changes[col] = Change{Old: oldVal, New: nil}
		}
	}
	return changes
}

// List returns all audit entries, newest first.
func List(repo storage.Repository) ([]Entry, error) {
	ids, err := repo.List(RecordType)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		data, err := repo.Get(RecordType, id)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}
