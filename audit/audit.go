// Package audit records an immutable trail of entity mutations. The
// recorder is invoked by the persistence layer inside the same storage
// batch as the triggering write, so an audit row and the change it
// describes share one commit boundary.
package audit

import (
	"encoding/json"
	"time"
)

// RecordType is the storage record type for audit entries.
const RecordType = "AUDIT"

// entryResourceType is the resource type name of the audit log itself.
// Mutations to it are never recorded, which structurally prevents
// recursive logging.
const entryResourceType = "AuditEntry"

// systemOrigin marks entries produced outside any request context
// (seeding, CLI tooling, background maintenance).
const systemOrigin = "system"

// Action identifies the kind of mutation an entry describes.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one immutable audit row. Once written it is never updated or
// deleted by application logic.
type Entry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"` // empty for system/unauthenticated actors
	Action       Action          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Details      json.RawMessage `json:"details,omitempty"`
	IPAddress    string          `json:"ip_address"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Change holds the before/after values of a single column in an UPDATE
// entry.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Auditable is implemented by every entity type whose mutations are
// recorded. AuditColumns returns the entity's column values as held in
// memory (protected fields appear as plaintext, exactly as the caller
// sees them).
type Auditable interface {
	ResourceType() string
	ResourceID() string
	AuditColumns() map[string]any
}
