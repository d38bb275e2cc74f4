package session

import "time"

const (
	// DefaultIdleTimeout is the inactivity window after which an
	// authenticated session is rejected.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultAbsoluteTimeout caps total session lifetime regardless of
	// activity.
	DefaultAbsoluteTimeout = 24 * time.Hour
)

// Status is the outcome of validating a session's security record.
type Status int

const (
	// StatusActive means the session remains valid; LastActivity has
	// been refreshed.
	StatusActive Status = iota
	// StatusInvalid means the record is absent or partially populated.
	StatusInvalid
	// StatusIPMismatch means the request IP differs from the bound IP.
	StatusIPMismatch
	// StatusExpiredIdle means the inactivity window was exceeded.
	StatusExpiredIdle
	// StatusExpiredAbsolute means the absolute lifetime was exceeded.
	StatusExpiredAbsolute
)

// Valid reports whether the session may continue.
func (s Status) Valid() bool {
	return s == StatusActive
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInvalid:
		return "invalid"
	case StatusIPMismatch:
		return "ip_mismatch"
	case StatusExpiredIdle:
		return "expired_inactivity"
	case StatusExpiredAbsolute:
		return "expired_absolute"
	default:
		return "unknown"
	}
}

// Monitor validates session security records against an IP binding and
// two timeout policies. All non-active outcomes are terminal: the caller
// must force logout and clear the record completely.
type Monitor struct {
	idleTimeout     time.Duration
	absoluteTimeout time.Duration
}

// NewMonitor creates a Monitor. Non-positive durations fall back to the
// defaults.
func NewMonitor(idleTimeout, absoluteTimeout time.Duration) *Monitor {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if absoluteTimeout <= 0 {
		absoluteTimeout = DefaultAbsoluteTimeout
	}
	return &Monitor{idleTimeout: idleTimeout, absoluteTimeout: absoluteTimeout}
}

// Init returns a fresh security record for a session that just completed
// login (password and, where enabled, TOTP verification).
func (m *Monitor) Init(userID, ip string) *SecurityRecord {
	now := time.Now().UTC()
	return &SecurityRecord{
		UserID:       userID,
		IP:           ip,
		LoginAt:      now,
		LastActivity: now,
	}
}

// Validate checks the record against the current request IP and the
// timeout policies, refreshing LastActivity as a side effect when the
// session remains active.
//
// The refresh is a read-modify-write on the session store; the design
// assumes one client drives one session at a time, so concurrent
// requests racing on the same token are out of scope.
func (m *Monitor) Validate(rec *SecurityRecord, requestIP string) Status {
	return m.ValidateAt(rec, requestIP, time.Now().UTC())
}

// ValidateAt is Validate with an explicit clock, used by tests.
func (m *Monitor) ValidateAt(rec *SecurityRecord, requestIP string, now time.Time) Status {
	if rec == nil || rec.UserID == "" || rec.IP == "" || rec.LoginAt.IsZero() || rec.LastActivity.IsZero() {
		return StatusInvalid
	}
	if rec.IP != requestIP {
		return StatusIPMismatch
	}
	if now.Sub(rec.LastActivity) > m.idleTimeout {
		return StatusExpiredIdle
	}
	if now.Sub(rec.LoginAt) > m.absoluteTimeout {
		return StatusExpiredAbsolute
	}
	rec.LastActivity = now
	return StatusActive
}
