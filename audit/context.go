package audit

import "context"

type contextKey int

const actorKey contextKey = iota

type actor struct {
	userID string
	ip     string
}

// WithActor attributes subsequent audit entries on this context to the
// given authenticated user and request IP.
func WithActor(ctx context.Context, userID, ip string) context.Context {
	return context.WithValue(ctx, actorKey, actor{userID: userID, ip: ip})
}

// WithOrigin attributes entries to an unauthenticated request origin
// (known IP, no user).
func WithOrigin(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, actorKey, actor{ip: ip})
}

// actorFrom resolves the current actor. Outside any request context the
// user is empty and the origin is recorded as "system".
func actorFrom(ctx context.Context) (userID, ip string) {
	a, ok := ctx.Value(actorKey).(actor)
	if !ok {
		return "", systemOrigin
	}
	if a.ip == "" {
		return a.userID, systemOrigin
	}
	return a.userID, a.ip
}
