package auth

import "context"

type contextKey string

const identityKey contextKey = "footprint-identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   string
	Username string
	// Method is "session" or "token".
	Method string
}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// OwnerID returns the caller's user id, or "" for anonymous requests.
func OwnerID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
