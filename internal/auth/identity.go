package auth

import "context"

// Identity is the authenticated caller of a protected request.
type Identity struct {
	UserID       string
	Email        string
	Name         string
	TokenVersion int
	DeviceID     string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
