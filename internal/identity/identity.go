// Package identity carries the authenticated caller identity through a
// request context, so every service call receives it explicitly instead
// of reading ambient global state.
package identity

import (
	"context"

	"github.com/vkotelnikov/credvault/internal/models"
)

type ctxKey struct{}

// WithIdentity returns a child context carrying the given identity.
func WithIdentity(ctx context.Context, ident *models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

// FromContext extracts the identity from the context, or nil.
func FromContext(ctx context.Context) *models.Identity {
	if ident, ok := ctx.Value(ctxKey{}).(*models.Identity); ok {
		return ident
	}
	return nil
}

// ContextProvider resolves the current identity from the request context.
type ContextProvider struct{}

// Current returns the context identity, or ErrAuthenticationRequired
// when none is present.
func (ContextProvider) Current(ctx context.Context) (*models.Identity, error) {
	ident := FromContext(ctx)
	if ident == nil || ident.ID == "" {
		return nil, models.ErrAuthenticationRequired
	}
	return ident, nil
}
