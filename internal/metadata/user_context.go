package metadata

import (
	"context"
	"slices"
)

// RoleAdmin is the role allowed to edit field requirements.
const RoleAdmin = "admin"

// UserContext is the caller resolved from a bearer token.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (u *UserContext) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// CanEditRules reports whether the caller may change field requirements.
func (u *UserContext) CanEditRules() bool {
	return u.HasRole(RoleAdmin)
}

type userKey struct{}

// WithUser attaches the caller to ctx so store and engine calls made on its
// behalf can be attributed.
func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the caller attached by WithUser, or nil.
func UserFrom(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userKey{}).(*UserContext)
	return u
}
