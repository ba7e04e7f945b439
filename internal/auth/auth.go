// Package auth answers "who is the current user" for the rest of the app.
package auth

import "context"

// User is the authenticated principal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider resolves the user for a request context.
type Provider interface {
	CurrentUser(ctx context.Context) (User, bool)
}

// Static always returns the same configured user.
type Static struct {
	user User
}

// NewStatic returns a provider for a single local user. An empty id means
// nobody is logged in.
func NewStatic(id, email string) *Static {
	return &Static{user: User{ID: id, Email: email}}
}

// CurrentUser returns a user already placed on ctx, else the static user.
func (s *Static) CurrentUser(ctx context.Context) (User, bool) {
	if u, ok := FromContext(ctx); ok {
		return u, true
	}
	if s.user.ID == "" {
		return User{}, false
	}
	return s.user, true
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored by WithUser.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
