// Package layouts holds the page shell shared by server-rendered pages and
// the typed context helpers it reads. Only simple types are stored so the
// package never imports plugin types.
//
// Data flow: Middleware → Echo Context → LayoutInjector → Go Context → Templ
package layouts

import "context"

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey string

const (
	keyIsAuthenticated ctxKey = "layout_is_authenticated"
	keyUserEmail       ctxKey = "layout_user_email"
	keyCSRFToken       ctxKey = "layout_csrf_token"
	keyActivePath      ctxKey = "layout_active_path"
)

func SetIsAuthenticated(ctx context.Context, authed bool) context.Context {
	return context.WithValue(ctx, keyIsAuthenticated, authed)
}

func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyUserEmail, email)
}

func SetCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, keyCSRFToken, token)
}

func SetActivePath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyActivePath, path)
}

// IsAuthenticated returns true when the request carries a valid session.
func IsAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(keyIsAuthenticated).(bool)
	return v
}

// GetUserEmail returns the signed-in user's email, or "".
func GetUserEmail(ctx context.Context) string {
	v, _ := ctx.Value(keyUserEmail).(string)
	return v
}

// GetCSRFToken returns the CSRF token forms must echo back.
func GetCSRFToken(ctx context.Context) string {
	v, _ := ctx.Value(keyCSRFToken).(string)
	return v
}

// GetActivePath returns the request path, for highlighting navigation.
func GetActivePath(ctx context.Context) string {
	v, _ := ctx.Value(keyActivePath).(string)
	return v
}
