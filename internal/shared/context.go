package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// OperatorFromContext returns the display name of the session user, falling
// back to "System" so history entries never carry an empty operator.
func OperatorFromContext(ctx context.Context) string {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.UserName() == "" {
		return "System"
	}
	return sess.UserName()
}
