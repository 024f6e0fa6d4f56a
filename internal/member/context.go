package member

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the authenticated session to the context.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the authenticated session, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok || sess.UserID == "" {
		return Session{}, false
	}
	return sess, true
}
