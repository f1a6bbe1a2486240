package middleware

import "context"

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxRole    contextKey = "actor_role"
	ctxStoreID contextKey = "store_id"
)

// withActor seeds the request context with the authenticated actor. Only the
// auth middleware writes these keys; handlers read them through the accessors.
func withActor(ctx context.Context, userID, role, storeID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return context.WithValue(ctx, ctxStoreID, storeID)
}

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

// StoreIDFromContext returns the store the token is scoped to. Empty means the
// request never passed through Auth.
func StoreIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxStoreID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
