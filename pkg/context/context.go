// Package context carries per-request metadata (request id, caller identity,
// tenant) through context.Context so handlers, services and the logger all
// read the same values.
package context

import "context"

type key int

const (
	requestIDKey key = iota
	tenantIDKey
	userIDKey
	methodKey
	routeKey
	remoteIPKey
)

func str(ctx context.Context, k key) string {
	value, _ := ctx.Value(k).(string)
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string { return str(ctx, requestIDKey) }

// SetTenantID stores the tenant every query and graph write is scoped to.
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string { return str(ctx, tenantIDKey) }

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string { return str(ctx, userIDKey) }

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey, method)
}

func GetMethod(ctx context.Context) string { return str(ctx, methodKey) }

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

func GetRoute(ctx context.Context) string { return str(ctx, routeKey) }

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, remoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string { return str(ctx, remoteIPKey) }
